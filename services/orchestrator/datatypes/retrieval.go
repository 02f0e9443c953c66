// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Retrieval-service wire types.
package datatypes

// Retrieval query defaults, fixed per deployment. The caps keep one
// retrieval response inside the generative context window with room for
// history.
const (
	RetrievalModeHybrid       = "hybrid"
	RetrievalTopKEntities     = 8
	RetrievalTopKChunks       = 5
	RetrievalMaxEntityTokens  = 2500
	RetrievalMaxRelationToken = 3500
	RetrievalMaxTotalTokens   = 12000
)

// RetrievalRequest is the retrieval-service query body.
type RetrievalRequest struct {
	Query              string `json:"query"`
	KnowledgeBase      string `json:"knowledge_base"`
	Mode               string `json:"mode"`
	TopK               int    `json:"top_k"`
	ChunkTopK          int    `json:"chunk_top_k"`
	MaxEntityTokens    int    `json:"max_entity_tokens"`
	MaxRelationTokens  int    `json:"max_relation_tokens"`
	MaxTotalTokens     int    `json:"max_total_tokens"`
	Rerank             bool   `json:"rerank"`
	ReturnFullResponse bool   `json:"return_full_response"`
}

// NewRetrievalRequest builds a request with the deployment-fixed parameters.
func NewRetrievalRequest(query, knowledgeBase string) *RetrievalRequest {
	return &RetrievalRequest{
		Query:              query,
		KnowledgeBase:      knowledgeBase,
		Mode:               RetrievalModeHybrid,
		TopK:               RetrievalTopKEntities,
		ChunkTopK:          RetrievalTopKChunks,
		MaxEntityTokens:    RetrievalMaxEntityTokens,
		MaxRelationTokens:  RetrievalMaxRelationToken,
		MaxTotalTokens:     RetrievalMaxTotalTokens,
		Rerank:             true,
		ReturnFullResponse: true,
	}
}

// RetrievalEntity is one knowledge-graph entity section.
type RetrievalEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// RetrievalRelationship is one knowledge-graph edge section.
type RetrievalRelationship struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Description string `json:"description,omitempty"`
}

// RetrievalChunk is one retrieved document chunk.
type RetrievalChunk struct {
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// RetrievalServiceResponse is the raw retrieval-service response body.
// Response, when non-empty and not a template placeholder, is the canonical
// context; otherwise the structured sections are stitched client-side.
type RetrievalServiceResponse struct {
	Response      string                  `json:"response,omitempty"`
	Entities      []RetrievalEntity       `json:"entities,omitempty"`
	Relationships []RetrievalRelationship `json:"relationships,omitempty"`
	Chunks        []RetrievalChunk        `json:"chunks,omitempty"`
	References    []string                `json:"references,omitempty"`
}

// RetrievalResult is the client's formatted output: the context block handed
// to the generative prompt plus source references and the cache verdict.
type RetrievalResult struct {
	Context   string   `json:"context"`
	Sources   []string `json:"sources,omitempty"`
	CacheHit  bool     `json:"cache_hit"`
	KnowledgeBase string `json:"knowledge_base"`
}
