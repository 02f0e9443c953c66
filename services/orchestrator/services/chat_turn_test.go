// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/TellerGate/services/llm"
	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
	"github.com/AleutianAI/TellerGate/services/orchestrator/memory"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeClassifier struct {
	cls datatypes.Classification
}

func (f *fakeClassifier) Classify(string) datatypes.Classification { return f.cls }

type fakeFees struct {
	answer        *datatypes.RenderedAnswer
	err           error
	resolved      *datatypes.RenderedAnswer
	resolvedErr   error
	calls         int
	resolvedCalls int
	lastOpt       datatypes.DisambiguationOption
}

func (f *fakeFees) Answer(context.Context, string) (*datatypes.RenderedAnswer, error) {
	f.calls++
	return f.answer, f.err
}

func (f *fakeFees) AnswerResolved(_ context.Context, _ *datatypes.DisambiguationState, opt datatypes.DisambiguationOption) (*datatypes.RenderedAnswer, error) {
	f.resolvedCalls++
	f.lastOpt = opt
	return f.resolved, f.resolvedErr
}

type fakeLocations struct {
	answer *datatypes.RenderedAnswer
	err    error
	calls  int
}

func (f *fakeLocations) Answer(context.Context, string) (*datatypes.RenderedAnswer, error) {
	f.calls++
	return f.answer, f.err
}

type fakeDirectory struct {
	rows     []datatypes.Employee
	err      error
	calls    int
	lastTerm string
}

func (f *fakeDirectory) Search(_ context.Context, term string) ([]datatypes.Employee, error) {
	f.calls++
	f.lastTerm = term
	return f.rows, f.err
}

type fakeRetriever struct {
	result *datatypes.RetrievalResult
	err    error
	calls  int
	lastKB string
}

func (f *fakeRetriever) Retrieve(_ context.Context, _, kb string) (*datatypes.RetrievalResult, error) {
	f.calls++
	f.lastKB = kb
	return f.result, f.err
}

type fakeGenerative struct {
	tokens       []string
	err          error
	calls        int
	lastMessages []llm.Message
}

func (g *fakeGenerative) ChatStream(_ context.Context, messages []llm.Message, _ llm.GenerationParams, cb llm.StreamCallback) error {
	g.calls++
	g.lastMessages = messages
	for _, tok := range g.tokens {
		if err := cb(llm.StreamEvent{Type: llm.StreamEventToken, Content: tok}); err != nil {
			return err
		}
	}
	if g.err != nil {
		_ = cb(llm.StreamEvent{Type: llm.StreamEventError, Error: g.err.Error()})
		return g.err
	}
	_ = cb(llm.StreamEvent{Type: llm.StreamEventDone})
	return nil
}

// mapPending is an in-process pending-state store for tests.
type mapPending struct {
	mu     sync.Mutex
	states map[string]*datatypes.DisambiguationState
}

func newMapPending() *mapPending {
	return &mapPending{states: make(map[string]*datatypes.DisambiguationState)}
}

func (p *mapPending) Get(_ context.Context, key string) (*datatypes.DisambiguationState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[key], nil
}

func (p *mapPending) Put(_ context.Context, key string, state *datatypes.DisambiguationState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[key] = state
	return nil
}

func (p *mapPending) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.states, key)
	return nil
}

func (p *mapPending) Ping(context.Context) error { return nil }
func (p *mapPending) Close() error               { return nil }

// =============================================================================
// Harness
// =============================================================================

type harness struct {
	svc        *TurnService
	classifier *fakeClassifier
	fees       *fakeFees
	locations  *fakeLocations
	directory  *fakeDirectory
	retriever  *fakeRetriever
	generative *fakeGenerative
	pending    *mapPending
	memory     *memory.Memory
}

func newHarness() *harness {
	h := &harness{
		classifier: &fakeClassifier{},
		fees:       &fakeFees{},
		locations:  &fakeLocations{},
		directory:  &fakeDirectory{},
		retriever:  &fakeRetriever{},
		generative: &fakeGenerative{tokens: []string{"Hello", " there."}},
		pending:    newMapPending(),
		memory:     memory.New(nil, memory.NewRingStore(50), nil),
	}
	h.svc = NewTurnService(TurnServiceConfig{
		BankName:             "EBL",
		DefaultKnowledgeBase: "ebl_general",
		MaxHistoryTurns:      20,
		PerCallTimeout:       2 * time.Second,
	}, TurnServiceDeps{
		Classifier: h.classifier,
		Fees:       h.fees,
		Locations:  h.locations,
		Directory:  h.directory,
		Retriever:  h.retriever,
		Generative: h.generative,
		Memory:     h.memory,
		Pending:    h.pending,
	})
	return h
}

func (h *harness) turn(t *testing.T, query string) (*TurnResult, string, error) {
	t.Helper()
	utt := datatypes.Utterance{
		Query:           query,
		SessionID:       "11111111-1111-4111-8111-111111111111",
		ConversationKey: "conv-1",
		CorrelationID:   "test",
		ReceivedAt:      time.Now(),
	}
	var streamed strings.Builder
	result, err := h.svc.HandleTurn(context.Background(), utt, func(chunk string) error {
		streamed.WriteString(chunk)
		return nil
	})
	return result, streamed.String(), err
}

func (h *harness) transcript(t *testing.T) []datatypes.TurnRecord {
	t.Helper()
	records, err := h.memory.LastN(context.Background(), "11111111-1111-4111-8111-111111111111", 50)
	require.NoError(t, err)
	return records
}

// =============================================================================
// Deterministic Dispatch
// =============================================================================

func TestHandleTurnFeeStreamsVerbatim(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{FeeQuery: true}
	h.fees.answer = &datatypes.RenderedAnswer{
		Text:            "As per the published schedule of charges:\n- BDT 575 per year\n",
		SourceTag:       datatypes.SourceFeeSchedule,
		IsAuthoritative: true,
	}

	result, streamed, err := h.turn(t, "annual fee for visa signature")
	require.NoError(t, err)

	assert.Equal(t, h.fees.answer.Text, streamed)
	assert.Equal(t, h.fees.answer.Text, result.Text)
	assert.True(t, result.Authoritative)
	assert.Equal(t, routeFee, result.Route)
	assert.Equal(t, 0, h.retriever.calls)
	assert.Equal(t, 0, h.generative.calls)

	records := h.transcript(t)
	require.Len(t, records, 2)
	assert.Equal(t, datatypes.RoleUser, records[0].Role)
	assert.Equal(t, "annual fee for visa signature", records[0].Content)
	assert.Equal(t, datatypes.RoleAssistant, records[1].Role)
	assert.Equal(t, h.fees.answer.Text, records[1].Content)
}

func TestHandleTurnFeeNotFoundIsScriptedNotRetrieval(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{FeeQuery: true}
	h.fees.err = &datatypes.AuthoritativeNotFoundError{
		Source:  datatypes.SourceFeeSchedule,
		Message: "no rule",
	}

	result, streamed, err := h.turn(t, "fee for teleportation")
	require.NoError(t, err)

	assert.Equal(t, scriptedFeeNotFound, streamed)
	assert.True(t, result.Authoritative)
	assert.Equal(t, 0, h.retriever.calls, "authoritative miss must not fall through to retrieval")
	assert.Equal(t, 0, h.generative.calls)
}

func TestHandleTurnFeeServiceErrorIsScriptedApology(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{FeeQuery: true}
	h.fees.err = &datatypes.AuthoritativeError{
		Source:     datatypes.SourceFeeSchedule,
		StatusCode: 503,
		Message:    "upstream down",
		Retryable:  true,
	}

	_, streamed, err := h.turn(t, "late payment fee")
	require.NoError(t, err)

	assert.Equal(t, scriptedServiceApology, streamed)
	assert.NotContains(t, streamed, "upstream down")
	assert.Equal(t, 0, h.retriever.calls)
}

func TestHandleTurnLocationNotFound(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{LocationQuery: true}
	h.locations.err = &datatypes.AuthoritativeNotFoundError{
		Source:  datatypes.SourceLocation,
		Message: "zero rows",
	}

	_, streamed, err := h.turn(t, "branches in atlantis")
	require.NoError(t, err)

	assert.Equal(t, scriptedLocationNotFound, streamed)
	assert.Equal(t, 0, h.retriever.calls)
}

func TestHandleTurnFeeBeatsLocationInDispatch(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{FeeQuery: true, LocationQuery: true}
	h.fees.answer = &datatypes.RenderedAnswer{Text: "fee answer", IsAuthoritative: true}

	result, _, err := h.turn(t, "atm withdrawal charge in dhaka")
	require.NoError(t, err)

	assert.Equal(t, routeFee, result.Route)
	assert.Equal(t, 1, h.fees.calls)
	assert.Equal(t, 0, h.locations.calls)
}

func TestHandleTurnDirectoryHit(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{DirectoryLookup: true, SearchTerm: "anika rahman"}
	h.directory.rows = []datatypes.Employee{{
		FullName:    "Anika Rahman",
		Designation: "Senior Officer",
		Department:  "Treasury",
		Division:    "Finance",
		Email:       "anika@example.test",
	}}

	result, streamed, err := h.turn(t, "phone number of anika rahman")
	require.NoError(t, err)

	assert.Equal(t, "anika rahman", h.directory.lastTerm)
	assert.Contains(t, streamed, "Anika Rahman")
	assert.True(t, result.Authoritative)
	assert.Equal(t, 0, h.retriever.calls)
}

func TestHandleTurnDirectoryMissNeverReachesRetrieval(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{DirectoryLookup: true, SearchTerm: "nobody here"}

	_, streamed, err := h.turn(t, "phone number of nobody here")
	require.NoError(t, err)

	assert.Equal(t, scriptedDirectoryNotFound, streamed)
	assert.Equal(t, 0, h.retriever.calls)
	assert.Equal(t, 0, h.generative.calls)
}

func TestHandleTurnDirectoryStoreErrorIsScripted(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{DirectoryLookup: true, SearchTerm: "anika"}
	h.directory.err = errors.New("pq: connection refused")

	_, streamed, err := h.turn(t, "email of anika")
	require.NoError(t, err)

	assert.Equal(t, scriptedServiceApology, streamed)
	assert.NotContains(t, streamed, "pq:")
}

// =============================================================================
// Disambiguation
// =============================================================================

func pendingState() *datatypes.DisambiguationState {
	return &datatypes.DisambiguationState{
		Kind: datatypes.DisambiguationCardProduct,
		Options: []datatypes.DisambiguationOption{
			{Index: 1, DisplayName: "UnionPay Classic", CanonicalID: "UNIONPAY CLASSIC", MatchKeys: []string{"unionpay classic", "classic"}},
			{Index: 2, DisplayName: "UnionPay Gold", CanonicalID: "UNIONPAY GOLD", MatchKeys: []string{"unionpay gold", "gold"}},
		},
		Context:   map[string]string{"charge_type": "ISSUANCE_ANNUAL_PRIMARY"},
		Prompt:    "Which card did you mean?\n1. UnionPay Classic\n2. UnionPay Gold\nReply with a number or the option name.",
		CreatedAt: time.Now().UTC(),
	}
}

func TestHandleTurnOpensDisambiguation(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{FeeQuery: true}
	state := pendingState()
	h.fees.answer = &datatypes.RenderedAnswer{
		Text:               state.Prompt,
		SourceTag:          datatypes.SourceDisambiguation,
		IsAuthoritative:    true,
		SuppressGeneration: true,
		Pending:            state,
	}

	_, streamed, err := h.turn(t, "annual fee for my card")
	require.NoError(t, err)

	assert.Equal(t, state.Prompt, streamed)
	saved, _ := h.pending.Get(context.Background(), "conv-1")
	require.NotNil(t, saved, "pending state must be saved before streaming returns")
	assert.Len(t, saved.Options, 2)
}

func TestHandleTurnResolvesPendingSelection(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.pending.Put(context.Background(), "conv-1", pendingState()))
	h.fees.resolved = &datatypes.RenderedAnswer{
		Text:            "As per the published schedule of charges:\n- BDT 2,300 per year\n",
		IsAuthoritative: true,
	}
	// The classifier would tag "2" as generic; precedence must ignore it.
	h.classifier.cls = datatypes.Classification{Generic: true}

	result, streamed, err := h.turn(t, "2")
	require.NoError(t, err)

	assert.Equal(t, h.fees.resolved.Text, streamed)
	assert.Equal(t, routeDisambiguation, result.Route)
	assert.Equal(t, 1, h.fees.resolvedCalls)
	assert.Equal(t, "UNIONPAY GOLD", h.fees.lastOpt.CanonicalID)
	assert.Equal(t, 0, h.fees.calls, "no fresh classification dispatch while pending")
	assert.Equal(t, 0, h.retriever.calls)

	left, _ := h.pending.Get(context.Background(), "conv-1")
	assert.Nil(t, left, "resolved state must be deleted")
}

func TestHandleTurnRepromptsOnAmbiguousSelection(t *testing.T) {
	h := newHarness()
	state := pendingState()
	require.NoError(t, h.pending.Put(context.Background(), "conv-1", state))

	_, streamed, err := h.turn(t, "the unionpay one")
	require.NoError(t, err)

	assert.Equal(t, state.Prompt, streamed)
	assert.Equal(t, 0, h.fees.resolvedCalls)

	kept, _ := h.pending.Get(context.Background(), "conv-1")
	assert.NotNil(t, kept, "ambiguous selection keeps the state")
}

// =============================================================================
// Generative Paths
// =============================================================================

func TestHandleTurnSmallTalkSkipsRetrieval(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{SmallTalk: true}

	result, streamed, err := h.turn(t, "hello")
	require.NoError(t, err)

	assert.Equal(t, "Hello there.", streamed)
	assert.Equal(t, routeSmallTalk, result.Route)
	assert.False(t, result.Authoritative)
	assert.Equal(t, 0, h.retriever.calls)

	require.NotEmpty(t, h.generative.lastMessages)
	final := h.generative.lastMessages[len(h.generative.lastMessages)-1]
	assert.Contains(t, final.Content, llm.ContextHeaderEmpty)
}

func TestHandleTurnRetrievalFeedsContextBlock(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{KnowledgeTag: datatypes.TagPolicy}
	h.retriever.result = &datatypes.RetrievalResult{
		Context:  "Policy excerpt about dormant accounts.",
		Sources:  []string{"policy_handbook.pdf"},
		CacheHit: true,
	}

	result, streamed, err := h.turn(t, "what is the dormant account policy")
	require.NoError(t, err)

	assert.Equal(t, "ebl_policies", h.retriever.lastKB)
	assert.Equal(t, "Hello there.", streamed)
	assert.Equal(t, []string{"policy_handbook.pdf"}, result.Sources)
	assert.True(t, result.CacheHit)

	final := h.generative.lastMessages[len(h.generative.lastMessages)-1]
	assert.Contains(t, final.Content, llm.ContextHeaderRetrieval)
	assert.Contains(t, final.Content, "dormant accounts")
}

func TestHandleTurnRetrievalFailureDegradesWithNotice(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{Generic: true}
	h.retriever.err = &datatypes.RetrievalError{StatusCode: 503, Message: "down", Retryable: true}

	result, streamed, err := h.turn(t, "tell me about the bank")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(streamed, scriptedRetrievalNotice))
	assert.Contains(t, streamed, "Hello there.")
	assert.NotContains(t, streamed, "down")
	assert.Equal(t, 1, h.generative.calls)

	final := h.generative.lastMessages[len(h.generative.lastMessages)-1]
	assert.Contains(t, final.Content, llm.ContextHeaderEmpty, "failed retrieval generates without context")
	assert.Equal(t, streamed, result.Text, "persisted text matches streamed text")
}

func TestHandleTurnGenerativeErrorAppendsApologyAndPersistsPartial(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{SmallTalk: true}
	h.generative.tokens = []string{"I was about to"}
	h.generative.err = errors.New("backend exploded")

	result, streamed, err := h.turn(t, "hello")
	require.Error(t, err)

	assert.Contains(t, streamed, "I was about to")
	assert.Contains(t, streamed, scriptedGenerativeApology)
	assert.NotContains(t, streamed, "backend exploded")

	records := h.transcript(t)
	require.Len(t, records, 2)
	assert.Equal(t, result.Text, records[1].Content)
	assert.Contains(t, records[1].Content, "I was about to")
}

func TestHandleTurnHistoryFlowsIntoPrompt(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{SmallTalk: true}

	_, _, err := h.turn(t, "hello")
	require.NoError(t, err)
	_, _, err = h.turn(t, "how are you")
	require.NoError(t, err)

	// Second turn's prompt should carry the first turn pair.
	var sawFirstTurn bool
	for _, msg := range h.generative.lastMessages {
		if msg.Role == llm.RoleUser && msg.Content == "hello" {
			sawFirstTurn = true
		}
	}
	assert.True(t, sawFirstTurn)
}

func TestHandleTurnEmitErrorPersistsPartial(t *testing.T) {
	h := newHarness()
	h.classifier.cls = datatypes.Classification{SmallTalk: true}
	h.generative.tokens = []string{"chunk one ", "chunk two"}

	utt := datatypes.Utterance{
		Query:           "hello",
		SessionID:       "11111111-1111-4111-8111-111111111111",
		ConversationKey: "conv-1",
	}
	calls := 0
	_, err := h.svc.HandleTurn(context.Background(), utt, func(chunk string) error {
		calls++
		if calls > 1 {
			return errors.New("client went away")
		}
		return nil
	})
	require.Error(t, err)

	records := h.transcript(t)
	require.Len(t, records, 2)
	assert.Equal(t, "chunk one ", records[1].Content, "only delivered chunks are persisted")
}
