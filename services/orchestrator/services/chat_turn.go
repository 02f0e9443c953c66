// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package services holds the turn orchestrator: the business logic that maps
// one user utterance to exactly one answer.
//
// The TurnService owns dispatch precedence. A pending disambiguation always
// wins; then the deterministic sources in order of specificity (fee schedule,
// locations, employee directory); small talk and knowledge-base questions go
// to the generative client last. Authoritative text is streamed byte-for-byte
// and never passes through the generative model.
//
// Collaborators are injected as narrow interfaces so tests can run the full
// precedence ladder without network services.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/TellerGate/services/llm"
	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
	"github.com/AleutianAI/TellerGate/services/orchestrator/directory"
	"github.com/AleutianAI/TellerGate/services/orchestrator/disambiguation"
	"github.com/AleutianAI/TellerGate/services/orchestrator/memory"
	"github.com/AleutianAI/TellerGate/services/orchestrator/observability"
)

// chatTurnTracer is the OpenTelemetry tracer for TurnService operations.
var chatTurnTracer = otel.Tracer("tellergate.orchestrator.services.chat_turn")

// =============================================================================
// Scripted Sentences
// =============================================================================

// Users never see collaborator error text; each failure class maps to one
// fixed sentence.
const (
	scriptedFeeNotFound = "I couldn't find that fee in the published schedule of " +
		"charges. Could you tell me the card or loan product and the specific charge?"

	scriptedLocationNotFound = "I couldn't find any locations matching that. " +
		"Could you try a different area or location type?"

	scriptedDirectoryNotFound = "I couldn't find anyone matching that in the " +
		"employee directory."

	scriptedServiceApology = "I'm sorry, I'm unable to look that up right now. " +
		"Please try again in a few minutes."

	scriptedGenerativeApology = "I'm sorry, something went wrong while I was " +
		"answering. Please ask me again."

	scriptedRetrievalNotice = "Our knowledge sources are temporarily unavailable, " +
		"so this answer comes without document context.\n\n"
)

// Route labels for metrics and analytics.
const (
	routeDisambiguation = "disambiguation"
	routeFee            = "fee_query"
	routeLocation       = "location_query"
	routeDirectory      = "directory_lookup"
	routeSmallTalk      = "small_talk"
	routeRetrieval      = "retrieval"
)

// =============================================================================
// Collaborator Contracts
// =============================================================================

// Classifier tags one utterance for dispatch.
type Classifier interface {
	Classify(text string) datatypes.Classification
}

// FeeAnswerer turns a fee question into a rendered answer. Answer may return
// a pending disambiguation instead of text; AnswerResolved completes it once
// the user has picked an option.
type FeeAnswerer interface {
	Answer(ctx context.Context, utterance string) (*datatypes.RenderedAnswer, error)
	AnswerResolved(ctx context.Context, state *datatypes.DisambiguationState, opt datatypes.DisambiguationOption) (*datatypes.RenderedAnswer, error)
}

// LocationAnswerer turns a branch/ATM question into a rendered answer.
type LocationAnswerer interface {
	Answer(ctx context.Context, utterance string) (*datatypes.RenderedAnswer, error)
}

// DirectorySearcher runs the ranked employee search.
type DirectorySearcher interface {
	Search(ctx context.Context, term string) ([]datatypes.Employee, error)
}

// Retriever fetches knowledge-base context for generative turns.
type Retriever interface {
	Retrieve(ctx context.Context, utterance, knowledgeBase string) (*datatypes.RetrievalResult, error)
}

// =============================================================================
// TurnService
// =============================================================================

// TurnServiceConfig carries the per-deployment knobs the orchestrator needs.
type TurnServiceConfig struct {
	// BankName is interpolated into the generative system prompt and the
	// location count sentences.
	BankName string

	// DefaultKnowledgeBase is used when neither the caller nor the
	// classifier selected a collection.
	DefaultKnowledgeBase string

	// MaxHistoryTurns bounds the transcript window handed to the prompt.
	MaxHistoryTurns int

	// PerCallTimeout bounds each deterministic collaborator call. The
	// generative stream is governed by the request context instead.
	PerCallTimeout time.Duration

	// Generation tunes the generative backend.
	Generation llm.GenerationParams
}

// TurnService executes one conversational turn end-to-end.
type TurnService struct {
	cfg        TurnServiceConfig
	classifier Classifier
	fees       FeeAnswerer
	locations  LocationAnswerer
	directory  DirectorySearcher
	retriever  Retriever
	generative llm.Client
	memory     *memory.Memory
	pending    disambiguation.Store
	locks      *KeyLock
	metrics    *observability.TurnMetrics
	analytics  *observability.Analytics
	logger     *slog.Logger
}

// TurnServiceDeps bundles the injected collaborators.
type TurnServiceDeps struct {
	Classifier Classifier
	Fees       FeeAnswerer
	Locations  LocationAnswerer
	Directory  DirectorySearcher
	Retriever  Retriever
	Generative llm.Client
	Memory     *memory.Memory
	Pending    disambiguation.Store
	Metrics    *observability.TurnMetrics
	Analytics  *observability.Analytics
	Logger     *slog.Logger
}

// NewTurnService wires a TurnService. Metrics, analytics, and logger may be
// nil; the recorders are nil-safe and a nil logger falls back to the default.
func NewTurnService(cfg TurnServiceConfig, deps TurnServiceDeps) *TurnService {
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = 20
	}
	if cfg.PerCallTimeout <= 0 {
		cfg.PerCallTimeout = 10 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnService{
		cfg:        cfg,
		classifier: deps.Classifier,
		fees:       deps.Fees,
		locations:  deps.Locations,
		directory:  deps.Directory,
		retriever:  deps.Retriever,
		generative: deps.Generative,
		memory:     deps.Memory,
		pending:    deps.Pending,
		locks:      NewKeyLock(),
		metrics:    deps.Metrics,
		analytics:  deps.Analytics,
		logger:     logger,
	}
}

// TurnResult summarizes one completed turn for the HTTP layer and analytics.
type TurnResult struct {
	// Text is the full assistant text, identical to what was emitted.
	Text string

	// Sources are the reference strings advertised after the stream.
	Sources []string

	// Route is the dispatch class the turn took.
	Route string

	// Authoritative reports whether the text came from a deterministic
	// source and was streamed verbatim.
	Authoritative bool

	// CacheHit reports whether a retrieval turn was served from cache.
	CacheHit bool

	// Chunks counts the emitted stream chunks.
	Chunks int
}

// =============================================================================
// HandleTurn
// =============================================================================

// HandleTurn executes one turn: resolve or open disambiguation, dispatch to
// the right collaborator, stream the answer through emit, and persist the
// transcript pair.
//
// # Description
//
// Emit is called with raw UTF-8 chunks in order; returning an error from it
// aborts the stream (client disconnect). Exactly one user and one assistant
// TurnRecord are appended per turn; when the stream dies early the partial
// assistant text is persisted as long as it is non-empty. The returned
// TurnResult always describes what was actually emitted, even on error.
//
// Turns sharing a conversation key are serialized; distinct keys run in
// parallel.
//
// # Inputs
//
//   - ctx: Request-scoped context. Cancellation stops downstream calls.
//   - utt: The immutable per-turn utterance built at the HTTP boundary.
//   - emit: Chunk sink. Must not be nil.
//
// # Outputs
//
//   - *TurnResult: Non-nil unless the turn could not start at all.
//   - error: Non-nil when the stream ended abnormally. The scripted apology
//     has already been emitted where possible.
func (s *TurnService) HandleTurn(ctx context.Context, utt datatypes.Utterance, emit func(string) error) (*TurnResult, error) {
	ctx, span := chatTurnTracer.Start(ctx, "TurnService.HandleTurn")
	defer span.End()
	span.SetAttributes(
		attribute.String("turn.correlation_id", utt.CorrelationID),
		attribute.String("turn.conversation_key", utt.ConversationKey),
	)

	release := s.locks.Acquire(utt.ConversationKey)
	defer release()

	start := time.Now()
	result, err := s.dispatch(ctx, utt, s.chunkSink(start, emit))

	elapsed := time.Since(start)
	success := err == nil
	s.metrics.RecordTurn(result.Route, success)
	s.metrics.RecordStreamDuration(result.Route, elapsed.Seconds(), success)
	if result.Authoritative {
		s.metrics.RecordAuthoritative(result.SourceTagForMetrics())
	}
	s.analytics.RecordTurn(observability.TurnEvent{
		Route:          result.Route,
		Authoritative:  result.Authoritative,
		CacheHit:       result.CacheHit,
		LatencyMillis:  elapsed.Milliseconds(),
		Chunks:         result.Chunks,
		AssistantChars: len(result.Text),
		CorrelationID:  utt.CorrelationID,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		s.logger.Error("Turn failed",
			"correlation_id", utt.CorrelationID,
			"route", result.Route,
			"error", err,
		)
	} else {
		s.logger.Info("Turn completed",
			"correlation_id", utt.CorrelationID,
			"route", result.Route,
			"authoritative", result.Authoritative,
			"chunks", result.Chunks,
			"latency_ms", elapsed.Milliseconds(),
		)
	}
	span.SetAttributes(
		attribute.String("turn.route", result.Route),
		attribute.Bool("turn.authoritative", result.Authoritative),
		attribute.Int("turn.chunks", result.Chunks),
	)
	return result, err
}

// SourceTagForMetrics maps a route back to its authoritative source label.
func (r *TurnResult) SourceTagForMetrics() string {
	switch r.Route {
	case routeFee:
		return datatypes.SourceFeeSchedule
	case routeLocation:
		return datatypes.SourceLocation
	case routeDirectory:
		return datatypes.SourceDirectory
	case routeDisambiguation:
		return datatypes.SourceDisambiguation
	default:
		return datatypes.SourceScripted
	}
}

// chunkSink wraps emit so the first chunk records time-to-first-chunk. The
// route label is read from the pointer the dispatch path fills in.
type countingSink struct {
	emit    func(string) error
	service *TurnService
	start   time.Time
	route   *string
	notice  string
	chunks  int
	emitted bool
}

func (s *TurnService) chunkSink(start time.Time, emit func(string) error) *countingSink {
	route := routeRetrieval
	return &countingSink{emit: emit, service: s, start: start, route: &route}
}

func (c *countingSink) send(chunk string) error {
	if chunk == "" {
		return nil
	}
	if !c.emitted {
		c.emitted = true
		c.service.metrics.RecordTimeToFirstChunk(*c.route, time.Since(c.start).Seconds())
	}
	c.chunks++
	return c.emit(chunk)
}

// =============================================================================
// Dispatch
// =============================================================================

// dispatch walks the precedence ladder and returns the completed TurnResult.
func (s *TurnService) dispatch(ctx context.Context, utt datatypes.Utterance, sink *countingSink) (*TurnResult, error) {
	// 1. A pending selection outranks everything; no other collaborator is
	// consulted until it resolves or expires.
	state := s.pendingState(ctx, utt.ConversationKey)
	if state != nil {
		*sink.route = routeDisambiguation
		return s.resolvePending(ctx, utt, state, sink)
	}

	cls := s.classifier.Classify(utt.Query)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("turn.routing_tag", string(cls.RoutingTag())),
	)

	// 2. Deterministic sources, most specific first. Never fall through to
	// retrieval once one of these claims the turn.
	switch {
	case cls.FeeQuery:
		*sink.route = routeFee
		return s.feeTurn(ctx, utt, sink)
	case cls.LocationQuery:
		*sink.route = routeLocation
		return s.locationTurn(ctx, utt, sink)
	case cls.DirectoryLookup:
		*sink.route = routeDirectory
		return s.directoryTurn(ctx, utt, cls.SearchTerm, sink)
	}

	// 3. Small talk skips retrieval entirely.
	if cls.SmallTalk {
		*sink.route = routeSmallTalk
		return s.generativeTurn(ctx, utt, "", nil, false, sink)
	}

	// 4. Knowledge-base retrieval, then generation.
	*sink.route = routeRetrieval
	return s.retrievalTurn(ctx, utt, cls, sink)
}

// pendingState loads the conversation's awaiting-selection state. Store
// errors are logged and treated as no state; the resilient store has already
// tried the in-process fallback by the time an error surfaces here.
func (s *TurnService) pendingState(ctx context.Context, key string) *datatypes.DisambiguationState {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.PerCallTimeout)
	defer cancel()

	state, err := s.pending.Get(cctx, key)
	if err != nil {
		s.metrics.RecordError("disambiguation_store")
		s.logger.Warn("Pending-state read failed, treating as absent",
			"conversation_key", key,
			"error", err,
		)
		return nil
	}
	return state
}

// resolvePending handles a turn that arrived while a selection was pending.
func (s *TurnService) resolvePending(ctx context.Context, utt datatypes.Utterance, state *datatypes.DisambiguationState, sink *countingSink) (*TurnResult, error) {
	opt, outcome := disambiguation.Resolve(state, utt.Query)

	if outcome == disambiguation.OutcomeReprompt {
		s.metrics.RecordDisambiguation("reprompted")
		return s.finishVerbatim(ctx, utt, state.Prompt, nil, routeDisambiguation, sink)
	}

	s.metrics.RecordDisambiguation("resolved")
	s.deletePending(ctx, utt.ConversationKey)

	cctx, cancel := context.WithTimeout(ctx, s.cfg.PerCallTimeout)
	answer, err := s.fees.AnswerResolved(cctx, state, opt)
	cancel()
	if err != nil {
		return s.scriptedTurn(ctx, utt, s.scriptedFor(err, routeFee), routeDisambiguation, sink, err)
	}
	return s.finishVerbatim(ctx, utt, answer.Text, answer.Sources, routeDisambiguation, sink)
}

// feeTurn dispatches a fee-tagged utterance to the fee client.
func (s *TurnService) feeTurn(ctx context.Context, utt datatypes.Utterance, sink *countingSink) (*TurnResult, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.PerCallTimeout)
	answer, err := s.fees.Answer(cctx, utt.Query)
	cancel()
	if err != nil {
		return s.scriptedTurn(ctx, utt, s.scriptedFor(err, routeFee), routeFee, sink, err)
	}

	if answer.Pending != nil {
		s.metrics.RecordDisambiguation("opened")
		s.savePending(ctx, utt.ConversationKey, answer.Pending)
	}
	return s.finishVerbatim(ctx, utt, answer.Text, answer.Sources, routeFee, sink)
}

// locationTurn dispatches a location-tagged utterance.
func (s *TurnService) locationTurn(ctx context.Context, utt datatypes.Utterance, sink *countingSink) (*TurnResult, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.PerCallTimeout)
	answer, err := s.locations.Answer(cctx, utt.Query)
	cancel()
	if err != nil {
		return s.scriptedTurn(ctx, utt, s.scriptedFor(err, routeLocation), routeLocation, sink, err)
	}
	return s.finishVerbatim(ctx, utt, answer.Text, answer.Sources, routeLocation, sink)
}

// directoryTurn runs the ranked employee search. Zero rows and store errors
// both end the turn with a scripted sentence; directory-class queries never
// reach retrieval.
func (s *TurnService) directoryTurn(ctx context.Context, utt datatypes.Utterance, term string, sink *countingSink) (*TurnResult, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.PerCallTimeout)
	rows, err := s.directory.Search(cctx, term)
	cancel()
	if err != nil {
		return s.scriptedTurn(ctx, utt, scriptedServiceApology, routeDirectory, sink, err)
	}
	if len(rows) == 0 {
		return s.finishVerbatim(ctx, utt, scriptedDirectoryNotFound, nil, routeDirectory, sink)
	}
	return s.finishVerbatim(ctx, utt, directory.RenderEmployees(rows), nil, routeDirectory, sink)
}

// retrievalTurn fetches knowledge-base context and generates. A dead
// retrieval service degrades to context-free generation with a notice rather
// than failing the turn.
func (s *TurnService) retrievalTurn(ctx context.Context, utt datatypes.Utterance, cls datatypes.Classification, sink *countingSink) (*TurnResult, error) {
	kb := cls.KnowledgeBase(utt.KnowledgeBase, s.cfg.DefaultKnowledgeBase)

	cctx, cancel := context.WithTimeout(ctx, s.cfg.PerCallTimeout)
	result, err := s.retriever.Retrieve(cctx, utt.Query, kb)
	cancel()
	if err != nil {
		s.metrics.RecordError("retrieval")
		s.logger.Warn("Retrieval failed, generating without context",
			"correlation_id", utt.CorrelationID,
			"knowledge_base", kb,
			"error", err,
		)
		return s.generativeTurn(ctx, utt, "", nil, false, sink.withNotice(scriptedRetrievalNotice))
	}

	s.metrics.RecordCacheLookup(result.CacheHit)
	return s.generativeTurn(ctx, utt, result.Context, result.Sources, result.CacheHit, sink)
}

// withNotice prepends a one-time notice chunk to the sink. Used when a turn
// degrades so the user knows the answer lacks document context.
func (c *countingSink) withNotice(notice string) *countingSink {
	c.notice = notice
	return c
}

// =============================================================================
// Streaming & Persistence
// =============================================================================

// finishVerbatim streams authoritative or scripted text as a single chunk and
// persists the transcript pair.
func (s *TurnService) finishVerbatim(ctx context.Context, utt datatypes.Utterance, text string, sources []string, route string, sink *countingSink) (*TurnResult, error) {
	streamErr := sink.send(text)

	result := &TurnResult{
		Text:          text,
		Sources:       sources,
		Route:         route,
		Authoritative: true,
		Chunks:        sink.chunks,
	}
	s.persistTurn(ctx, utt, text)

	if streamErr != nil {
		return result, streamErr
	}
	return result, nil
}

// scriptedTurn emits the fixed sentence for a failed deterministic turn. The
// underlying error is logged and counted but never shown.
func (s *TurnService) scriptedTurn(ctx context.Context, utt datatypes.Utterance, sentence, route string, sink *countingSink, cause error) (*TurnResult, error) {
	s.metrics.RecordError(errorClass(cause))
	s.logger.Warn("Deterministic turn degraded to scripted answer",
		"correlation_id", utt.CorrelationID,
		"route", route,
		"error", cause,
	)
	return s.finishVerbatim(ctx, utt, sentence, nil, route, sink)
}

// scriptedFor maps a collaborator error to its scripted sentence.
func (s *TurnService) scriptedFor(err error, route string) string {
	if datatypes.IsAuthoritativeNotFound(err) {
		if route == routeLocation {
			return scriptedLocationNotFound
		}
		return scriptedFeeNotFound
	}
	return scriptedServiceApology
}

// generativeTurn builds the prompt from transcript history plus the context
// block and streams the backend's tokens through the sink.
func (s *TurnService) generativeTurn(ctx context.Context, utt datatypes.Utterance, contextBlock string, sources []string, cacheHit bool, sink *countingSink) (*TurnResult, error) {
	history := s.transcriptWindow(ctx, utt.SessionID)
	messages := llm.BuildMessages(s.cfg.BankName, history, s.cfg.MaxHistoryTurns, contextBlock, utt.Query)

	acc := NewTokenAccumulator()
	defer acc.Destroy()

	s.metrics.StreamStarted()
	defer s.metrics.StreamEnded()

	if sink.notice != "" {
		if err := sink.send(sink.notice); err == nil {
			_ = acc.Write(sink.notice)
		}
	}

	streamErr := s.generative.ChatStream(ctx, messages, s.cfg.Generation, func(ev llm.StreamEvent) error {
		if ev.Type != llm.StreamEventToken || ev.Content == "" {
			return nil
		}
		if err := sink.send(ev.Content); err != nil {
			return err
		}
		// Accumulator overflow truncates persistence, not the stream.
		_ = acc.Write(ev.Content)
		return nil
	})

	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		s.metrics.RecordError(errorClass(streamErr))
		apology := scriptedGenerativeApology
		if sink.chunks > 0 {
			apology = "\n\n" + apology
		}
		// Best effort; the connection may already be gone.
		if err := sink.send(apology); err == nil {
			_ = acc.Write(apology)
		}
	}

	text, _, finErr := acc.Finalize()
	if finErr != nil {
		text = ""
	}

	result := &TurnResult{
		Text:     text,
		Sources:  sources,
		Route:    *sink.route,
		CacheHit: cacheHit,
		Chunks:   sink.chunks,
	}
	s.persistTurn(ctx, utt, text)
	return result, streamErr
}

// transcriptWindow loads the recent transcript for prompt assembly. A failed
// read degrades to an empty history; the turn still completes.
func (s *TurnService) transcriptWindow(ctx context.Context, sessionID string) []llm.Transcript {
	if s.memory == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, s.cfg.PerCallTimeout)
	defer cancel()

	records, err := s.memory.LastN(cctx, sessionID, s.cfg.MaxHistoryTurns)
	if err != nil && !datatypes.IsPersistenceDegraded(err) {
		s.logger.Warn("Transcript read failed, prompting without history",
			"session_id", sessionID,
			"error", err,
		)
		return nil
	}

	history := make([]llm.Transcript, 0, len(records))
	for _, rec := range records {
		role := llm.RoleUser
		if rec.Role == datatypes.RoleAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Transcript{Role: role, Content: rec.Content})
	}
	return history
}

// persistTurn appends the user utterance and the assistant text. Exactly one
// record each; an empty assistant text (nothing was emitted) appends only the
// user record. Persistence failures degrade, they never fail the turn.
func (s *TurnService) persistTurn(ctx context.Context, utt datatypes.Utterance, assistantText string) {
	if s.memory == nil {
		return
	}
	// The request context may already be canceled by a disconnect; the
	// transcript write still has to happen.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PerCallTimeout)
	defer cancel()

	now := time.Now().UTC()
	records := []datatypes.TurnRecord{
		{SessionID: utt.SessionID, Role: datatypes.RoleUser, Content: utt.Query, CreatedAt: now},
	}
	if assistantText != "" {
		records = append(records, datatypes.TurnRecord{
			SessionID: utt.SessionID,
			Role:      datatypes.RoleAssistant,
			Content:   assistantText,
			CreatedAt: now,
		})
	}
	for _, rec := range records {
		if err := s.memory.Append(cctx, rec); err != nil && !datatypes.IsPersistenceDegraded(err) {
			s.logger.Error("Transcript append failed",
				"session_id", utt.SessionID,
				"role", rec.Role,
				"error", err,
			)
		}
	}
}

// =============================================================================
// Pending-State Writes
// =============================================================================

// savePending overwrites the conversation's awaiting-selection state. At most
// one state exists per key; a failed write is degraded because the resilient
// store keeps the in-process copy serving the next turn.
func (s *TurnService) savePending(ctx context.Context, key string, state *datatypes.DisambiguationState) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.PerCallTimeout)
	defer cancel()
	if err := s.pending.Put(cctx, key, state); err != nil {
		s.metrics.RecordError("disambiguation_store")
		s.logger.Warn("Pending-state write failed",
			"conversation_key", key,
			"error", err,
		)
	}
}

func (s *TurnService) deletePending(ctx context.Context, key string) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.PerCallTimeout)
	defer cancel()
	if err := s.pending.Delete(cctx, key); err != nil {
		s.logger.Warn("Pending-state delete failed, state will expire by TTL",
			"conversation_key", key,
			"error", err,
		)
	}
}

// =============================================================================
// Helpers
// =============================================================================

// errorClass labels an error for the error counter.
func errorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case datatypes.IsValidationError(err):
		return "validation"
	case datatypes.IsAuthoritativeNotFound(err):
		return "authoritative_not_found"
	case datatypes.IsAuthoritativeError(err):
		return "authoritative"
	case datatypes.IsRetrievalError(err):
		return "retrieval"
	case datatypes.IsGenerativeError(err):
		return "generative"
	case datatypes.IsPersistenceDegraded(err):
		return "persistence_degraded"
	case datatypes.IsDisambiguationStoreError(err):
		return "disambiguation_store"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
