// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fees

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

const sourceName = datatypes.SourceFeeSchedule

// =============================================================================
// Client
// =============================================================================

// ClientConfig configures the fee-service client.
type ClientConfig struct {
	ServiceURL string
	APIKey     string
	Timeout    time.Duration
}

// Client answers fee questions authoritatively: it extracts one structured
// query per rule family, makes at most one service call for it (plus one
// retry on transient failure), and renders the selected rule verbatim.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer

	// now is stubbed in tests so as_of_date is deterministic.
	now func() time.Time
}

// productScopedCharges are the charge types whose rules are keyed by card
// product; querying them without a product would silently pick an ANY rule,
// so the client asks instead.
var productScopedCharges = map[string]bool{
	"ISSUANCE_ANNUAL_PRIMARY": true,
	"SUPPLEMENTARY_ANNUAL":    true,
	"LOUNGE_VISIT_FEE":        true,
}

// NewClient builds a fee client.
func NewClient(cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if cfg.ServiceURL == "" {
		return nil, fmt.Errorf("fee service URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "fee_client"),
		tracer:     otel.Tracer("tellergate.orchestrator.fees"),
		now:        time.Now,
	}, nil
}

// # Description
//
//	Answer handles one fee-routed utterance end to end. Ambiguity produces a
//	pending disambiguation answer without any service call; otherwise the
//	rule family is queried once and the result rendered. All outcomes are
//	authoritative: a fee turn never falls through to retrieval.
//
// # Inputs
//   - ctx: Request-scoped context; carries the per-call deadline.
//   - utterance: Raw user text, as classified by the fee route.
//
// # Outputs
//   - *datatypes.RenderedAnswer: Verbatim text, or a prompt with Pending set.
//   - error: AuthoritativeNotFoundError or AuthoritativeError; the caller
//     maps either to its scripted sentence with generation suppressed.
func (c *Client) Answer(ctx context.Context, utterance string) (*datatypes.RenderedAnswer, error) {
	ctx, span := c.tracer.Start(ctx, "fees.Answer")
	defer span.End()

	intent := Extract(utterance)
	span.SetAttributes(
		attribute.String("fees.charge_type", intent.ChargeType),
		attribute.Int("fees.family", int(intent.Family)),
	)

	if intent.AmbiguousNetwork {
		return pendingAnswer(NetworkDisambiguation(intent, utterance)), nil
	}
	if intent.AmbiguousCategory {
		return pendingAnswer(CategoryDisambiguation(intent, utterance)), nil
	}

	switch intent.Family {
	case FamilyRetailAsset:
		return c.answerRetailAsset(ctx, intent)
	case FamilySkyBanking:
		return c.answerCardFee(ctx, c.skyBankingRequest(intent))
	case FamilyCardFee:
		if intent.CardProduct == "" && productScopedCharges[intent.ChargeType] {
			if state := ProductDisambiguation(intent, utterance); state != nil {
				return pendingAnswer(state), nil
			}
		}
		if intent.ChargeType == "" {
			return nil, &datatypes.AuthoritativeNotFoundError{
				Source:  sourceName,
				Message: "no recognizable charge type in query",
			}
		}
		return c.answerCardFee(ctx, c.cardFeeRequest(intent))
	}
	return nil, &datatypes.AuthoritativeNotFoundError{
		Source:  sourceName,
		Message: "no fee rule family matched",
	}
}

// AnswerResolved re-runs a fee query after the user picked a disambiguation
// option. Retail-asset options carry their rendered answer; card options
// carry the attribute that completes the original query.
func (c *Client) AnswerResolved(ctx context.Context, state *datatypes.DisambiguationState, opt datatypes.DisambiguationOption) (*datatypes.RenderedAnswer, error) {
	ctx, span := c.tracer.Start(ctx, "fees.AnswerResolved")
	defer span.End()
	span.SetAttributes(attribute.String("fees.disambiguation_kind", string(state.Kind)))

	switch state.Kind {
	case datatypes.DisambiguationRetailAsset:
		return &datatypes.RenderedAnswer{
			Text:               opt.AnswerText,
			SourceTag:          sourceName,
			IsAuthoritative:    true,
			SuppressGeneration: true,
		}, nil
	case datatypes.DisambiguationCardProduct, datatypes.DisambiguationCardNetwork, datatypes.DisambiguationCardCategory:
		req := requestFromContext(state.Context, c.asOfDate())
		switch state.Kind {
		case datatypes.DisambiguationCardProduct:
			req.CardProduct = opt.CanonicalID
		case datatypes.DisambiguationCardNetwork:
			req.CardNetwork = opt.CanonicalID
		default:
			req.CardCategory = opt.CanonicalID
		}
		if req.ChargeType == "" {
			req.ChargeType = "ISSUANCE_ANNUAL_PRIMARY"
		}
		return c.answerCardFee(ctx, req)
	}
	return nil, &datatypes.AuthoritativeNotFoundError{
		Source:  sourceName,
		Message: fmt.Sprintf("unknown disambiguation kind %q", state.Kind),
	}
}

// Ping probes the fee service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServiceURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fee service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fee service health returned %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// Rule Families
// =============================================================================

func (c *Client) cardFeeRequest(intent Intent) datatypes.FeeCalculationRequest {
	return datatypes.FeeCalculationRequest{
		ChargeType:   intent.ChargeType,
		CardCategory: intent.CardCategory,
		CardNetwork:  intent.CardNetwork,
		CardProduct:  intent.CardProduct,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		UsageIndex:   intent.UsageIndex,
		AsOfDate:     c.asOfDate(),
	}
}

func (c *Client) skyBankingRequest(intent Intent) datatypes.FeeCalculationRequest {
	req := c.cardFeeRequest(intent)
	req.ProductLine = "SKYBANKING"
	return req
}

func (c *Client) answerCardFee(ctx context.Context, req datatypes.FeeCalculationRequest) (*datatypes.RenderedAnswer, error) {
	resp, err := c.calculate(ctx, req)
	if err != nil {
		return nil, err
	}
	switch resp.Status {
	case datatypes.FeeStatusCalculated:
		return authoritative(RenderCalculated(req, resp)), nil
	case datatypes.FeeStatusRequiresNote:
		return authoritative(RenderNoteBased(req, resp)), nil
	case datatypes.FeeStatusFXRequired:
		return authoritative(RenderFXRequired(req, resp)), nil
	case datatypes.FeeStatusNoRuleFound:
		return nil, &datatypes.AuthoritativeNotFoundError{
			Source:  sourceName,
			Message: fmt.Sprintf("no rule for charge type %s", req.ChargeType),
		}
	case datatypes.FeeStatusInvalid:
		return nil, &datatypes.AuthoritativeError{
			Source:     sourceName,
			StatusCode: http.StatusBadRequest,
			Message:    "fee service rejected the request",
		}
	}
	return nil, &datatypes.AuthoritativeError{
		Source:     sourceName,
		StatusCode: http.StatusBadGateway,
		Message:    fmt.Sprintf("unexpected fee status %q", resp.Status),
	}
}

func (c *Client) answerRetailAsset(ctx context.Context, intent Intent) (*datatypes.RenderedAnswer, error) {
	req := datatypes.RetailAssetChargeRequest{
		AsOfDate:    c.asOfDate(),
		LoanProduct: intent.LoanProduct,
		ChargeType:  intent.ChargeType,
	}
	resp, err := c.retailCharges(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Status != datatypes.FeeStatusFound || len(resp.Charges) == 0 {
		return nil, &datatypes.AuthoritativeNotFoundError{
			Source:  sourceName,
			Message: "no retail asset charge matched",
		}
	}

	// Multiple loan products in the result set means the question was
	// product-ambiguous; each option carries its already-rendered answer so
	// resolution needs no second service call.
	if intent.LoanProduct == "" {
		if state := retailAssetDisambiguation(resp.Charges, intent); state != nil {
			return pendingAnswer(state), nil
		}
	}
	return authoritative(RenderRetailAsset(resp.Charges)), nil
}

func retailAssetDisambiguation(charges []datatypes.RetailAssetCharge, intent Intent) *datatypes.DisambiguationState {
	byProduct := make(map[string][]datatypes.RetailAssetCharge)
	var order []string
	for _, ch := range charges {
		if _, ok := byProduct[ch.LoanProduct]; !ok {
			order = append(order, ch.LoanProduct)
		}
		byProduct[ch.LoanProduct] = append(byProduct[ch.LoanProduct], ch)
	}
	if len(order) < 2 {
		return nil
	}
	options := make([]datatypes.DisambiguationOption, 0, len(order))
	for i, product := range order {
		options = append(options, datatypes.DisambiguationOption{
			Index:       i + 1,
			DisplayName: product,
			CanonicalID: product,
			MatchKeys:   loanProductMatchKeys(product),
			AnswerText:  RenderRetailAsset(byProduct[product]),
		})
	}
	state := &datatypes.DisambiguationState{
		Kind:      datatypes.DisambiguationRetailAsset,
		Options:   options,
		Context:   map[string]string{"charge_type": intent.ChargeType},
		CreatedAt: time.Now().UTC(),
	}
	state.Prompt = renderDisambiguationPrompt("Which loan product do you mean?", options)
	return state
}

// =============================================================================
// Transport
// =============================================================================

func (c *Client) calculate(ctx context.Context, req datatypes.FeeCalculationRequest) (*datatypes.FeeCalculationResponse, error) {
	var resp datatypes.FeeCalculationResponse
	if err := c.postWithRetry(ctx, "/fees/calculate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) retailCharges(ctx context.Context, req datatypes.RetailAssetChargeRequest) (*datatypes.RetailAssetChargeResponse, error) {
	var resp datatypes.RetailAssetChargeResponse
	if err := c.postWithRetry(ctx, "/fees/retail-asset-charges", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// postWithRetry performs the POST and retries exactly once when the failure
// is transient. Fee reads are idempotent, so the retry is safe.
func (c *Client) postWithRetry(ctx context.Context, path string, body, out any) error {
	err := c.postOnce(ctx, path, body, out)
	if err == nil {
		return nil
	}
	if ae := datatypes.GetAuthoritativeError(err); ae != nil && ae.Retryable {
		c.logger.Warn("fee service call failed, retrying once",
			"path", path, "error", err)
		return c.postOnce(ctx, path, body, out)
	}
	return err
}

func (c *Client) postOnce(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal fee request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.ServiceURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build fee request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &datatypes.AuthoritativeError{
			Source: sourceName, StatusCode: 0,
			Message: err.Error(), Retryable: true,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &datatypes.AuthoritativeError{
			Source:     sourceName,
			StatusCode: resp.StatusCode,
			Message:    string(slurp),
			Retryable:  resp.StatusCode >= 500,
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &datatypes.AuthoritativeError{
			Source:     sourceName,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("malformed fee response: %v", err),
		}
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func (c *Client) asOfDate() string {
	return c.now().UTC().Format("2006-01-02")
}

func authoritative(text string) *datatypes.RenderedAnswer {
	return &datatypes.RenderedAnswer{
		Text:               text,
		SourceTag:          sourceName,
		IsAuthoritative:    true,
		SuppressGeneration: true,
	}
}

func pendingAnswer(state *datatypes.DisambiguationState) *datatypes.RenderedAnswer {
	return &datatypes.RenderedAnswer{
		Text:               state.Prompt,
		SourceTag:          datatypes.SourceDisambiguation,
		IsAuthoritative:    true,
		SuppressGeneration: true,
		Pending:            state,
	}
}

func requestFromContext(ctx map[string]string, asOf string) datatypes.FeeCalculationRequest {
	return datatypes.FeeCalculationRequest{
		ChargeType:   ctx["charge_type"],
		CardCategory: ctx["card_category"],
		CardNetwork:  ctx["card_network"],
		CardProduct:  ctx["card_product"],
		AsOfDate:     asOf,
	}
}

func loanProductMatchKeys(product string) []string {
	keys := []string{strings.ToLower(product)}
	for alias, canonical := range loanProductAliases {
		if canonical == product {
			keys = append(keys, alias)
		}
	}
	return dedupe(keys)
}
