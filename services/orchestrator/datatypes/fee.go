// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Fee-service wire types.
//
// The fee service owns rule selection (priority, then specificity, then most
// recent effective_from; fee value never tie-breaks). The client consumes the
// selected rule plus its condition metadata and renders the answer verbatim.
package datatypes

// =============================================================================
// Canonical Card Attributes
// =============================================================================

// Card categories as the fee service spells them.
const (
	CardCategoryCredit  = "CREDIT"
	CardCategoryDebit   = "DEBIT"
	CardCategoryPrepaid = "PREPAID"

	// CardAttributeAny is the wildcard value a rule may carry for category or
	// network. Product wildcards may also appear as NULL or empty.
	CardAttributeAny = "ANY"
)

// Card networks, canonical service tokens.
const (
	NetworkVisa       = "VISA"
	NetworkMastercard = "MASTERCARD"
	NetworkUnionPay   = "UNIONPAY INTERNATIONAL"
)

// =============================================================================
// Fee Service Statuses
// =============================================================================

// FeeStatus is the outcome discriminator on fee-service responses.
type FeeStatus string

const (
	FeeStatusCalculated   FeeStatus = "CALCULATED"
	FeeStatusRequiresNote FeeStatus = "REQUIRES_NOTE_RESOLUTION"
	FeeStatusNoRuleFound  FeeStatus = "NO_RULE_FOUND"
	FeeStatusFXRequired   FeeStatus = "FX_RATE_REQUIRED"
	FeeStatusInvalid      FeeStatus = "INVALID_REQUEST"

	// FeeStatusFound is the retail-asset charge query's success status.
	FeeStatusFound FeeStatus = "FOUND"
)

// =============================================================================
// Condition Kinds
// =============================================================================

// ConditionKind describes how a rule's raw fee components combine.
type ConditionKind string

const (
	ConditionNone            ConditionKind = "NONE"
	ConditionWhicheverHigher ConditionKind = "WHICHEVER_HIGHER"
	ConditionFreeUpToN       ConditionKind = "FREE_UPTO_N"
	ConditionTiered          ConditionKind = "TIERED"
	ConditionNoteBased       ConditionKind = "NOTE_BASED"
)

// =============================================================================
// Card Fee Calculation
// =============================================================================

// FeeCalculationRequest is the card-fee rule-family request body.
//
// Amount and UsageIndex are pointers so "not supplied" survives JSON
// round-trips; the service treats a missing amount differently from zero.
type FeeCalculationRequest struct {
	ChargeType   string   `json:"charge_type"`
	CardCategory string   `json:"card_category,omitempty"`
	CardNetwork  string   `json:"card_network,omitempty"`
	CardProduct  string   `json:"card_product,omitempty"`
	ProductLine  string   `json:"product_line,omitempty"`
	Amount       *float64 `json:"amount,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	UsageIndex   *int     `json:"usage_index,omitempty"`
	AsOfDate     string   `json:"as_of_date"`
}

// ChargeTier is one step of a TIERED condition.
type ChargeTier struct {
	UpToAmount *float64 `json:"up_to_amount,omitempty"`
	Rate       float64  `json:"rate"`
	TierMax    *float64 `json:"tier_max,omitempty"`
}

// FeeCondition is the condition metadata attached to a selected rule.
//
// # Description
//
// Interpretation by kind:
//
//   - NONE: FeeAmount on the response is final.
//   - WHICHEVER_HIGHER: the fee is max(PercentRate of amount, FixedMinimum);
//     the service computes the max, the components are carried for rendering.
//   - FREE_UPTO_N: usage at or below FreeEntitlementCount costs zero. The
//     service also evaluates the chained next rule of the same charge type
//     (identical precedence) and carries its amount in BeyondFeeAmount so a
//     single response can always render both tiers.
//   - TIERED: the amount results from tier rate, then tier-local max, then
//     global min, then global max, applied in that order. Tiers carried for
//     rendering.
//   - NOTE_BASED: no amount; NoteReference identifies the schedule note that
//     must be resolved by a human. Never guessed at.
//
// CalculationPeriod is the period qualifier for ON_OUTSTANDING percent rules
// ("per month", "per annum"). It is rendered verbatim; the client never
// assumes a period when the service omits one.
type FeeCondition struct {
	Kind                 ConditionKind `json:"kind"`
	PercentRate          *float64      `json:"percent_rate,omitempty"`
	FixedMinimum         *float64      `json:"fixed_minimum,omitempty"`
	FreeEntitlementCount *int          `json:"free_entitlement_count,omitempty"`
	BeyondFeeAmount      *float64      `json:"beyond_fee_amount,omitempty"`
	BeyondFeeCurrency    string        `json:"beyond_fee_currency,omitempty"`
	NoteReference        string        `json:"note_reference,omitempty"`
	Tiers                []ChargeTier  `json:"tiers,omitempty"`
	GlobalMin            *float64      `json:"global_min,omitempty"`
	GlobalMax            *float64      `json:"global_max,omitempty"`
	CalculationPeriod    string        `json:"calculation_period,omitempty"`
}

// FeeCalculationResponse is the card-fee rule-family response body.
type FeeCalculationResponse struct {
	Status        FeeStatus     `json:"status"`
	FeeAmount     *float64      `json:"fee_amount,omitempty"`
	FeeCurrency   string        `json:"fee_currency,omitempty"`
	FeeBasis      string        `json:"fee_basis,omitempty"`
	FeeUnit       string        `json:"fee_unit,omitempty"`
	RuleID        string        `json:"rule_id,omitempty"`
	RulePriority  int           `json:"rule_priority,omitempty"`
	EffectiveFrom string        `json:"effective_from,omitempty"`
	EffectiveTo   string        `json:"effective_to,omitempty"`
	Remarks       string        `json:"remarks,omitempty"`
	Condition     *FeeCondition `json:"condition,omitempty"`

	// Matched attributes of the selected rule, used for specificity checks
	// and rendering headers.
	MatchedCategory string `json:"matched_category,omitempty"`
	MatchedNetwork  string `json:"matched_network,omitempty"`
	MatchedProduct  string `json:"matched_product,omitempty"`
}

// SpecificityScore computes the tie-break score of a rule's matched
// attributes: two points each for a concrete category, network, and product.
// ANY may appear as an explicit enum value, or as NULL/empty for product.
func SpecificityScore(category, network, product string) int {
	score := 0
	if category != "" && category != CardAttributeAny {
		score += 2
	}
	if network != "" && network != CardAttributeAny {
		score += 2
	}
	if product != "" && product != CardAttributeAny {
		score += 2
	}
	return score
}

// =============================================================================
// Retail Asset Charges
// =============================================================================

// RetailAssetChargeRequest queries the loan-product charge rule family.
type RetailAssetChargeRequest struct {
	AsOfDate    string `json:"as_of_date"`
	LoanProduct string `json:"loan_product,omitempty"`
	ChargeType  string `json:"charge_type,omitempty"`
}

// RetailAssetCharge is one loan-product charge row.
type RetailAssetCharge struct {
	LoanProduct       string        `json:"loan_product"`
	ChargeType        string        `json:"charge_type"`
	Description       string        `json:"description,omitempty"`
	FeeValue          *float64      `json:"fee_value,omitempty"`
	FeeUnit           string        `json:"fee_unit,omitempty"`
	FeeCurrency       string        `json:"fee_currency,omitempty"`
	FeeBasis          string        `json:"fee_basis,omitempty"`
	MinAmount         *float64      `json:"min_amount,omitempty"`
	MaxAmount         *float64      `json:"max_amount,omitempty"`
	Tiers             []ChargeTier  `json:"tiers,omitempty"`
	ConditionKind     ConditionKind `json:"condition_kind,omitempty"`
	CalculationPeriod string        `json:"calculation_period,omitempty"`
	Remarks           string        `json:"remarks,omitempty"`
}

// RetailAssetChargeResponse is the loan-product charge query response.
type RetailAssetChargeResponse struct {
	Status  FeeStatus           `json:"status"`
	Charges []RetailAssetCharge `json:"charges,omitempty"`
}
