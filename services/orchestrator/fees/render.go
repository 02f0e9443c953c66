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
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/TellerGate/services/orchestrator/datatypes"
)

// scheduleHeader opens every fee-schedule answer so the user can tell a
// published tariff from generated prose.
const scheduleHeader = "As per the published schedule of charges:"

// =============================================================================
// Calculated Rules
// =============================================================================

// # Description
//
//	RenderCalculated turns a CALCULATED fee response into the exact text the
//	orchestrator streams. Amounts, currencies, rates, and the calculation
//	period come straight from the service payload; nothing is converted,
//	rounded, or re-derived here.
//
// # Inputs
//   - req: The request the rule was selected for; used only for the subject
//     line (charge type, card attributes).
//   - resp: The CALCULATED response.
//
// # Outputs
//   - string: Multi-line answer, header first.
func RenderCalculated(req datatypes.FeeCalculationRequest, resp *datatypes.FeeCalculationResponse) string {
	var b strings.Builder
	b.WriteString(scheduleHeader)
	b.WriteString("\n\n")
	b.WriteString(subjectLine(req, resp))
	b.WriteString(":\n")

	cond := resp.Condition
	kind := datatypes.ConditionNone
	if cond != nil {
		kind = cond.Kind
	}
	switch kind {
	case datatypes.ConditionFreeUpToN:
		renderFreeUpToN(&b, resp)
	case datatypes.ConditionWhicheverHigher:
		renderWhicheverHigher(&b, resp)
	case datatypes.ConditionTiered:
		renderTiered(&b, resp)
	default:
		renderFlat(&b, resp)
	}

	if resp.Remarks != "" {
		b.WriteString("\nNote: ")
		b.WriteString(resp.Remarks)
	}
	return b.String()
}

// renderFreeUpToN always states BOTH tiers: the free entitlement and the
// beyond-entitlement charge, even when the asked-about usage falls in the
// free tier. Answering only half invites a wrong inference.
func renderFreeUpToN(b *strings.Builder, resp *datatypes.FeeCalculationResponse) {
	cond := resp.Condition
	n := 0
	if cond.FreeEntitlementCount != nil {
		n = *cond.FreeEntitlementCount
	}
	cur := resp.FeeCurrency
	if cur == "" {
		cur = cond.BeyondFeeCurrency
	}
	fmt.Fprintf(b, "- First %d: free (%s 0%s)\n", n, cur, unitSuffix(resp.FeeUnit))
	if cond.BeyondFeeAmount != nil {
		beyondCur := cond.BeyondFeeCurrency
		if beyondCur == "" {
			beyondCur = cur
		}
		fmt.Fprintf(b, "- %s %s%s from the %s onward\n",
			beyondCur, formatAmount(*cond.BeyondFeeAmount), unitSuffix(resp.FeeUnit),
			ordinal(n+1))
	}
}

func renderWhicheverHigher(b *strings.Builder, resp *datatypes.FeeCalculationResponse) {
	cond := resp.Condition
	var parts []string
	if cond.PercentRate != nil {
		part := formatAmount(*cond.PercentRate) + "% of the transaction amount"
		if cond.CalculationPeriod != "" {
			part += " " + cond.CalculationPeriod
		}
		parts = append(parts, part)
	}
	if cond.FixedMinimum != nil {
		parts = append(parts, fmt.Sprintf("%s %s", resp.FeeCurrency, formatAmount(*cond.FixedMinimum)))
	}
	fmt.Fprintf(b, "- %s, whichever is higher\n", strings.Join(parts, " or "))
	if resp.FeeAmount != nil {
		fmt.Fprintf(b, "- For your transaction this comes to %s %s\n",
			resp.FeeCurrency, formatAmount(*resp.FeeAmount))
	}
}

func renderTiered(b *strings.Builder, resp *datatypes.FeeCalculationResponse) {
	cond := resp.Condition
	for _, tier := range cond.Tiers {
		if tier.UpToAmount != nil {
			fmt.Fprintf(b, "- Up to %s %s: %s%%",
				resp.FeeCurrency, formatAmount(*tier.UpToAmount), formatAmount(tier.Rate))
		} else {
			fmt.Fprintf(b, "- Above that: %s%%", formatAmount(tier.Rate))
		}
		if tier.TierMax != nil {
			fmt.Fprintf(b, " (maximum %s %s)", resp.FeeCurrency, formatAmount(*tier.TierMax))
		}
		b.WriteString("\n")
	}
	if cond.GlobalMin != nil {
		fmt.Fprintf(b, "- Minimum charge: %s %s\n", resp.FeeCurrency, formatAmount(*cond.GlobalMin))
	}
	if cond.GlobalMax != nil {
		fmt.Fprintf(b, "- Maximum charge: %s %s\n", resp.FeeCurrency, formatAmount(*cond.GlobalMax))
	}
	if resp.FeeAmount != nil {
		fmt.Fprintf(b, "- For your amount this comes to %s %s\n",
			resp.FeeCurrency, formatAmount(*resp.FeeAmount))
	}
}

func renderFlat(b *strings.Builder, resp *datatypes.FeeCalculationResponse) {
	if resp.FeeAmount == nil {
		b.WriteString("- See the schedule entry referenced below\n")
		return
	}
	if resp.FeeBasis == "PERCENT" {
		fmt.Fprintf(b, "- %s%% ", formatAmount(*resp.FeeAmount))
		b.WriteString(percentBasisText(resp))
		b.WriteString("\n")
		return
	}
	fmt.Fprintf(b, "- %s %s%s\n",
		resp.FeeCurrency, formatAmount(*resp.FeeAmount), unitSuffix(resp.FeeUnit))
}

// percentBasisText carries the calculation period verbatim. When the service
// omits the period, none is stated; assuming "per month" or "per annum" for
// an outstanding-balance rate would change the answer's meaning.
func percentBasisText(resp *datatypes.FeeCalculationResponse) string {
	text := "of the outstanding amount"
	if resp.Condition != nil && resp.Condition.CalculationPeriod != "" {
		text += " " + resp.Condition.CalculationPeriod
	}
	return text
}

// =============================================================================
// Non-Calculated Statuses
// =============================================================================

// RenderNoteBased answers a NOTE_BASED rule: the charge depends on a
// schedule note that has to be read, not computed.
func RenderNoteBased(req datatypes.FeeCalculationRequest, resp *datatypes.FeeCalculationResponse) string {
	var b strings.Builder
	b.WriteString(scheduleHeader)
	b.WriteString("\n\n")
	b.WriteString(subjectLine(req, resp))
	b.WriteString(" is governed by a condition in the schedule")
	if resp.Condition != nil && resp.Condition.NoteReference != "" {
		fmt.Fprintf(&b, " (see %s)", resp.Condition.NoteReference)
	}
	b.WriteString(". Please check the schedule of charges or contact the bank for the exact amount.")
	if resp.Remarks != "" {
		b.WriteString("\nNote: ")
		b.WriteString(resp.Remarks)
	}
	return b.String()
}

// RenderFXRequired answers FX_RATE_REQUIRED: the rule is known but the final
// figure needs a live exchange rate the bank applies at transaction time.
func RenderFXRequired(req datatypes.FeeCalculationRequest, resp *datatypes.FeeCalculationResponse) string {
	var b strings.Builder
	b.WriteString(scheduleHeader)
	b.WriteString("\n\n")
	b.WriteString(subjectLine(req, resp))
	if resp.Condition != nil && resp.Condition.PercentRate != nil {
		fmt.Fprintf(&b, " is %s%% of the transaction amount", formatAmount(*resp.Condition.PercentRate))
	}
	b.WriteString(". The final amount depends on the exchange rate applied on the transaction date.")
	return b.String()
}

// =============================================================================
// Retail Asset Charges
// =============================================================================

// RenderRetailAsset renders one or more loan-product charge rows.
func RenderRetailAsset(charges []datatypes.RetailAssetCharge) string {
	var b strings.Builder
	b.WriteString(scheduleHeader)
	b.WriteString("\n")
	for _, ch := range charges {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s, %s: %s", ch.LoanProduct, chargeTypeLabel(ch.ChargeType), retailChargeText(ch))
		if ch.Remarks != "" {
			b.WriteString(" (")
			b.WriteString(ch.Remarks)
			b.WriteString(")")
		}
	}
	return b.String()
}

func retailChargeText(ch datatypes.RetailAssetCharge) string {
	if ch.FeeValue == nil {
		if ch.Description != "" {
			return ch.Description
		}
		return "see the schedule of charges"
	}
	var text string
	if ch.FeeBasis == "PERCENT" || ch.FeeUnit == "%" {
		text = formatAmount(*ch.FeeValue) + "%"
		if ch.CalculationPeriod != "" {
			text += " " + ch.CalculationPeriod
		}
	} else {
		text = fmt.Sprintf("%s %s", ch.FeeCurrency, formatAmount(*ch.FeeValue))
		if ch.FeeUnit != "" {
			text += unitSuffix(ch.FeeUnit)
		}
	}
	var bounds []string
	if ch.MinAmount != nil {
		bounds = append(bounds, fmt.Sprintf("minimum %s %s", ch.FeeCurrency, formatAmount(*ch.MinAmount)))
	}
	if ch.MaxAmount != nil {
		bounds = append(bounds, fmt.Sprintf("maximum %s %s", ch.FeeCurrency, formatAmount(*ch.MaxAmount)))
	}
	if len(bounds) > 0 {
		text += " (" + strings.Join(bounds, ", ") + ")"
	}
	return text
}

// =============================================================================
// Shared Formatting
// =============================================================================

// subjectLine names what was asked about, most specific attribute first.
func subjectLine(req datatypes.FeeCalculationRequest, resp *datatypes.FeeCalculationResponse) string {
	var attrs []string
	if net := pick(resp.MatchedNetwork, req.CardNetwork); net != "" && net != datatypes.CardAttributeAny {
		attrs = append(attrs, displayNetwork(net))
	}
	if prod := pick(resp.MatchedProduct, req.CardProduct); prod != "" && prod != datatypes.CardAttributeAny {
		attrs = append(attrs, prod)
	}
	if cat := pick(resp.MatchedCategory, req.CardCategory); cat != "" && cat != datatypes.CardAttributeAny {
		attrs = append(attrs, strings.ToLower(cat)+" card")
	}
	subject := chargeTypeLabel(req.ChargeType)
	if len(attrs) > 0 {
		subject = strings.Join(attrs, " ") + " " + subject
	}
	return "The " + subject
}

func pick(matched, requested string) string {
	if matched != "" {
		return matched
	}
	return requested
}

// chargeTypeLabel maps standardized charge types back to reader-facing
// phrases. Unmapped types degrade to a lowercased, de-underscored form.
func chargeTypeLabel(chargeType string) string {
	labels := map[string]string{
		"ISSUANCE_ANNUAL_PRIMARY":   "annual fee",
		"SUPPLEMENTARY_ANNUAL":      "supplementary card annual fee",
		"CASH_WITHDRAWAL_EBL_ATM":   "cash withdrawal fee (own ATM)",
		"CASH_WITHDRAWAL_OTHER_ATM": "cash withdrawal fee (other bank ATM)",
		"CASH_WITHDRAWAL_ABROAD":    "cash withdrawal fee (abroad)",
		"LATE_PAYMENT":              "late payment fee",
		"OVERLIMIT":                 "overlimit fee",
		"CARD_REPLACEMENT":          "card replacement fee",
		"PIN_REPLACEMENT":           "PIN replacement fee",
		"LOUNGE_VISIT_FEE":          "airport lounge visit fee",
		"LIMIT_ENHANCEMENT_FEE":     "limit enhancement fee",
		"EARLY_SETTLEMENT_FEE":      "early settlement fee",
		"PARTIAL_PREPAYMENT_FEE":    "partial prepayment fee",
		"PROCESSING_FEE":            "processing fee",
		"FX_MARKUP":                 "foreign currency markup",
		"SMS_ALERT_FEE":             "SMS alert fee",
		"STATEMENT_DUPLICATE":       "duplicate statement fee",
		"RETURNED_CHEQUE":           "returned cheque fee",
		"CHEQUE_BOOK_FEE":           "cheque book fee",
		"PENAL_CHARGE":              "penal charge",
	}
	if label, ok := labels[chargeType]; ok {
		return label
	}
	if chargeType == "" {
		return "charge"
	}
	return strings.ToLower(strings.ReplaceAll(chargeType, "_", " "))
}

// unitSuffix turns a fee unit into its rendered qualifier.
func unitSuffix(unit string) string {
	switch strings.ToUpper(unit) {
	case "", "FLAT", "ONE_TIME":
		return ""
	case "PER_YEAR", "PER_ANNUM", "ANNUAL":
		return " per year"
	case "PER_MONTH", "MONTHLY":
		return " per month"
	case "PER_TRANSACTION":
		return " per transaction"
	case "PER_VISIT":
		return " per visit"
	case "PER_REQUEST":
		return " per request"
	}
	return " " + strings.ToLower(strings.ReplaceAll(unit, "_", " "))
}

// formatAmount renders a service amount without changing its value: trailing
// zeros are not invented (287.5 stays "287.5") and thousands get separators
// ("2,300"). The numeric value itself is carried through untouched.
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	intPart := s
	fracPart := ""
	if dot := strings.Index(s, "."); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot:]
	}
	neg := false
	if strings.HasPrefix(intPart, "-") {
		neg = true
		intPart = intPart[1:]
	}
	if len(intPart) > 3 {
		var groups []string
		for len(intPart) > 3 {
			groups = append([]string{intPart[len(intPart)-3:]}, groups...)
			intPart = intPart[:len(intPart)-3]
		}
		groups = append([]string{intPart}, groups...)
		intPart = strings.Join(groups, ",")
	}
	out := intPart + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// ordinal renders 1 -> "1st", 2 -> "2nd", 11 -> "11th".
func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}
