// Package normalize canonicalizes extracted field values before insurer
// mapping. All functions are pure: no side effects, no I/O.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Dee-Olulo/OCR-system/internal/domain/entity"
)

// DefaultDateLayout is used when an insurer config does not specify one.
const DefaultDateLayout = "02/01/2006"

// InputDateLayouts are all date shapes the OCR or model might produce,
// tried in order; first match wins.
var InputDateLayouts = []string{
	"02/01/2006",    // 26/01/2026
	"02-01-2006",    // 26-01-2026
	"2006-01-02",    // 2026-01-26
	"02/01/06",      // 26/01/26
	"2 Jan 2006",    // 26 Jan 2026
	"2 January 2006", // 26 January 2026
	"2006/01/02",    // 2026/01/26
	"01/02/2006",    // 01/26/2026 (month first)
}

var reNonAmount = regexp.MustCompile(`[^\d.]`)
var reWhitespace = regexp.MustCompile(`\s+`)

// Date parses a date string from any supported layout and reformats it to
// targetLayout. Unparseable input passes through unchanged so data is never
// silently dropped; validation flags it downstream.
func Date(value *string, targetLayout string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	for _, layout := range InputDateLayouts {
		if parsed, err := time.Parse(layout, v); err == nil {
			return entity.Str(parsed.Format(targetLayout))
		}
	}
	return entity.Str(v)
}

// Amount strips currency symbols, commas and whitespace and parses the rest
// as a decimal. Empty or unparseable input yields nil.
func Amount(value string) *float64 {
	cleaned := reNonAmount.ReplaceAllString(value, "")
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return entity.Num(f)
}

// Identifier uppercases a policy/member number and strips all whitespace.
func Identifier(value *string) *string {
	if value == nil {
		return nil
	}
	v := reWhitespace.ReplaceAllString(strings.ToUpper(strings.TrimSpace(*value)), "")
	if v == "" {
		return nil
	}
	return entity.Str(v)
}

// String trims a plain string field; empty becomes nil.
func String(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return entity.Str(v)
}

// Canonical applies all per-field normalizations to a record in one pass and
// returns a new record; the input is never mutated. dateLayout is the
// insurer-configured target layout for every date field.
func Canonical(r *entity.CanonicalRecord, dateLayout string) *entity.CanonicalRecord {
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}

	out := entity.NewCanonicalRecord()
	out.PatientName = String(r.PatientName)
	out.HospitalName = String(r.HospitalName)
	out.DoctorName = String(r.DoctorName)
	out.ICDCode = String(r.ICDCode)
	out.Insurer = String(r.Insurer)
	out.Currency = String(r.Currency)
	out.InvoiceDate = Date(r.InvoiceDate, dateLayout)
	out.PolicyNumber = Identifier(r.PolicyNumber)
	out.InvoiceNumber = String(r.InvoiceNumber)
	out.TotalAmount = r.TotalAmount

	for _, item := range r.LineItems {
		out.LineItems = append(out.LineItems, entity.LineItem{
			LineNumber:  item.LineNumber,
			Description: String(item.Description),
			TariffCode:  String(item.TariffCode),
			Date:        Date(item.Date, dateLayout),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
		})
	}
	if out.LineItems == nil {
		out.LineItems = []entity.LineItem{}
	}

	return out
}
