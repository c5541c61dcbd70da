package extraction

import (
	"fmt"
	"strings"
)

// Lean JSON template shown inside the prompt. Line items are always left
// empty: the table extractor owns them, so an example item would spend
// tokens for nothing.
const leanSchema = `{
  "patient_name": null,
  "invoice_number": null,
  "invoice_date": null,
  "hospital_name": null,
  "doctor_name": null,
  "icd_code": null,
  "insurer": null,
  "policy_number": null,
  "total_amount": null,
  "currency": null,
  "line_items": []
}`

// hintOrder fixes the order hints appear in the prompt so identical input
// always produces an identical prompt.
var hintOrder = []string{"policy_number", "invoice_number"}

// buildPrompt assembles the extraction instruction: field guidance, the
// structural hints as high-trust suggestions, and the exact JSON template.
func buildPrompt(cleanText string, hints map[string]string) string {
	var hintBlock strings.Builder
	if len(hints) > 0 {
		hintBlock.WriteString("\nPre-extracted fields (use these if uncertain):\n")
		for _, field := range hintOrder {
			if value, ok := hints[field]; ok {
				fmt.Fprintf(&hintBlock, "  %s: %s\n", field, value)
			}
		}
	}

	return fmt.Sprintf(`You are a medical invoice data extraction system.

Extract header fields from the OCR text.
Return ONLY valid JSON. No explanation. No markdown. Raw JSON only.

Fields:
patient_name, invoice_number, invoice_date, hospital_name, doctor_name,
icd_code, insurer, policy_number, total_amount (number only), currency,
line_items (always leave as []).

Use null for missing fields. Never add extra fields.
%s
Schema:
%s

OCR TEXT:
"""
%s
"""
`, hintBlock.String(), leanSchema, cleanText)
}

// dedupeLines drops blank and exactly repeated lines, preserving first-seen
// order. OCR frequently duplicates letterhead blocks.
func dedupeLines(text string) string {
	seen := make(map[string]struct{})
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		lines = append(lines, s)
	}
	return strings.Join(lines, "\n")
}
