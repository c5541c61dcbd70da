package extraction

import (
	"regexp"
	"strings"
)

var (
	// OCR-noise-tolerant "MEMBER's No" label, as it appears in grid cells.
	reMemberLabel = regexp.MustCompile(`(?i)MEMBER'?S?\s*NO\b`)
	reMemberStrip = regexp.MustCompile(`(?i)MEMBER'?S?\s*NO\.?\s*`)
	reDigitRuns   = regexp.MustCompile(`\d+`)

	// Year-prefixed reference: YYYY sep MM sep DD sep/space digits.
	reInvoiceRef = regexp.MustCompile(`\b(\d{4}[_\-]\d{1,2}[_\-]\d{1,2}[_\-\s]?\d+)\b`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// StructuralHints recovers high-reliability fields directly from raw text
// via pattern matching. These fields are garbled by OCR in ways a model
// cannot reliably undo, so direct recovery beats model extraction for them.
// Best-effort: returns whatever matched, possibly nothing.
func StructuralHints(ocrText string) map[string]string {
	hints := make(map[string]string)

	for _, line := range strings.Split(ocrText, "\n") {
		s := strings.TrimSpace(line)

		// Member / policy number: strip the label, concatenate digit runs.
		if reMemberLabel.MatchString(s) {
			after := reMemberStrip.ReplaceAllString(s, "")
			digits := strings.Join(reDigitRuns.FindAllString(after, -1), "")
			if len(digits) >= 6 && len(digits) <= 20 {
				hints["policy_number"] = digits
			}
		}

		// Invoice number: first match wins.
		if _, ok := hints["invoice_number"]; !ok {
			if m := reInvoiceRef.FindStringSubmatch(s); m != nil {
				hints["invoice_number"] = reSpaces.ReplaceAllString(strings.TrimSpace(m[1]), "_")
			}
		}
	}

	return hints
}
