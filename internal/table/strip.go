package table

import (
	"regexp"
	"strings"
)

// Diagnosis-bearing lines re-emerge from inside a stripped table region
// because they carry the ICD code.
var reDiagnosisLine = regexp.MustCompile(`(?i)^(ICD|Z\d|J\d|DIAGNOSIS)`)

// StripSection removes the billing table region from OCR text. The table
// rows are handled entirely by the extractor; sending them to a model wastes
// token budget and makes it confuse table numerics with header field values.
func StripSection(ocrText string) string {
	var result []string
	inTable := false

	for _, line := range strings.Split(ocrText, "\n") {
		stripped := strings.TrimSpace(line)

		if len(reHeaderKeywords.FindAllString(stripped, -1)) >= 2 {
			inTable = true
			continue
		}

		if inTable {
			if reDiagnosisLine.MatchString(stripped) {
				inTable = false
				result = append(result, line)
			}
			continue
		}

		result = append(result, line)
	}

	return strings.Join(result, "\n")
}
