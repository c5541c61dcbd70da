package table

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Dee-Olulo/OCR-system/internal/domain/entity"
	"go.uber.org/zap"
)

var (
	// Row that starts with a 1-2 digit line number.
	reLineStart = regexp.MustCompile(`^(\d{1,2})\s+`)

	// Numeric tariff / procedure code (4-6 digits, not a date or amount).
	reTariffCode = regexp.MustCompile(`\b(\d{4,6})\b`)

	// Date: DD/MM/YYYY, DD/MM/YY, DD-MM-YYYY, YYYY-MM-DD. Intentionally also
	// catches the partial OCR split "26/01/202" with the last digit on the
	// next line.
	reDate = regexp.MustCompile(`\b(\d{2}[/\-]\d{2}[/\-]\d{2,4})\b`)

	// Decimal amounts: 1,234.56 or 1234.56.
	reAmount = regexp.MustCompile(`\b\d{1,3}(?:,\d{3})*\.\d{2}\b`)

	// Small integer for quantity, applied only within the pre-date segment.
	reQuantity = regexp.MustCompile(`\b[1-9]\d?\b`)

	// Header line: must hit >= 2 of these keywords to count as a table header.
	reHeaderKeywords = regexp.MustCompile(`(?i)\b(LINE|TARIFF|DESCRIPTION|QTY|QUANTITY|UNIT|PRICE|AMOUNT|DATE|TOOTH|SERVICE)\b`)

	// Total / subtotal rows.
	reTotalRow = regexp.MustCompile(`(?i)^\s*(total|sub[-\s]?total|grand\s+total|amount\s+due|balance)`)

	// Rows that are purely numeric separators / summary lines.
	reNumericRow = regexp.MustCompile(`^[\d\s|,.]+$`)

	// Sections that terminate the table region.
	reSectionEnd = regexp.MustCompile(`(?i)^(ICD|DIAGNOSIS|COUNCIL|DOCTOR'?S?\s+SIGN|AUTHORIS)`)

	reTrailingDigit = regexp.MustCompile(`\b(\d)\s*$`)
	rePipeSpace     = regexp.MustCompile(`[|\s]+`)
	reMultiSpace    = regexp.MustCompile(`\s{2,}`)
)

// Extractor recovers line items from OCR text using structure-aware
// heuristics. It works across invoice layouts without hardcoding column
// positions; the only structural assumption is that each item row begins
// with a 1-2 digit row number. The amount-column order
// (unit price, fee charged, award, shortfall, excess) is fixed and not
// configurable per insurer.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a new table extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract runs the full table extraction pipeline over raw OCR text.
// It never fails: when no table is detected the result degrades to
// TableDetected=false with an explanatory discrepancy.
func (e *Extractor) Extract(ocrText string) entity.TableResult {
	var lines []string
	for _, l := range strings.Split(ocrText, "\n") {
		lines = append(lines, strings.TrimRight(l, " \t\r"))
	}

	tableLines, header := detectTable(lines)
	if len(tableLines) == 0 {
		e.logger.Info("No table detected in OCR text")
		return entity.TableResult{
			LineItems:     []entity.LineItem{},
			TotalMatch:    false,
			Discrepancies: []string{"No line-item table detected in document"},
			TableDetected: false,
			Confidence:    0,
		}
	}

	e.logger.Info("Table detected",
		zap.Int("rows", len(tableLines)),
		zap.String("header", header))

	merged := mergeContinuations(tableLines)
	claimedTotal := extractClaimedTotal(merged)

	var items []entity.LineItem
	for _, row := range merged {
		if !isItemRow(row) {
			continue
		}
		item, err := parseItemRow(row)
		if err != nil {
			e.logger.Warn("Failed to parse row", zap.String("row", row), zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	if items == nil {
		items = []entity.LineItem{}
	}

	computedTotal, totalMatch, discrepancies := validate(items, claimedTotal)
	confidence := scoreConfidence(items, totalMatch)

	e.logger.Info("Table extraction complete",
		zap.Int("items", len(items)),
		zap.Bool("total_match", totalMatch),
		zap.Float64("confidence", confidence))

	return entity.TableResult{
		LineItems:     items,
		ClaimedTotal:  claimedTotal,
		ComputedTotal: computedTotal,
		TotalMatch:    totalMatch,
		Discrepancies: discrepancies,
		TableDetected: true,
		Confidence:    confidence,
	}
}

// detectTable finds the block of lines containing the billing table: a header
// line with >= 2 table keywords, then rows until two consecutive blanks or a
// clearly non-table section appears.
func detectTable(lines []string) ([]string, string) {
	headerIdx := -1
	for i, line := range lines {
		if len(reHeaderKeywords.FindAllString(line, -1)) >= 2 {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, ""
	}

	var tableLines []string
	blankStreak := 0
	for _, line := range lines[headerIdx+1:] {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			blankStreak++
			if blankStreak >= 2 {
				break
			}
			continue
		}
		blankStreak = 0

		if reSectionEnd.MatchString(stripped) {
			break
		}
		tableLines = append(tableLines, stripped)
	}

	return tableLines, lines[headerIdx]
}

// mergeContinuations joins OCR-wrapped rows. A row starting with a 1-2 digit
// number begins a new item; any other row is appended to the previous one.
// Total-like and purely numeric summary rows stay standalone so they are
// never folded into an item.
func mergeContinuations(lines []string) []string {
	var merged []string
	for _, line := range lines {
		if line == "" {
			continue
		}
		if reTotalRow.MatchString(line) || reNumericRow.MatchString(line) {
			merged = append(merged, line)
			continue
		}
		if reLineStart.MatchString(line) {
			merged = append(merged, line)
		} else if len(merged) > 0 {
			merged[len(merged)-1] += " " + line
		}
	}
	return merged
}

// extractClaimedTotal scans merged rows in reverse and returns the largest
// decimal amount in the first total-like or purely numeric row.
func extractClaimedTotal(rows []string) *float64 {
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if !reTotalRow.MatchString(row) && !reNumericRow.MatchString(row) {
			continue
		}
		var largest *float64
		for _, raw := range reAmount.FindAllString(row, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
			if err != nil {
				continue
			}
			if largest == nil || v > *largest {
				largest = entity.Num(v)
			}
		}
		if largest != nil {
			return largest
		}
	}
	return nil
}

func isItemRow(row string) bool {
	return reLineStart.MatchString(row) && !reTotalRow.MatchString(row)
}

// parseItemRow parses one (possibly merged) item row.
//
// Extraction order: line number (leading digits), tariff code (first
// standalone 4-6 digit number), date (first date-shaped token after the
// code), quantity (lone small int in the pre-date segment only), amounts
// (all decimals in the post-date segment), description (remaining words).
//
// OCR often truncates a 4-digit year to 3 digits with the last digit
// isolated at line end. When the parsed year segment has exactly 3 digits we
// look for a lone digit at the END of the remaining text, not immediately
// after the date, which would grab the leading digit of an amount like
// "6,670.00" instead.
func parseItemRow(row string) (entity.LineItem, error) {
	var item entity.LineItem

	// 1. Line number
	rest := row
	if m := reLineStart.FindStringSubmatchIndex(row); m != nil {
		n, err := strconv.Atoi(row[m[2]:m[3]])
		if err != nil {
			return item, fmt.Errorf("line number: %w", err)
		}
		item.LineNumber = &n
		rest = row[m[1]:]
	}

	// 2. Tariff code
	afterCode := rest
	if m := reTariffCode.FindStringSubmatchIndex(rest); m != nil {
		code := rest[m[2]:m[3]]
		item.TariffCode = &code
		afterCode = strings.TrimLeft(rest[m[1]:], " |")
	}

	// 3. Date
	var rawDate string
	preDate, postDate := afterCode, ""
	if m := reDate.FindStringSubmatchIndex(afterCode); m != nil {
		rawDate = afterCode[m[2]:m[3]]
		preDate = afterCode[:m[0]]
		postDate = afterCode[m[1]:]
	}

	// Reattach an OCR-split final year digit.
	if rawDate != "" {
		parts := strings.FieldsFunc(rawDate, func(r rune) bool { return r == '/' || r == '-' })
		if len(parts[len(parts)-1]) == 3 {
			if m := reTrailingDigit.FindStringSubmatch(strings.TrimSpace(postDate)); m != nil {
				rawDate += m[1]
				// Drop the consumed digit so it is not re-read as a
				// continuation word or amount.
				if idx := strings.LastIndex(postDate, m[1]); idx >= 0 {
					postDate = strings.TrimRight(postDate[:idx], " \t")
				}
			}
		}
		item.Date = &rawDate
	}

	// 4. Quantity, pre-date segment only
	if m := reQuantity.FindStringIndex(preDate); m != nil {
		q, err := strconv.ParseFloat(preDate[m[0]:m[1]], 64)
		if err != nil {
			return item, fmt.Errorf("quantity: %w", err)
		}
		item.Quantity = &q
		preDate = preDate[:m[0]] + preDate[m[1]:]
	}

	// 5. Amounts, post-date segment. Some layouts print the date last; when
	// nothing follows it, fall back to the decimals before the date and keep
	// them out of the description.
	var amounts []float64
	for _, raw := range reAmount.FindAllString(postDate, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			return item, fmt.Errorf("amount %q: %w", raw, err)
		}
		amounts = append(amounts, v)
	}
	if len(amounts) == 0 {
		for _, raw := range reAmount.FindAllString(preDate, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
			if err != nil {
				return item, fmt.Errorf("amount %q: %w", raw, err)
			}
			amounts = append(amounts, v)
		}
		if len(amounts) > 0 {
			preDate = reAmount.ReplaceAllString(preDate, "")
		}
	}

	// 6. Description: pre-date words plus non-numeric leftover after the date
	continuation := strings.TrimSpace(rePipeSpace.ReplaceAllString(reAmount.ReplaceAllString(postDate, ""), " "))
	desc := strings.TrimSpace(rePipeSpace.ReplaceAllString(preDate, " "))
	if continuation != "" {
		desc = strings.TrimSpace(desc + " " + continuation)
	}
	desc = strings.TrimSpace(strings.Trim(reMultiSpace.ReplaceAllString(desc, " "), "/ ,"))
	if desc != "" {
		item.Description = &desc
	}

	// 7. Amount columns, fixed order:
	//    UNIT PRICE | FEE CHARGED | AWARD | SHORTFALL | EXCESS
	if len(amounts) >= 1 {
		item.UnitPrice = entity.Num(amounts[0])
	}
	switch {
	case len(amounts) >= 3:
		item.Amount = entity.Num(amounts[2]) // AWARD column
	case len(amounts) == 2:
		item.Amount = entity.Num(amounts[1])
	case len(amounts) == 1:
		item.Amount = entity.Num(amounts[0])
	}

	return item, nil
}

// validate runs two checks: the sum of item amounts against the claimed
// total, and per-item quantity x unit price against the item amount.
func validate(items []entity.LineItem, claimedTotal *float64) (*float64, bool, []string) {
	var discrepancies []string

	var sum float64
	haveAmount := false
	for _, li := range items {
		if li.Amount != nil {
			sum += *li.Amount
			haveAmount = true
		}
	}

	var computedTotal *float64
	if haveAmount {
		computedTotal = entity.Num(round2(sum))
	}

	totalMatch := false
	switch {
	case computedTotal != nil && claimedTotal != nil:
		diff := math.Abs(*computedTotal - *claimedTotal)
		totalMatch = diff < 0.02
		if !totalMatch {
			discrepancies = append(discrepancies, fmt.Sprintf(
				"Total mismatch: computed %.2f != claimed %.2f (diff %.2f)",
				*computedTotal, *claimedTotal, diff))
		}
	case claimedTotal == nil:
		discrepancies = append(discrepancies, "No claimed total found - cannot verify sum")
	default:
		discrepancies = append(discrepancies, "No line item amounts extracted - cannot verify sum")
	}

	for _, li := range items {
		if li.Quantity == nil || *li.Quantity == 0 ||
			li.UnitPrice == nil || *li.UnitPrice == 0 ||
			li.Amount == nil || *li.Amount == 0 {
			continue
		}
		expected := round2(*li.Quantity * *li.UnitPrice)
		if math.Abs(expected-*li.Amount) > 0.02 {
			lineNo := 0
			if li.LineNumber != nil {
				lineNo = *li.LineNumber
			}
			discrepancies = append(discrepancies, fmt.Sprintf(
				"Line %d: qty(%g) x unit(%.2f) = %.2f != amount(%.2f)",
				lineNo, *li.Quantity, *li.UnitPrice, expected, *li.Amount))
		}
	}

	return computedTotal, totalMatch, discrepancies
}

// scoreConfidence produces a 0.0-1.0 heuristic based on field population and
// the total check.
func scoreConfidence(items []entity.LineItem, totalMatch bool) float64 {
	if len(items) == 0 {
		return 0
	}

	n := float64(len(items))
	var hasDesc, hasAmount, hasTariff float64
	for _, li := range items {
		if li.Description != nil && *li.Description != "" {
			hasDesc++
		}
		if li.Amount != nil && *li.Amount != 0 {
			hasAmount++
		}
		if li.TariffCode != nil && *li.TariffCode != "" {
			hasTariff++
		}
	}

	score := hasDesc/n*0.3 + hasAmount/n*0.3 + hasTariff/n*0.2
	if totalMatch {
		score += 0.2
	}
	return round2(math.Min(score, 1.0))
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
