package extraction

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Dee-Olulo/OCR-system/internal/domain/entity"
	"github.com/Dee-Olulo/OCR-system/internal/table"
	"go.uber.org/zap"
)

var reNonNumeric = regexp.MustCompile(`[^\d.]`)

// Orchestrator turns raw OCR text into a canonical record. It combines
// structural hint extraction, heuristic table extraction and a model call
// over the table-stripped remainder, then merges the three sources. The
// table extractor is authoritative for all line-item numerics; the model
// may only fill description and code gaps.
type Orchestrator struct {
	client CompletionClient
	table  *table.Extractor
	logger *zap.Logger
}

// NewOrchestrator creates a canonical extraction orchestrator.
func NewOrchestrator(client CompletionClient, tableExtractor *table.Extractor, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		client: client,
		table:  tableExtractor,
		logger: logger,
	}
}

// Extract runs the full pipeline. It never fails: every internal failure
// degrades to a best-effort record so downstream stages can still succeed
// from hints and table data alone. aliasMap ({insurer key: aliases}) enables
// raw-text insurer fallback detection and may be nil.
func (o *Orchestrator) Extract(ctx context.Context, rawText string, aliasMap map[string][]string) (*entity.CanonicalRecord, entity.TableValidation) {
	if strings.TrimSpace(rawText) == "" {
		return entity.NewCanonicalRecord(), entity.TableValidation{
			Discrepancies: []string{"No text provided"},
		}
	}

	// Hints and table extraction both read only the untouched raw text.
	hints := StructuralHints(rawText)
	o.logger.Info("Structural hints extracted", zap.Int("count", len(hints)))

	tableResult := o.table.Extract(rawText)
	o.logger.Info("Table extraction finished",
		zap.Int("items", len(tableResult.LineItems)),
		zap.Bool("total_match", tableResult.TotalMatch))

	// Lean model input: table rows stripped, exact duplicates dropped.
	cleanText := dedupeLines(table.StripSection(rawText))
	o.logger.Info("Model input prepared",
		zap.Int("chars", len(cleanText)),
		zap.Int("raw_chars", len(rawText)))

	prompt := buildPrompt(cleanText, hints)

	var raw string
	if o.client != nil {
		response, err := o.client.Complete(ctx, prompt)
		if err != nil {
			o.logger.Warn("Completion call failed, continuing without model output", zap.Error(err))
		} else {
			raw = response
		}
	}

	parsed, parseOK := map[string]any(nil), false
	if raw != "" {
		parsed, parseOK = parseModelResponse(raw)
		if !parseOK {
			o.logger.Warn("All JSON recovery passes failed",
				zap.String("preview", preview(raw, 300)))
		}
	}

	var canonical *entity.CanonicalRecord
	if parseOK {
		canonical = enforceCanonical(parsed)
	} else {
		// Structural hints and table data still save the record.
		canonical = entity.NewCanonicalRecord()
	}

	o.backfillFromHints(canonical, hints)
	o.backfillTotal(canonical, tableResult.ClaimedTotal)
	if canonical.Insurer == nil && len(aliasMap) > 0 {
		o.backfillInsurerFromText(canonical, rawText, aliasMap)
	}

	canonical.LineItems = mergeLineItems(tableResult.LineItems, canonical.LineItems)

	validation := entity.TableValidation{
		ClaimedTotal:    tableResult.ClaimedTotal,
		ComputedTotal:   tableResult.ComputedTotal,
		TotalMatch:      tableResult.TotalMatch,
		Discrepancies:   tableResult.Discrepancies,
		TableConfidence: tableResult.Confidence,
		ModelParseOK:    parseOK,
	}
	return canonical, validation
}

// enforceCanonical reduces arbitrary model output to exactly the canonical
// field set; unmatched fields are dropped, and each line item is reduced to
// its six recognized sub-fields.
func enforceCanonical(data map[string]any) *entity.CanonicalRecord {
	r := entity.NewCanonicalRecord()
	r.PatientName = toStringPtr(data[entity.FieldPatientName])
	r.InvoiceNumber = toStringPtr(data[entity.FieldInvoiceNumber])
	r.InvoiceDate = toStringPtr(data[entity.FieldInvoiceDate])
	r.HospitalName = toStringPtr(data[entity.FieldHospitalName])
	r.DoctorName = toStringPtr(data[entity.FieldDoctorName])
	r.ICDCode = toStringPtr(data[entity.FieldICDCode])
	r.Insurer = toStringPtr(data[entity.FieldInsurer])
	r.PolicyNumber = toStringPtr(data[entity.FieldPolicyNumber])
	r.TotalAmount = toFloatPtr(data[entity.FieldTotalAmount])
	r.Currency = toStringPtr(data[entity.FieldCurrency])

	if items, ok := data[entity.FieldLineItems].([]any); ok {
		for _, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			r.LineItems = append(r.LineItems, entity.LineItem{
				Description: toStringPtr(item["description"]),
				TariffCode:  toStringPtr(item["tariff_code"]),
				Quantity:    toFloatPtr(item["quantity"]),
				UnitPrice:   toFloatPtr(item["unit_price"]),
				Amount:      toFloatPtr(item["amount"]),
				Date:        toStringPtr(item["date"]),
			})
		}
	}
	return r
}

// backfillFromHints fills nulls from structurally extracted values.
func (o *Orchestrator) backfillFromHints(r *entity.CanonicalRecord, hints map[string]string) {
	if v, ok := hints["policy_number"]; ok && r.PolicyNumber == nil {
		r.PolicyNumber = entity.Str(v)
		o.logger.Info("Backfilled policy_number from structural hints")
	}
	if v, ok := hints["invoice_number"]; ok && r.InvoiceNumber == nil {
		r.InvoiceNumber = entity.Str(v)
		o.logger.Info("Backfilled invoice_number from structural hints")
	}
}

// backfillTotal fills total_amount from the table's claimed grand total.
func (o *Orchestrator) backfillTotal(r *entity.CanonicalRecord, claimedTotal *float64) {
	if r.TotalAmount == nil && claimedTotal != nil {
		r.TotalAmount = entity.Num(*claimedTotal)
		o.logger.Info("Backfilled total_amount from table", zap.Float64("total", *claimedTotal))
	}
}

// backfillInsurerFromText is the last-resort insurer detection: scan the raw
// OCR text for any configured alias substring. Keys are visited in sorted
// order so repeated runs pick the same alias.
func (o *Orchestrator) backfillInsurerFromText(r *entity.CanonicalRecord, ocrText string, aliasMap map[string][]string) {
	textUpper := strings.ToUpper(ocrText)

	keys := make([]string, 0, len(aliasMap))
	for key := range aliasMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, alias := range aliasMap[key] {
			if alias != "" && strings.Contains(textUpper, strings.ToUpper(alias)) {
				r.Insurer = entity.Str(alias)
				o.logger.Info("Insurer detected from raw text",
					zap.String("insurer", key),
					zap.String("alias", alias))
				return
			}
		}
	}
}

// mergeLineItems combines table-extracted items with model items. Table
// items win on every numeric field; at matching index positions the model
// may fill a missing description or tariff code. When the table found
// nothing, model items pass through unchanged.
func mergeLineItems(tableItems, modelItems []entity.LineItem) []entity.LineItem {
	if len(tableItems) == 0 {
		if modelItems == nil {
			return []entity.LineItem{}
		}
		return modelItems
	}

	merged := make([]entity.LineItem, 0, len(tableItems))
	for i, item := range tableItems {
		if i < len(modelItems) {
			if item.Description == nil && modelItems[i].Description != nil {
				item.Description = modelItems[i].Description
			}
			if item.TariffCode == nil && modelItems[i].TariffCode != nil {
				item.TariffCode = modelItems[i].TariffCode
			}
		}
		merged = append(merged, item)
	}
	return merged
}

func toStringPtr(v any) *string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return entity.Str(t)
	case float64:
		return entity.Str(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return nil
	}
}

func toFloatPtr(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return entity.Num(t)
	case string:
		cleaned := reNonNumeric.ReplaceAllString(t, "")
		if cleaned == "" {
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return entity.Num(f)
	default:
		return nil
	}
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
