package entity

// Canonical field names. Every extraction converges to this fixed set before
// any insurer-specific mapping happens; insurer output schemas reference
// canonical fields by these names.
const (
	FieldPatientName   = "patient_name"
	FieldInvoiceNumber = "invoice_number"
	FieldInvoiceDate   = "invoice_date"
	FieldHospitalName  = "hospital_name"
	FieldDoctorName    = "doctor_name"
	FieldICDCode       = "icd_code"
	FieldInsurer       = "insurer"
	FieldPolicyNumber  = "policy_number"
	FieldTotalAmount   = "total_amount"
	FieldCurrency      = "currency"
	FieldLineItems     = "line_items"
)

// CanonicalRecord is the insurer-agnostic record all extraction converges to.
// Scalar fields are pointers: nil means the field could not be recovered.
type CanonicalRecord struct {
	PatientName   *string    `json:"patient_name"`
	InvoiceNumber *string    `json:"invoice_number"`
	InvoiceDate   *string    `json:"invoice_date"`
	HospitalName  *string    `json:"hospital_name"`
	DoctorName    *string    `json:"doctor_name"`
	ICDCode       *string    `json:"icd_code"`
	Insurer       *string    `json:"insurer"`
	PolicyNumber  *string    `json:"policy_number"`
	TotalAmount   *float64   `json:"total_amount"`
	Currency      *string    `json:"currency"`
	LineItems     []LineItem `json:"line_items"`
}

// LineItem is one billed service row. The table extractor is authoritative
// for the numeric fields; a model may only fill description/code gaps.
type LineItem struct {
	LineNumber  *int     `json:"line_number,omitempty"`
	Description *string  `json:"description"`
	TariffCode  *string  `json:"tariff_code"`
	Date        *string  `json:"date"`
	Quantity    *float64 `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	Amount      *float64 `json:"amount"`
}

// NewCanonicalRecord returns an all-null record with an empty item list.
func NewCanonicalRecord() *CanonicalRecord {
	return &CanonicalRecord{LineItems: []LineItem{}}
}

// AsMap flattens the record into canonical-field-name keyed values with
// pointers dereferenced (nil for absent fields). Used by the mapping engine.
func (r *CanonicalRecord) AsMap() map[string]any {
	m := map[string]any{
		FieldPatientName:   deref(r.PatientName),
		FieldInvoiceNumber: deref(r.InvoiceNumber),
		FieldInvoiceDate:   deref(r.InvoiceDate),
		FieldHospitalName:  deref(r.HospitalName),
		FieldDoctorName:    deref(r.DoctorName),
		FieldICDCode:       deref(r.ICDCode),
		FieldInsurer:       deref(r.Insurer),
		FieldPolicyNumber:  deref(r.PolicyNumber),
		FieldCurrency:      deref(r.Currency),
		FieldLineItems:     r.LineItems,
	}
	if r.TotalAmount != nil {
		m[FieldTotalAmount] = *r.TotalAmount
	} else {
		m[FieldTotalAmount] = nil
	}
	return m
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// Num returns a pointer to f.
func Num(f float64) *float64 { return &f }
