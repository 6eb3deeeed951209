package scan

import (
	"fmt"
	"time"
)

// Field names a correctable extracted field.
type Field string

const (
	FieldNombre Field = "nombre"
	FieldCURP   Field = "curp"
)

// ParseField validates a field name coming from an external caller.
func ParseField(name string) (Field, error) {
	switch Field(name) {
	case FieldNombre:
		return FieldNombre, nil
	case FieldCURP:
		return FieldCURP, nil
	default:
		return "", fmt.Errorf("unknown field %q", name)
	}
}

// FieldResult is one extracted text field with its review state.
type FieldResult struct {
	Text        string     `json:"text"`
	Confidence  float64    `json:"confidence"`
	NeedsReview bool       `json:"needs_review"`
	CorrectedBy string     `json:"corrected_by,omitempty"`
	CorrectedAt *time.Time `json:"corrected_at,omitempty"`
}

// OMRResult is the bubble-grading outcome for a sheet.
type OMRResult struct {
	Score   int    `json:"score"`
	Answers []bool `json:"answers"`
	Total   int    `json:"total"`
}

// CorrectionError reports a correction that cannot be applied.
type CorrectionError struct {
	Field  Field
	Reason string
}

func (e *CorrectionError) Error() string {
	return fmt.Sprintf("cannot correct field %q: %s", e.Field, e.Reason)
}

// ApplyCorrection overwrites one field with a human-provided value,
// records who corrected it and when, and clears that field's review
// flag. The scan completes only once neither field needs review.
func (r *Result) ApplyCorrection(field Field, value, correctedBy string) error {
	if r.Status != StatusNeedsReview {
		return &CorrectionError{Field: field, Reason: fmt.Sprintf("scan status is %s", r.Status)}
	}

	var target *FieldResult
	switch field {
	case FieldNombre:
		target = r.Nombre
	case FieldCURP:
		target = r.CURP
	default:
		return &CorrectionError{Field: field, Reason: "unknown field"}
	}
	if target == nil {
		return &CorrectionError{Field: field, Reason: "no extraction result present"}
	}

	now := time.Now().UTC()
	target.Text = value
	target.CorrectedBy = correctedBy
	target.CorrectedAt = &now
	target.NeedsReview = false

	if !r.fieldNeedsReview() {
		return r.Transition(StatusCompleted)
	}
	return nil
}

// fieldNeedsReview reports whether any extracted field still awaits a
// human correction. A missing field counts as unresolved.
func (r *Result) fieldNeedsReview() bool {
	if r.Nombre == nil || r.Nombre.NeedsReview {
		return true
	}
	if r.CURP == nil || r.CURP.NeedsReview {
		return true
	}
	return false
}
