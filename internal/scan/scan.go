package scan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a scan.
type Status string

const (
	StatusQueued      Status = "QUEUED"
	StatusProcessing  Status = "PROCESSING"
	StatusCompleted   Status = "COMPLETED"
	StatusError       Status = "ERROR"
	StatusNeedsReview Status = "NEEDS_REVIEW"
)

// Terminal reports whether the status ends automatic processing.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusNeedsReview:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusError, StatusNeedsReview:
		return true
	default:
		return false
	}
}

// TransitionError reports an illegal status transition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

// canTransition encodes the scan state machine:
// QUEUED -> PROCESSING -> {COMPLETED | NEEDS_REVIEW | ERROR},
// NEEDS_REVIEW -> COMPLETED via corrections. ERROR is terminal.
func canTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusNeedsReview || to == StatusError
	case StatusNeedsReview:
		return to == StatusCompleted
	default:
		return false
	}
}

// Result is the aggregate record produced for one uploaded sheet.
type Result struct {
	ID            uuid.UUID    `json:"id"`
	Filename      string       `json:"filename"`
	Status        Status       `json:"status"`
	Regions       *RegionSet   `json:"regions,omitempty"`
	OMR           *OMRResult   `json:"omr,omitempty"`
	Nombre        *FieldResult `json:"nombre,omitempty"`
	CURP          *FieldResult `json:"curp,omitempty"`
	Quality       *Quality     `json:"quality,omitempty"`
	UploadTime    time.Time    `json:"upload_time"`
	ProcessedTime *time.Time   `json:"processed_time,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
}

// NewResult creates a queued scan record for an uploaded file.
func NewResult(filename string) *Result {
	return &Result{
		ID:         uuid.New(),
		Filename:   filename,
		Status:     StatusQueued,
		UploadTime: time.Now().UTC(),
	}
}

// Transition moves the scan to a new status, enforcing the state machine.
func (r *Result) Transition(to Status) error {
	if !canTransition(r.Status, to) {
		return &TransitionError{From: r.Status, To: to}
	}
	r.Status = to
	return nil
}

// Fail records a fatal processing failure. Partial results already set on
// the record are kept for diagnostics. Failing is allowed from any
// non-terminal state.
func (r *Result) Fail(message string) {
	r.Status = StatusError
	r.ErrorMessage = message
	now := time.Now().UTC()
	r.ProcessedTime = &now
}

// Finish stamps the processing time and moves to the terminal status.
func (r *Result) Finish(to Status) error {
	if err := r.Transition(to); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.ProcessedTime = &now
	return nil
}

// Quality carries image-quality metrics measured on the uploaded sheet.
type Quality struct {
	Resolution string  `json:"resolution"`
	Clarity    float64 `json:"clarity"`
	SkewAngle  float64 `json:"skew_angle"`
}

// Clone returns a deep copy of the record, so callers holding the
// original cannot mutate stored state through shared pointers.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	if r.Regions != nil {
		regions := *r.Regions
		out.Regions = &regions
	}
	if r.OMR != nil {
		omr := *r.OMR
		omr.Answers = append([]bool(nil), r.OMR.Answers...)
		out.OMR = &omr
	}
	out.Nombre = r.Nombre.clone()
	out.CURP = r.CURP.clone()
	if r.Quality != nil {
		quality := *r.Quality
		out.Quality = &quality
	}
	if r.ProcessedTime != nil {
		processed := *r.ProcessedTime
		out.ProcessedTime = &processed
	}
	return &out
}

func (f *FieldResult) clone() *FieldResult {
	if f == nil {
		return nil
	}
	out := *f
	if f.CorrectedAt != nil {
		corrected := *f.CorrectedAt
		out.CorrectedAt = &corrected
	}
	return &out
}
