// Package support provides the scenario state and step definitions for
// the grading workflow feature suite.
package support

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MeKo-Tech/bubblegrade/internal/fields"
	"github.com/MeKo-Tech/bubblegrade/internal/grading"
	"github.com/MeKo-Tech/bubblegrade/internal/notify"
	"github.com/MeKo-Tech/bubblegrade/internal/ocr"
	"github.com/MeKo-Tech/bubblegrade/internal/omr"
	"github.com/MeKo-Tech/bubblegrade/internal/pipeline"
	"github.com/MeKo-Tech/bubblegrade/internal/scan"
	"github.com/MeKo-Tech/bubblegrade/internal/store"
	"github.com/MeKo-Tech/bubblegrade/internal/testutil"
)

// TestContext holds the state for one grading workflow scenario.
type TestContext struct {
	// Scenario inputs
	Sheet     testutil.SheetConfig
	AnswerKey []string
	Upload    []byte

	// Collaborators
	Engine   *StubEngine
	Store    *store.Memory
	Recorder *EventRecorder

	// Outcome
	Controller *pipeline.Controller
	Result     *scan.Result
	ProcessErr error
	CorrectErr error
}

// NewTestContext creates a fresh scenario context with a default sheet
// and confident engine replies.
func NewTestContext() (*TestContext, error) {
	return &TestContext{
		Sheet: testutil.DefaultSheetConfig(),
		Engine: &StubEngine{
			Nombre: StubReply{Text: "ANA TORRES", Confidence: 95},
			CURP:   StubReply{Text: "PEGJ850315HJCRRN09", Confidence: 96},
		},
		Store:    store.NewMemory(),
		Recorder: &EventRecorder{},
	}, nil
}

// Cleanup releases scenario resources. The suite runs fully in memory,
// so only the references are dropped.
func (testCtx *TestContext) Cleanup() error {
	testCtx.Controller = nil
	testCtx.Result = nil
	return nil
}

// buildController assembles the pipeline once all Given steps have
// described the scenario.
func (testCtx *TestContext) buildController() error {
	omrCfg := omr.DefaultConfig()
	omrCfg.AnswerKey = testCtx.AnswerKey
	grader, err := omr.NewGrader(omrCfg)
	if err != nil {
		return fmt.Errorf("create grader: %w", err)
	}
	extractor, err := fields.NewExtractor(testCtx.Engine)
	if err != nil {
		return fmt.Errorf("create extractor: %w", err)
	}
	backend, err := grading.NewLocal(grader, extractor)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}

	controller, err := pipeline.NewBuilder().
		WithBackend(backend).
		WithStore(testCtx.Store).
		WithNotifier(testCtx.Recorder).
		WithMetricsRegistry(prometheus.NewRegistry()).
		Build()
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	testCtx.Controller = controller
	return nil
}

// uploadBytes returns the scenario upload: either the explicitly staged
// bytes or a rendering of the described sheet.
func (testCtx *TestContext) uploadBytes() ([]byte, error) {
	if testCtx.Upload != nil {
		return testCtx.Upload, nil
	}
	return testutil.EncodePNG(testutil.GenerateSheet(testCtx.Sheet))
}

// StubReply scripts one recognition answer.
type StubReply struct {
	Text       string
	Confidence float64
	Err        error
}

// StubEngine answers recognition calls from the scenario script. CURP
// extraction is the only caller passing a character whitelist, which is
// how the two fields are told apart.
type StubEngine struct {
	Nombre StubReply
	CURP   StubReply
}

// Recognize implements ocr.Engine.
func (s *StubEngine) Recognize(_ context.Context, _ image.Image, opts ocr.Options) (*ocr.Result, error) {
	reply := s.Nombre
	if opts.Whitelist != "" {
		reply = s.CURP
	}
	if reply.Err != nil {
		return nil, reply.Err
	}
	return &ocr.Result{
		Text:  reply.Text,
		Words: []ocr.Word{{Text: reply.Text, Confidence: reply.Confidence}},
	}, nil
}

// EventRecorder captures published scan events in order.
type EventRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

// Publish implements notify.Notifier.
func (r *EventRecorder) Publish(event notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Statuses returns the recorded event statuses in publish order.
func (r *EventRecorder) Statuses() []scan.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]scan.Status, len(r.events))
	for i, e := range r.events {
		out[i] = e.Status
	}
	return out
}
