// Package pipeline implements the staged auto-processing orchestrator:
// Detect -> OCR -> Inpaint -> LlmGenerate -> Render across every loaded
// document (or a single one), with poll-based cancellation and progress
// broadcast over pkg/pubsub.
package pipeline

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koharu-go/koharu/pkg/document"
	"github.com/koharu-go/koharu/pkg/kerr"
	"github.com/koharu-go/koharu/pkg/ops"
	"github.com/koharu-go/koharu/pkg/pubsub"
)

// Step is one stage of the auto-processing pipeline, in fixed order.
type Step int

const (
	StepDetect Step = iota
	StepOCR
	StepInpaint
	StepLlmGenerate
	StepRender
)

// AllSteps is the fixed, closed step order every run executes.
var AllSteps = []Step{StepDetect, StepOCR, StepInpaint, StepLlmGenerate, StepRender}

func (s Step) String() string {
	switch s {
	case StepDetect:
		return "detect"
	case StepOCR:
		return "ocr"
	case StepInpaint:
		return "inpaint"
	case StepLlmGenerate:
		return "llm_generate"
	case StepRender:
		return "render"
	default:
		return "unknown"
	}
}

// Status is the closed set of progress-event states.
type Status int

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress is one broadcast progress event.
type Progress struct {
	Status            Status
	Step              *Step
	CurrentDocument   int
	TotalDocuments    int
	CurrentStepIndex  int
	TotalSteps        int
	OverallPercent    int
	Error             string
}

// Request describes one auto-processing invocation.
type Request struct {
	Index         *int // nil means every document
	LlmModelID    *string
	Language      *string
	ShaderEffect  *document.TextShaderEffect
	FontFamily    *string
}

// Broadcaster is the shared progress bus; one instance per process.
var Broadcaster = pubsub.NewBroadcaster[Progress]()

// Subscribe returns a channel of progress events, matching the command
// plane's notification-forwarder bridging.
func Subscribe() (<-chan Progress, func()) {
	return Broadcaster.Subscribe(256)
}

func emit(p Progress) { Broadcaster.Publish(p) }

// ComputePercent reproduces the exact half-away-from-zero rounding the
// reference implementation uses, so progress percentages match bit for
// bit across a port.
func ComputePercent(doc, step, totalDocs, totalSteps int) int {
	totalUnits := totalDocs * totalSteps
	if totalUnits == 0 {
		return 0
	}
	doneUnits := doc*totalSteps + step
	return int(roundHalfAwayFromZero(float64(doneUnits) / float64(totalUnits) * 100.0))
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int(v + 0.5))
	}
	return float64(int(v - 0.5))
}

// Handle tracks one in-flight run's cancellation flag.
type Handle struct {
	cancel atomic.Bool
}

// Cancel requests cooperative cancellation; the run checks this flag
// before each step and while waiting for the LLM to load.
func (h *Handle) Cancel() { h.cancel.Store(true) }

func (h *Handle) cancelled() bool { return h.cancel.Load() }

// Runner owns the single process-wide pipeline slot: at most one
// auto-processing run may be in flight at a time.
type Runner struct {
	mu      sync.Mutex
	running *Handle
}

// NewRunner constructs an empty Runner.
func NewRunner() *Runner { return &Runner{} }

// ErrAlreadyRunning is returned when Start is called while a run is active.
var ErrAlreadyRunning = kerr.New(kerr.ResourceUnavailable, "a processing pipeline is already running")

// Start launches a new run in the background, returning ErrAlreadyRunning
// if one is already in flight.
func (r *Runner) Start(resources ops.Resources, req Request) error {
	r.mu.Lock()
	if r.running != nil {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	h := &Handle{}
	r.running = h
	r.mu.Unlock()

	go func() {
		runInner(resources, req, h)
		r.mu.Lock()
		r.running = nil
		r.mu.Unlock()
	}()
	return nil
}

// Cancel requests cancellation of the in-flight run, if any.
func (r *Runner) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running != nil {
		r.running.Cancel()
	}
}

func runInner(resources ops.Resources, req Request, h *Handle) {
	err := run(resources, req, h)

	totalDocs := 1
	if req.Index == nil {
		totalDocs = resources.State.Count()
	}

	switch {
	case err == nil && h.cancelled():
		emit(Progress{Status: StatusCancelled, CurrentDocument: totalDocs, TotalDocuments: totalDocs, TotalSteps: len(AllSteps)})
	case err == nil:
		emit(Progress{Status: StatusCompleted, CurrentDocument: totalDocs, TotalDocuments: totalDocs, CurrentStepIndex: len(AllSteps), TotalSteps: len(AllSteps), OverallPercent: 100})
	default:
		emit(Progress{Status: StatusFailed, TotalDocuments: totalDocs, TotalSteps: len(AllSteps), Error: err.Error()})
	}
}

func run(resources ops.Resources, req Request, h *Handle) error {
	ctx := context.Background()

	totalDocs := resources.State.Count()
	startIndex, endIndex := 0, totalDocs
	if req.Index != nil {
		if *req.Index >= totalDocs {
			return kerr.New(kerr.NotFound, "document index out of range")
		}
		startIndex, endIndex, totalDocs = *req.Index, *req.Index+1, 1
	}
	if totalDocs == 0 {
		return nil
	}

	if req.LlmModelID != nil && !resources.LLM.Ready(ctx) {
		if err := resources.LLM.Load(ctx, *req.LlmModelID); err != nil {
			return err
		}
		for i := 0; i < 300; i++ {
			if resources.LLM.Ready(ctx) {
				break
			}
			time.Sleep(100 * time.Millisecond)
			if h.cancelled() {
				return nil
			}
		}
		if !resources.LLM.Ready(ctx) {
			return kerr.New(kerr.Timeout, "LLM failed to load within timeout")
		}
	}

	totalSteps := len(AllSteps)

	for docOrdinal, docIndex := 0, startIndex; docIndex < endIndex; docOrdinal, docIndex = docOrdinal+1, docIndex+1 {
		for stepOrdinal, step := range AllSteps {
			if h.cancelled() {
				return nil
			}

			overall := ComputePercent(docOrdinal, stepOrdinal, totalDocs, totalSteps)
			s := step
			emit(Progress{
				Status:           StatusRunning,
				Step:             &s,
				CurrentDocument:  docOrdinal,
				TotalDocuments:   totalDocs,
				CurrentStepIndex: stepOrdinal,
				TotalSteps:       totalSteps,
				OverallPercent:   overall,
			})

			runtime.Gosched()
			time.Sleep(time.Millisecond)

			snapshot, err := resources.State.ReadDoc(docIndex)
			if err != nil {
				return err
			}

			switch step {
			case StepDetect:
				err = resources.ML.Detect(ctx, snapshot)
			case StepOCR:
				err = resources.ML.OCR(ctx, snapshot)
			case StepInpaint:
				err = resources.ML.Inpaint(ctx, snapshot)
			case StepLlmGenerate:
				err = resources.LLM.Translate(ctx, snapshot, nil, req.Language)
			case StepRender:
				effect := document.TextShaderEffect("")
				if req.ShaderEffect != nil {
					effect = *req.ShaderEffect
				}
				err = resources.Renderer.Render(ctx, snapshot, nil, effect, req.FontFamily)
			}
			if err != nil {
				return err
			}

			if err := resources.State.UpdateDoc(docIndex, snapshot); err != nil {
				return err
			}
		}
	}

	return nil
}
