package indexer

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// timingEvent is one JSON line of the timing file. Kind is "stage" for a
// whole pipeline stage and "file" for one input inside it.
type timingEvent struct {
	Stage      string  `json:"stage"`
	Kind       string  `json:"kind"`
	File       string  `json:"file,omitempty"`
	Status     string  `json:"status"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// timingRecorder appends events to a JSONL file as they happen. An empty
// path disables it; a nil or disabled recorder accepts every call.
type timingRecorder struct {
	origin time.Time
	mu     sync.Mutex
	events []timingEvent
	file   *os.File
	enc    *json.Encoder
	err    error
}

func newTimingRecorder(origin time.Time, path string) *timingRecorder {
	tr := &timingRecorder{origin: origin}
	if path == "" {
		return tr
	}
	f, err := os.Create(path)
	if err != nil {
		tr.err = err
		return tr
	}
	tr.file = f
	tr.enc = json.NewEncoder(f)
	return tr
}

func (tr *timingRecorder) Enabled() bool {
	return tr != nil && tr.enc != nil
}

// Err reports why the timing file could not be created.
func (tr *timingRecorder) Err() error {
	if tr == nil {
		return nil
	}
	return tr.err
}

func (tr *timingRecorder) Close() {
	if tr == nil || tr.file == nil {
		return
	}
	_ = tr.file.Close()
}

// Events returns a copy of what was recorded so far.
func (tr *timingRecorder) Events() []timingEvent {
	if tr == nil {
		return nil
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]timingEvent(nil), tr.events...)
}

// begin starts timing the named stage.
func (tr *timingRecorder) begin(stage string) *stageTimer {
	return &stageTimer{tr: tr, stage: stage, start: time.Now()}
}

func (tr *timingRecorder) add(ev timingEvent, start time.Time, d time.Duration) {
	if !tr.Enabled() {
		return
	}
	ev.StartMS = millis(start.Sub(tr.origin))
	ev.DurationMS = millis(d)
	ev.EndMS = ev.StartMS + ev.DurationMS

	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, ev)
	_ = tr.enc.Encode(ev)
}

// stageTimer measures one pipeline stage and the files it touches.
type stageTimer struct {
	tr    *timingRecorder
	stage string
	start time.Time
}

// file records the handling of one input that started at start.
func (s *stageTimer) file(path string, start time.Time, err error) {
	s.tr.add(timingEvent{Stage: s.stage, Kind: "file", File: path, Status: status(err)}, start, time.Since(start))
}

// end records the stage and returns its duration.
func (s *stageTimer) end(err error) time.Duration {
	d := time.Since(s.start)
	s.tr.add(timingEvent{Stage: s.stage, Kind: "stage", Status: status(err)}, s.start, d)
	return d
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}
