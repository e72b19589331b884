package metrics

import (
	"sync"
	"time"
)

// testRecorder counts calls.
type testRecorder struct {
	mu            sync.Mutex
	stepDurations map[string]int
	stepResults   map[string]map[ResultLabel]int
	runDurations  int
	runOutcomes   map[string]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{stepDurations: map[string]int{}, stepResults: map[string]map[ResultLabel]int{}, runOutcomes: map[string]int{}}
}

func (t *testRecorder) ObserveStepDuration(step string, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stepDurations[step]++
}

func (t *testRecorder) IncStepResult(step string, result ResultLabel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.stepResults[step]
	if !ok {
		m = map[ResultLabel]int{}
		t.stepResults[step] = m
	}
	m[result]++
}

func (t *testRecorder) ObserveRunDuration(time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runDurations++
}

func (t *testRecorder) IncRunOutcome(outcome string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runOutcomes[outcome]++
}

var (
	_ Recorder = (*testRecorder)(nil)
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
)
