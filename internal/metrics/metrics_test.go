package metrics

import "testing"

type recordingBackend struct {
	counters   map[string]float64
	histograms map[string][]float64
	flushed    int
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{
		counters:   make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

func (b *recordingBackend) IncCounter(name string, delta float64, _ Labels) {
	b.counters[name] += delta
}

func (b *recordingBackend) ObserveHistogram(name string, value float64, _ Labels) {
	b.histograms[name] = append(b.histograms[name], value)
}

func (b *recordingBackend) Flush() error {
	b.flushed++
	return nil
}

func TestPackageFuncsDelegateToInstalledBackend(t *testing.T) {
	b := newRecordingBackend()
	SetBackend(b)
	defer SetBackend(nil)

	IncCounter(MetricPassTotal, 1, Labels{"sheet": "Daily"})
	IncCounter(MetricPassTotal, 1, nil)
	ObserveHistogram(MetricPassDurationSeconds, 0.25, nil)
	if err := Flush(); err != nil {
		t.Fatal(err)
	}

	if got := b.counters[MetricPassTotal]; got != 2 {
		t.Fatalf("counter = %v, want 2", got)
	}
	if got := b.histograms[MetricPassDurationSeconds]; len(got) != 1 || got[0] != 0.25 {
		t.Fatalf("histogram = %v", got)
	}
	if b.flushed != 1 {
		t.Fatalf("flushed = %d", b.flushed)
	}
}

func TestNilBackendRestoresNop(t *testing.T) {
	SetBackend(nil)

	// Must not panic and must report nothing.
	IncCounter(MetricRowsTotal, 1, nil)
	ObserveHistogram(MetricPassDurationSeconds, 1, nil)
	if err := Flush(); err != nil {
		t.Fatal(err)
	}
}
