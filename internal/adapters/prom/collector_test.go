package prom

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/bft-labs/traceship/internal/domain"
)

type staticSource struct {
	snap domain.MetricsSnapshot
}

func (s staticSource) Metrics() domain.MetricsSnapshot { return s.snap }

func gather(t *testing.T, c *Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func value(f *dto.MetricFamily) float64 {
	m := f.GetMetric()[0]
	switch f.GetType() {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	default:
		return -1
	}
}

func TestCollector_Snapshot(t *testing.T) {
	at := time.Unix(1700000000, 0)
	c := NewCollector(staticSource{snap: domain.MetricsSnapshot{
		Queued:      4,
		Flushed:     10,
		Failed:      2,
		Dropped:     1,
		Retries:     3,
		LastErrorAt: at,
	}})

	families := gather(t, c)

	tests := []struct {
		name string
		typ  dto.MetricType
		want float64
	}{
		{"traceship_events_queued", dto.MetricType_GAUGE, 4},
		{"traceship_events_flushed_total", dto.MetricType_COUNTER, 10},
		{"traceship_events_failed_total", dto.MetricType_COUNTER, 2},
		{"traceship_events_dropped_total", dto.MetricType_COUNTER, 1},
		{"traceship_retries_total", dto.MetricType_COUNTER, 3},
		{"traceship_last_error_timestamp_seconds", dto.MetricType_GAUGE, 1700000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := families[tt.name]
			if !ok {
				t.Fatalf("metric %s not exported", tt.name)
			}
			if f.GetType() != tt.typ {
				t.Errorf("type = %v, want %v", f.GetType(), tt.typ)
			}
			if got := value(f); got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCollector_NoErrorYet(t *testing.T) {
	families := gather(t, NewCollector(staticSource{}))
	if got := value(families["traceship_last_error_timestamp_seconds"]); got != 0 {
		t.Errorf("last error = %v, want 0", got)
	}
}

func TestCollector_ChunkObservations(t *testing.T) {
	c := NewCollector(staticSource{})

	c.ObserveChunk(50, 200*time.Millisecond)
	c.ObserveChunk(10, 100*time.Millisecond)
	c.ObserveChunkError(&domain.IngestError{Kind: domain.KindAuth, Status: 401})
	c.ObserveChunkError(&domain.IngestError{Kind: domain.KindServer, Status: 500})
	c.ObserveChunkError(&domain.BatchSizeError{Size: 10, MaxSize: 5})
	c.ObserveChunkError(errors.New("other"))

	families := gather(t, c)

	h := families["traceship_chunk_events"].GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 || h.GetSampleSum() != 60 {
		t.Errorf("chunk_events count/sum = %d/%v, want 2/60", h.GetSampleCount(), h.GetSampleSum())
	}
	if n := families["traceship_chunk_send_duration_seconds"].GetMetric()[0].GetHistogram().GetSampleCount(); n != 2 {
		t.Errorf("duration samples = %d, want 2", n)
	}

	kinds := map[string]float64{}
	for _, m := range families["traceship_chunk_errors_total"].GetMetric() {
		kinds[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	for _, k := range []string{"auth", "server", "batch_size", "unknown"} {
		if kinds[k] != 1 {
			t.Errorf("chunk_errors_total{kind=%q} = %v, want 1", k, kinds[k])
		}
	}
}
