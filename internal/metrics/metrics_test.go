// SPDX-License-Identifier: MIT
package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pdmcap/internal/pdm"
)

type fakeStats struct {
	stats pdm.Stats
	state pdm.State
}

func (f *fakeStats) Stats() pdm.Stats { return f.stats }
func (f *fakeStats) State() pdm.State { return f.state }

func TestDriverCollector(t *testing.T) {
	src := &fakeStats{
		stats: pdm.Stats{Published: 10, Claimed: 7, Superseded: 3, Overruns: 2},
		state: pdm.Armed,
	}
	c := NewDriverCollector(src, prometheus.Labels{"target": "nrf52"})

	if n := testutil.CollectAndCount(c); n != 9 {
		t.Fatalf("collected %d metrics, want 9", n)
	}

	expected := `
# HELP pdmcap_driver_buffers_claimed_total Buffers taken by CopySamples or NoCopySamples.
# TYPE pdmcap_driver_buffers_claimed_total counter
pdmcap_driver_buffers_claimed_total{target="nrf52"} 7
# HELP pdmcap_driver_overruns_total Filled buffers recycled because no slot was free.
# TYPE pdmcap_driver_overruns_total counter
pdmcap_driver_overruns_total{target="nrf52"} 2
# HELP pdmcap_driver_state Driver state: 0 uninitialized, 1 idle, 2 armed, 3 stopped.
# TYPE pdmcap_driver_state gauge
pdmcap_driver_state{target="nrf52"} 2
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"pdmcap_driver_buffers_claimed_total", "pdmcap_driver_overruns_total", "pdmcap_driver_state")
	if err != nil {
		t.Error(err)
	}

	// Values are read at scrape time.
	src.stats.Claimed = 8
	err = testutil.CollectAndCompare(c, strings.NewReader(strings.Replace(expected, "} 7", "} 8", 1)),
		"pdmcap_driver_buffers_claimed_total", "pdmcap_driver_overruns_total", "pdmcap_driver_state")
	if err != nil {
		t.Error(err)
	}
}

func TestCaptureMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewCaptureMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}

	m.ObserveSink("wav", 1024, time.Millisecond, nil)
	m.ObserveSink("wav", 1024, time.Millisecond, nil)
	m.ObserveSink("tcp", 512, time.Millisecond, errors.New("broken pipe"))
	m.ObserveDropped(64)
	m.SetLevel(0, -12, -6)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"wav writes", m.sinkWritesTotal.WithLabelValues("wav"), 2},
		{"wav bytes", m.sinkBytesTotal.WithLabelValues("wav"), 2048},
		{"wav errors", m.sinkErrorsTotal.WithLabelValues("wav"), 0},
		{"tcp errors", m.sinkErrorsTotal.WithLabelValues("tcp"), 1},
		{"dropped", m.ringDroppedTotal, 64},
		{"level", m.levelDBFS.WithLabelValues("0"), -12},
		{"peak", m.peakDBFS.WithLabelValues("0"), -6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := NewCaptureMetrics(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestServer(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(NewDriverCollector(&fakeStats{state: pdm.Idle}, nil))

	s, err := Listen("127.0.0.1:0", reg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown(context.Background())

	resp, err := http.Get("http://" + s.Addr().String() + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	for _, want := range []string{"pdmcap_driver_state 1", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}
