// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T) map[string]*dto.MetricFamily {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	m := make(map[string]*dto.MetricFamily)
	for _, mf := range families {
		m[mf.GetName()] = mf
	}
	return m
}

func TestPromMetrics(t *testing.T) {
	InitializePrometheusMetrics()

	count := Counter("prom_syscalls")
	countVec := CounterVec("prom_syscall_results", []string{"code"})
	gauge := Gauge("prom_procedures")
	gaugeVec := GaugeVec("prom_caps", []string{"type"})
	hist := Histogram("prom_call_depth", BucketCallDepth)

	count.Add(1)
	for range 5 {
		Counter("prom_syscalls").Add(1)
	}

	total := 0
	for i := range 10 {
		code := strconv.Itoa(i % 2)
		countVec.AddWithLabel(int64(i), map[string]string{"code": code})
		hist.Observe(int64(i))
		total += i
	}
	gauge.Set(4)
	gauge.Add(-1)
	gaugeVec.SetWithLabel(7, map[string]string{"type": "write"})
	gaugeVec.AddWithLabel(2, map[string]string{"type": "write"})

	m := gather(t)
	require.Equal(t, float64(6), m["cap9_prom_syscalls"].Metric[0].GetCounter().GetValue())
	require.Equal(t, float64(total), m["cap9_prom_call_depth"].Metric[0].GetHistogram().GetSampleSum())

	sum := m["cap9_prom_syscall_results"].Metric[0].GetCounter().GetValue() +
		m["cap9_prom_syscall_results"].Metric[1].GetCounter().GetValue()
	require.Equal(t, float64(total), sum)
	require.Equal(t, float64(3), m["cap9_prom_procedures"].Metric[0].GetGauge().GetValue())
	require.Equal(t, float64(9), m["cap9_prom_caps"].Metric[0].GetGauge().GetValue())
}

func TestPromHandler(t *testing.T) {
	InitializePrometheusMetrics()
	Counter("prom_handler_hits").Add(2)

	server := httptest.NewServer(HTTPHandler())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "cap9_prom_handler_hits 2")
}

func TestLazyLoading(t *testing.T) {
	metrics = defaultNoopMetrics()

	for _, a := range []any{
		Gauge("noopGauge"),
		GaugeVec("noopGauge", nil),
		Counter("noopCounter"),
		CounterVec("noopCounter", nil),
		Histogram("noopHist", nil),
		HistogramVec("noopHist", nil, nil),
	} {
		require.IsType(t, &noopMeters{}, a)
	}

	lazyGauge := LazyLoadGauge("lazyGauge")
	lazyCounterVec := LazyLoadCounterVec("lazyCounterVec", nil)
	lazyHistogramVec := LazyLoadHistogramVec("lazyHistogramVec", nil, nil)

	InitializePrometheusMetrics()

	require.IsType(t, promGauge{}, lazyGauge())
	require.IsType(t, promCounterVec{}, lazyCounterVec())
	require.IsType(t, promHistogramVec{}, lazyHistogramVec())
}
