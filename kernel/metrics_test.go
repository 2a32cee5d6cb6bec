// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kernel

import (
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vechain/cap9/caps"
	"github.com/vechain/cap9/host"
	"github.com/vechain/cap9/metrics"
	"github.com/vechain/cap9/syscall"
)

func TestMain(m *testing.M) {
	// meters are bound on first use, so prometheus must be active before any test
	metrics.InitializePrometheusMetrics()
	os.Exit(m.Run())
}

func gaugeValue(t *testing.T, name string) float64 {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.Metric[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestGauges(t *testing.T) {
	k, h := newKernel(t, Options{}, &caps.Register{})
	assert.Equal(t, float64(1), gaugeValue(t, "cap9_kernel_list_length"))

	var frames float64
	run(t, k, h, func(env host.Env) error {
		frames = gaugeValue(t, "cap9_kernel_frames")
		return syscall.RegisterProcedure(env, 0, keyUser, addrUser, nil)
	})
	assert.Equal(t, float64(1), frames)
	assert.Equal(t, float64(0), gaugeValue(t, "cap9_kernel_frames"))
	assert.Equal(t, float64(2), gaugeValue(t, "cap9_kernel_list_length"))
}
