package kadnet

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMetricsNilIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.served(MsgPing)
	m.sent(MsgStore, nil)
	m.lookup("find_node")
}

func TestMetricsCount(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.served(MsgPing)
	m.sent(MsgStore, errors.New("boom"))
	m.lookup("find_value")
	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 3)
}
