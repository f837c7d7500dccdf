package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectOnceSetsBacklogGauge(t *testing.T) {
	collector := NewSystemCollector(nil, func(ctx context.Context) (map[string]int64, error) {
		return map[string]int64{"achat": 3, "conge": 1}, nil
	}, 0)

	collector.CollectOnce(context.Background())

	require.Equal(t, float64(3), testutil.ToFloat64(WorkflowsInProgress.WithLabelValues("achat")))
	require.Equal(t, float64(1), testutil.ToFloat64(WorkflowsInProgress.WithLabelValues("conge")))
}

func TestCollectOnceKeepsGaugeOnError(t *testing.T) {
	NewSystemCollector(nil, func(ctx context.Context) (map[string]int64, error) {
		return map[string]int64{"recrutement": 2}, nil
	}, 0).CollectOnce(context.Background())

	NewSystemCollector(nil, func(ctx context.Context) (map[string]int64, error) {
		return nil, errors.New("db down")
	}, 0).CollectOnce(context.Background())

	require.Equal(t, float64(2), testutil.ToFloat64(WorkflowsInProgress.WithLabelValues("recrutement")))
}
