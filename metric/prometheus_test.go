package metric

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sparsego"
	"github.com/hupe1980/sparsego/model"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusCollector(reg)

	m.RecordAdd(time.Millisecond, nil)
	m.RecordAdd(time.Millisecond, errors.New("boom"))
	m.RecordBuild(42, time.Second, nil)
	m.RecordLoad(true, time.Millisecond, nil)
	m.RecordSearch("wand", 10, 3, time.Millisecond, nil)
	m.RecordSearch("wand", 10, 0, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AddsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AddsTotal.WithLabelValues("error")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.PostingsIndexed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues("memory", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("wand", "error")))

	count, err := testutil.GatherAndCount(reg, "sparsego_search_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPrometheusCollectorWiring(t *testing.T) {
	ctx := context.Background()
	m := NewPrometheusCollector(prometheus.NewRegistry())

	indexer, err := sparsego.New(sparsego.WithMetricsCollector(m))
	require.NoError(t, err)
	require.NoError(t, indexer.Add(ctx, 1, []model.TermIndex{5}, []model.ImpactValue{2}))
	require.NoError(t, indexer.Add(ctx, 2, []model.TermIndex{5, 9}, []model.ImpactValue{1, 3}))

	idx, err := indexer.Build(ctx, true)
	require.NoError(t, err)
	defer idx.Close()

	_, err = idx.Search(model.Query{5: 1}).Algorithm(sparsego.Wand).Execute(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AddsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BuildsTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PostingsIndexed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchesTotal.WithLabelValues("wand", "ok")))
}
