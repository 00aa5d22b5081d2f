package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Stage("read")()
		r.Rows("grid", 10)
		r.Partitions(3)
		r.Evaluations("rolling", 5)
		r.Run(nil)
	})
	assert.Nil(t, r.Registry())
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.Partitions(2)
	r.Partitions(3)
	r.Evaluations("rolling", 7)
	r.Evaluations("group", 2)
	r.Run(nil)
	r.Run(errors.New("boom"))
	r.Run(nil)

	assert.Equal(t, 5.0, testutil.ToFloat64(r.partitions))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.evaluations.WithLabelValues("rolling")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.runs.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("error")))
}

func TestRowsKeepsLastValue(t *testing.T) {
	r := New()
	r.Rows("grid", 10)
	r.Rows("grid", 4)
	assert.Equal(t, 4.0, testutil.ToFloat64(r.rows.WithLabelValues("grid")))
}

func TestStageObservesDuration(t *testing.T) {
	r := New()
	r.Stage("rolling")()
	r.Stage("rolling")()
	n, err := testutil.GatherAndCount(r.Registry(), "athmon_prepare_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWithNamespace(t *testing.T) {
	r := New(WithNamespace("lab"), WithBuckets([]float64{1}))
	r.Partitions(1)
	n, err := testutil.GatherAndCount(r.Registry(), "lab_rolling_partitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// empty options keep the defaults
	r = New(WithNamespace(""), WithBuckets(nil))
	assert.Equal(t, "athmon", r.namespace)
	assert.Len(t, r.buckets, 10)
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Run(nil)
	path := filepath.Join(t.TempDir(), "athmon.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `athmon_prepare_runs_total{outcome="ok"} 1`))

	err = r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "m.prom"))
	assert.ErrorContains(t, err, "writing metrics")
}
