package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	e, err := NewEngine(reg)
	require.NoError(t, err)

	e.MoveObserved("DESCEND", true)
	e.MoveObserved("DESCEND", true)
	e.MoveObserved("TOO_HIGH", false)
	e.ZoneLoaded("a", 3, true)
	e.SpawnSubstituted("a", false)
	e.SpawnSubstituted("a", true)
	e.TransitionTriggered("a", "b")
	e.EntityFell()
	e.ObserveResolve(time.Microsecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(e.moves.WithLabelValues("DESCEND", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.moves.WithLabelValues("TOO_HIGH", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.mapFallbacks.WithLabelValues("a")))
	assert.Equal(t, 3.0, testutil.ToFloat64(e.zoneLayers))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.spawnSubs.WithLabelValues("a", "dropped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.transitions.WithLabelValues("a", "b")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.falls))

	_, err = NewEngine(reg)
	assert.Error(t, err, "повторная регистрация")
}

func TestEngine_NilSafe(t *testing.T) {
	var e *Engine
	assert.NotPanics(t, func() {
		e.MoveObserved("OK", true)
		e.ZoneLoaded("a", 1, false)
		e.SpawnSubstituted("a", false)
		e.TransitionTriggered("a", "b")
		e.EntityFell()
		e.ObserveResolve(time.Millisecond)
	})
}
