package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/apexerr"
	"github.com/mraysmit/apex-sub000/internal/clock"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

type flakyDriver struct {
	failuresBeforeSuccess int
	calls                 int
	rec                   ports.Record
	err                   error
}

func (f *flakyDriver) Init(context.Context) error    { return nil }
func (f *flakyDriver) Shutdown(context.Context) error { return nil }
func (f *flakyDriver) Healthy(context.Context) bool  { return true }
func (f *flakyDriver) Capabilities() ports.Capabilities {
	return ports.Capabilities{}
}

func (f *flakyDriver) Resolve(ctx context.Context, datasetRef string, key value.Value, params map[string]value.Value) (ports.Record, bool, error) {
	f.calls++
	if f.calls <= f.failuresBeforeSuccess {
		if f.err != nil {
			return nil, false, f.err
		}
		return nil, false, apexerr.New(apexerr.KindConnectionError, "flakyDriver.Resolve", "transient")
	}
	return f.rec, true, nil
}

func (f *flakyDriver) BatchResolve(ctx context.Context, datasetRef string, keys []value.Value, params map[string]value.Value) (map[string]ports.Record, error) {
	return nil, nil
}

func (f *flakyDriver) Query(ctx context.Context, statement string, params map[string]value.Value) ([]ports.Record, error) {
	return nil, nil
}

func fastPolicy() Policy {
	p := DefaultPolicy()
	p.BaseDelay = time.Millisecond
	p.MaxJitter = time.Millisecond
	return p
}

func TestWrapRetriesTransientFailures(t *testing.T) {
	inner := &flakyDriver{failuresBeforeSuccess: 2, rec: ports.Record{"x": value.Int64(1)}}
	w := Wrap("ds", inner, fastPolicy(), clock.System{})

	rec, found, err := w.Resolve(context.Background(), "ds", value.String("k"), nil)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1), mustInt(rec["x"]))
	assert.Equal(t, 3, inner.calls)
}

func TestWrapNeverRetriesAuthError(t *testing.T) {
	inner := &flakyDriver{failuresBeforeSuccess: 5, err: apexerr.New(apexerr.KindAuthError, "flakyDriver.Resolve", "bad creds")}
	w := Wrap("ds", inner, fastPolicy(), clock.System{})

	_, _, err := w.Resolve(context.Background(), "ds", value.String("k"), nil)
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestWrapExhaustsRetriesAndReturnsRetryExhausted(t *testing.T) {
	inner := &flakyDriver{failuresBeforeSuccess: 100}
	policy := fastPolicy()
	policy.MaxAttempts = 2
	w := Wrap("ds", inner, policy, clock.System{})

	_, _, err := w.Resolve(context.Background(), "ds", value.String("k"), nil)
	require.Error(t, err)
	kind, ok := apexerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apexerr.KindRetryExhausted, kind)
	assert.Equal(t, 2, inner.calls)
}

func mustInt(v value.Value) int64 {
	n, _ := v.AsInt64()
	return n
}
