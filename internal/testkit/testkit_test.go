package testkit

import (
	"context"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

func TestFakeDriverResolvesSeededKey(t *testing.T) {
	d := NewFakeDriver(ports.Capabilities{SupportsBatch: true})
	d.Seed(value.Format(value.String("AAPL")), ports.Record{"price": value.Int64(100)})

	rec, found, err := d.Resolve(context.Background(), "prices", value.String("AAPL"), nil)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, d.ResolveCalls)
	n, _ := rec["price"].AsInt64()
	assert.Equal(t, int64(100), n)
}

func TestFakeDriverBatchResolveSkipsMisses(t *testing.T) {
	d := NewFakeDriver(ports.Capabilities{SupportsBatch: true})
	d.Seed(value.Format(value.String("AAPL")), ports.Record{"price": value.Int64(100)})

	out, err := d.BatchResolve(context.Background(), "prices", []value.Value{value.String("AAPL"), value.String("MSFT")}, nil)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestFakeDatasetsMustDriverFailsForUnknownRef(t *testing.T) {
	ds := NewFakeDatasets()
	_, err := ds.MustDriver("missing")
	assert.Error(t, err)
}

func TestFakeCacheTracksHitsAndMisses(t *testing.T) {
	c := NewFakeCache()
	ctx := context.Background()

	_, found, _ := c.Get(ctx, "k")
	assert.False(t, found)

	require.NoError(t, c.Put(ctx, "k", value.Int64(7), time.Minute))
	v, found, _ := c.Get(ctx, "k")
	assert.True(t, found)
	n, _ := v.AsInt64()
	assert.Equal(t, int64(7), n)

	hits, misses := c.Stats(ctx)
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestFakeCacheInvalidatePattern(t *testing.T) {
	c := NewFakeCache()
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "trade.1", value.Int64(1), time.Minute))
	require.NoError(t, c.Put(ctx, "trade.2", value.Int64(2), time.Minute))
	require.NoError(t, c.Put(ctx, "other", value.Int64(3), time.Minute))

	require.NoError(t, c.InvalidatePattern(ctx, "trade.*"))

	_, found, _ := c.Get(ctx, "trade.1")
	assert.False(t, found)
	_, found, _ = c.Get(ctx, "other")
	assert.True(t, found)
}

func TestFakeSecretProviderReturnsSeededSecret(t *testing.T) {
	s := NewFakeSecretProvider(map[string]string{"db-password": "hunter2"})
	v, err := s.Get(context.Background(), "db-password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)

	_, err = s.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestFakeMetricsSinkRecordsCalls(t *testing.T) {
	m := NewFakeMetricsSink()
	m.IncCounter("lookups", map[string]string{"dataset": "trades"}, 1)
	m.ObserveTimer("lookup_latency", nil, 5*time.Millisecond)
	m.SetGauge("cache_size", nil, 42)

	require.Len(t, m.Counters, 1)
	assert.Equal(t, "lookups", m.Counters[0].Name)
	require.Len(t, m.Timers, 1)
	require.Len(t, m.Gauges, 1)
	assert.Equal(t, float64(42), m.Gauges[0].Value)
}

func TestFakeAuditSinkRecordsEventsInOrder(t *testing.T) {
	a := NewFakeAuditSink()
	a.Emit(context.Background(), ports.AuditEvent{Actor: "rule-engine", EventType: "rule.failed"})
	a.Emit(context.Background(), ports.AuditEvent{Actor: "rule-engine", EventType: "rule.passed"})

	require.Len(t, a.Events, 2)
	assert.Equal(t, "rule.failed", a.Events[0].EventType)
	assert.Equal(t, "rule.passed", a.Events[1].EventType)
}

func TestCheckCommutativeIntAddition(t *testing.T) {
	commutative := func(a, b int) bool { return a+b == b+a }
	Check(t, nil, commutative)
}

func TestCheckWithConstrainedGenerator(t *testing.T) {
	nonEmptyStringsOnly := func(args []reflect.Value, rnd *rand.Rand) {
		for i := range args {
			args[i] = reflect.ValueOf("x" + string(rune('a'+rnd.Intn(26))))
		}
	}
	neverEmpty := func(s string) bool { return len(s) > 0 }
	Check(t, nonEmptyStringsOnly, neverEmpty)
}
