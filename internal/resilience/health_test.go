package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mraysmit/apex-sub000/internal/clock"
	"github.com/mraysmit/apex-sub000/internal/ports"
	"github.com/mraysmit/apex-sub000/internal/value"
)

type staticHealthDriver struct{ healthy bool }

func (s *staticHealthDriver) Init(context.Context) error    { return nil }
func (s *staticHealthDriver) Shutdown(context.Context) error { return nil }
func (s *staticHealthDriver) Healthy(context.Context) bool  { return s.healthy }
func (s *staticHealthDriver) Capabilities() ports.Capabilities {
	return ports.Capabilities{}
}
func (s *staticHealthDriver) Resolve(context.Context, string, value.Value, map[string]value.Value) (ports.Record, bool, error) {
	return nil, false, nil
}
func (s *staticHealthDriver) BatchResolve(context.Context, string, []value.Value, map[string]value.Value) (map[string]ports.Record, error) {
	return nil, nil
}
func (s *staticHealthDriver) Query(context.Context, string, map[string]value.Value) ([]ports.Record, error) {
	return nil, nil
}

func TestHealthCheckerStartsHealthy(t *testing.T) {
	driver := &staticHealthDriver{healthy: false}
	h := NewHealthChecker(driver, time.Hour, clock.System{})
	assert.True(t, h.Healthy())
}

func TestHealthCheckerObservesDriverState(t *testing.T) {
	driver := &staticHealthDriver{healthy: false}
	fixed := clock.Fixed{At: time.Unix(1000, 0)}
	h := NewHealthChecker(driver, time.Hour, fixed)

	h.check(context.Background())
	assert.False(t, h.Healthy())
	assert.Equal(t, fixed.At, h.LastCheckedAt())
}
