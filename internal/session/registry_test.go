package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionGauge struct {
	mu   sync.Mutex
	open int
}

func (g *sessionGauge) Mutation(string, string) {}
func (g *sessionGauge) SessionOpened() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open++
}
func (g *sessionGauge) SessionClosed() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open--
}

func TestRegistry_Lifecycle(t *testing.T) {
	gauge := &sessionGauge{}
	reg := NewRegistry(newStore(), Options{Metrics: gauge, Grace: 20 * time.Millisecond})
	defer reg.CloseAll()

	a := reg.Create()
	b := reg.Create()
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, 1, a.Attached(), "new sessions start in the foreground")

	got, err := reg.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, reg.Close(a.ID()))
	_, err = reg.Get(a.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, reg.Close(a.ID()), ErrSessionNotFound)

	gauge.mu.Lock()
	assert.Equal(t, 1, gauge.open)
	gauge.mu.Unlock()
}

func TestRegistry_BackgroundAndForeground(t *testing.T) {
	reg := NewRegistry(newStore(), Options{Grace: 20 * time.Millisecond})
	defer reg.CloseAll()

	c := reg.Create()
	require.NoError(t, reg.Background(c.ID()))
	require.NoError(t, reg.Background(c.ID()))
	assert.Equal(t, 0, c.Attached())
	require.Eventually(t, func() bool { return !c.Subscribed() }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, reg.Foreground(c.ID()))
	require.NoError(t, reg.Foreground(c.ID()))
	assert.Equal(t, 1, c.Attached())
	assert.True(t, c.Subscribed())

	assert.ErrorIs(t, reg.Foreground("missing"), ErrSessionNotFound)
	assert.ErrorIs(t, reg.Background("missing"), ErrSessionNotFound)
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := NewRegistry(newStore(), Options{})
	reg.Create()
	reg.Create()

	reg.CloseAll()
	assert.Equal(t, 0, reg.Len())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newIdleRegistry(t *testing.T, gauge *sessionGauge) (*Registry, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)}
	opts := Options{Grace: 20 * time.Millisecond, IdleTimeout: time.Hour}
	if gauge != nil {
		opts.Metrics = gauge
	}
	reg := NewRegistry(newStore(), opts)
	reg.now = clock.Now
	t.Cleanup(reg.CloseAll)
	return reg, clock
}

func TestRegistry_IdleSessionGoesToBackgroundThenCloses(t *testing.T) {
	gauge := &sessionGauge{}
	reg, clock := newIdleRegistry(t, gauge)

	c := reg.Create()
	clock.Advance(30 * time.Minute)
	reg.reapIdle()
	assert.Equal(t, 1, c.Attached(), "still inside the idle timeout")

	clock.Advance(31 * time.Minute)
	reg.reapIdle()
	assert.Equal(t, 0, c.Attached())
	require.Eventually(t, func() bool { return !c.Subscribed() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, reg.Len())

	clock.Advance(time.Hour)
	reg.reapIdle()
	assert.Equal(t, 0, reg.Len())
	_, err := reg.Get(c.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	gauge.mu.Lock()
	assert.Equal(t, 0, gauge.open)
	gauge.mu.Unlock()
}

func TestRegistry_RequestsKeepSessionAlive(t *testing.T) {
	reg, clock := newIdleRegistry(t, nil)
	c := reg.Create()

	for i := 0; i < 4; i++ {
		clock.Advance(50 * time.Minute)
		_, err := reg.Get(c.ID())
		require.NoError(t, err)
		reg.reapIdle()
	}
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 1, c.Attached())
}

func TestRegistry_OpenStreamKeepsSessionAlive(t *testing.T) {
	reg, clock := newIdleRegistry(t, nil)
	c := reg.Create()

	// un stream abierto es un observador más
	detach := c.Attach()
	clock.Advance(3 * time.Hour)
	reg.reapIdle()
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 2, c.Attached())

	detach()
	clock.Advance(61 * time.Minute)
	reg.reapIdle()
	assert.Equal(t, 0, c.Attached())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_ReaperClosesAbandonedSessions(t *testing.T) {
	reg := NewRegistry(newStore(), Options{Grace: 10 * time.Millisecond, IdleTimeout: 20 * time.Millisecond})
	defer reg.CloseAll()

	reg.Create()
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}
