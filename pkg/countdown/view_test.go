package countdown

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tzevents/pkg/timezone"
)

type recordingRenderer struct {
	mu         sync.Mutex
	snapshots  []Snapshot
	localTimes []LocalTime
}

func (r *recordingRenderer) RenderCountdown(_ Target, snapshot Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots = append(r.snapshots, snapshot)
}

func (r *recordingRenderer) RenderLocalTime(_ Target, local LocalTime) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.localTimes = append(r.localTimes, local)
}

func (r *recordingRenderer) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.snapshots), len(r.localTimes)
}

func (r *recordingRenderer) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshots[len(r.snapshots)-1]
}

func TestNewView_RejectsUnknownZones(t *testing.T) {
	t.Parallel()

	_, err := NewView(Target{Start: time.Now(), Timezone: "Nowhere/Town"}, &recordingRenderer{}, WithViewerZone("UTC"))
	require.ErrorIs(t, err, timezone.ErrUnknownTimezone)

	_, err = NewView(Target{Start: time.Now(), Timezone: "UTC"}, &recordingRenderer{}, WithViewerZone("Nowhere/Town"))
	require.ErrorIs(t, err, timezone.ErrUnknownTimezone)
}

func TestView_LocalTime(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	renderer := &recordingRenderer{}

	view, err := NewView(
		Target{Title: "Launch", Start: start, Timezone: "America/New_York"},
		renderer,
		WithViewerZone("Asia/Tokyo"),
		WithClock(func() time.Time { return start.Add(-time.Hour) }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, view.Run(ctx), context.Canceled)

	view.refreshLocalTime(start)

	require.Len(t, renderer.localTimes, 1)
	local := renderer.localTimes[0]
	assert.Equal(t, "2025-06-01T14:00:00-04:00", local.Event.Format(time.RFC3339))
	assert.Equal(t, "2025-06-02T03:00:00+09:00", local.Viewer.Format(time.RFC3339))
	assert.Equal(t, "America/New_York", local.EventZone)
	assert.Equal(t, "Asia/Tokyo", local.ViewerZone)
}

func TestView_RunCompletesPastEvent(t *testing.T) {
	t.Parallel()

	var completions atomic.Int32

	renderer := &recordingRenderer{}
	view, err := NewView(
		Target{Title: "Yesterday", Start: time.Now().Add(-24 * time.Hour), Timezone: "UTC"},
		renderer,
		WithViewerZone("UTC"),
		WithCountdownOptions(OnComplete(func() { completions.Add(1) })),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	require.NoError(t, view.Run(ctx))

	countdowns, locals := renderer.counts()
	assert.Equal(t, 1, countdowns)
	assert.Equal(t, 1, locals)
	assert.Equal(t, Complete, renderer.last().State)
	assert.Equal(t, Complete, view.State())
	assert.Equal(t, int32(1), completions.Load())
}

func TestView_RunTicksUntilUnmounted(t *testing.T) {
	t.Parallel()

	renderer := &recordingRenderer{}
	view, err := NewView(
		Target{Title: "Later", Start: time.Now().Add(2 * time.Hour), Timezone: "Europe/Paris"},
		renderer,
		WithViewerZone("UTC"),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2200*time.Millisecond)
	defer cancel()

	require.NoError(t, view.Run(ctx))

	countdowns, locals := renderer.counts()
	assert.GreaterOrEqual(t, countdowns, 3)
	assert.Equal(t, 1, locals)
	assert.Equal(t, Pending, renderer.last().State)
	assert.Equal(t, int64(1), renderer.last().Remaining.Hours)

	time.Sleep(1200 * time.Millisecond)

	after, _ := renderer.counts()
	assert.Equal(t, countdowns, after)
}
