package viewer

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"gallery-engine/internal/catalog"
	"gallery-engine/internal/store"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

// timerRecorder captures scheduled countdowns so tests fire them
// deterministically.
type timerRecorder struct {
	timers []*fakeTimer
}

func (r *timerRecorder) schedule(d time.Duration, fn func()) stopTimer {
	t := &fakeTimer{d: d, fn: fn}
	r.timers = append(r.timers, t)
	return t
}

func (r *timerRecorder) last() *fakeTimer {
	if len(r.timers) == 0 {
		return nil
	}
	return r.timers[len(r.timers)-1]
}

type fakePlayer struct {
	seeks   []float64
	volume  float64
	paused  bool
	seekErr error
}

func (p *fakePlayer) Seek(seconds float64) error {
	if p.seekErr != nil {
		return p.seekErr
	}
	p.seeks = append(p.seeks, seconds)
	return nil
}

func (p *fakePlayer) SetVolume(v float64) error { p.volume = v; return nil }
func (p *fakePlayer) Pause() error              { p.paused = true; return nil }
func (p *fakePlayer) Play() error               { p.paused = false; return nil }

func testItems() []catalog.Item {
	return []catalog.Item{
		{ID: "img1", Kind: catalog.KindImage, Src: "/media/img1.jpg"},
		{ID: "vid1", Kind: catalog.KindVideo, Src: "/media/vid1.mp4", Duration: 120},
		{ID: "img2", Kind: catalog.KindImage, Src: "/media/img2.jpg"},
		{ID: "vid2", Kind: catalog.KindVideo, Src: "/media/vid2.mp4", Duration: 60},
		{ID: "vid3", Kind: catalog.KindVideo, Src: "/media/vid3.mp4", Duration: 30},
	}
}

func newTestManager(t *testing.T) (*Manager, *store.Memory, *fakeClock, *timerRecorder) {
	t.Helper()

	mem := store.NewMemory()
	t.Cleanup(func() { mem.Close() })

	m := NewManager(mem, Config{})
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rec := &timerRecorder{}
	m.clock = clk
	m.timer = rec.schedule

	items := testItems()
	m.UpdateView(items, catalog.IDs(items))
	return m, mem, clk, rec
}

func TestOpenStateByKind(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	snap := m.Open("img1", nil, nil)
	if snap.State != StateImage {
		t.Errorf("image open state = %q, want %q", snap.State, StateImage)
	}

	snap = m.Open("vid1", nil, nil)
	if snap.State != StateVideoPlaying {
		t.Errorf("video open state = %q, want %q", snap.State, StateVideoPlaying)
	}
	if snap.Resume != "awaiting-metadata" {
		t.Errorf("resume phase = %q, want awaiting-metadata", snap.Resume)
	}
}

func TestOpenDeferredUntilViewContainsItem(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	snap := m.Open("elsewhere", nil, nil)
	if snap.State != StateClosed || !snap.PendingOpen {
		t.Fatalf("snapshot = %+v, want closed with pending open", snap)
	}

	items := append(testItems(), catalog.Item{ID: "elsewhere", Kind: catalog.KindImage, Src: "/m/e.jpg"})
	m.UpdateView(items, catalog.IDs(items))

	snap = m.Snapshot()
	if snap.State != StateImage || snap.ItemID != "elsewhere" {
		t.Errorf("snapshot after refresh = %+v, want elsewhere open", snap)
	}
}

func TestResumeAppliedFromStoredProgress(t *testing.T) {
	m, mem, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := mem.SetProgress(ctx, "vid1", 45, 120); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}

	p := &fakePlayer{}
	m.Open("vid1", p, nil)
	snap := m.MetadataReady(120)

	if snap.Resume != "applied" {
		t.Errorf("resume phase = %q, want applied", snap.Resume)
	}
	if !reflect.DeepEqual(p.seeks, []float64{45}) {
		t.Errorf("player seeks = %v, want [45]", p.seeks)
	}
}

func TestResumeSkippedNearEnd(t *testing.T) {
	m, mem, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := mem.SetProgress(ctx, "vid1", 119.5, 120); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}

	p := &fakePlayer{}
	m.Open("vid1", p, nil)
	snap := m.MetadataReady(120)

	if snap.Resume != "applied" {
		t.Errorf("resume phase = %q, want applied", snap.Resume)
	}
	if len(p.seeks) != 0 {
		t.Errorf("player seeks = %v, want none for near-end progress", p.seeks)
	}
}

func TestResumeAbandonedOnSeekFailure(t *testing.T) {
	m, mem, _, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := mem.SetProgress(ctx, "vid1", 45, 120); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}

	p := &fakePlayer{seekErr: errors.New("element not seekable")}
	m.Open("vid1", p, nil)
	snap := m.MetadataReady(120)

	if snap.Resume != "abandoned" {
		t.Errorf("resume phase = %q, want abandoned", snap.Resume)
	}
	if snap.State != StateVideoPlaying {
		t.Errorf("state = %q, playback should continue from the start", snap.State)
	}
}

func TestWatchTimeAccruesByWallClock(t *testing.T) {
	m, mem, clk, _ := newTestManager(t)
	ctx := context.Background()

	m.Open("vid1", &fakePlayer{}, nil)
	m.MetadataReady(120)

	clk.advance(5 * time.Second)
	m.ReportPosition(5, 1, true)

	if got := mem.WatchSeconds(ctx, "vid1"); got != 5 {
		t.Errorf("watch seconds = %g, want 5", got)
	}

	// Hidden time never accrues.
	m.VisibilityChanged(true)
	clk.advance(30 * time.Second)
	m.VisibilityChanged(false)
	clk.advance(3 * time.Second)
	m.ReportPosition(8, 1, true)

	if got := mem.WatchSeconds(ctx, "vid1"); got != 8 {
		t.Errorf("watch seconds after hidden interval = %g, want 8", got)
	}
}

func TestPausedTimeNeverAccrues(t *testing.T) {
	m, mem, clk, _ := newTestManager(t)
	ctx := context.Background()

	m.Open("vid1", &fakePlayer{}, nil)
	m.MetadataReady(120)

	clk.advance(4 * time.Second)
	m.TogglePause()
	clk.advance(60 * time.Second)
	m.TogglePause()
	clk.advance(2 * time.Second)
	m.Close()

	if got := mem.WatchSeconds(ctx, "vid1"); got != 6 {
		t.Errorf("watch seconds = %g, want 6 (4 before pause + 2 after)", got)
	}
}

func TestImageAccruesAfterPausedVideo(t *testing.T) {
	m, mem, clk, _ := newTestManager(t)
	ctx := context.Background()

	m.Open("vid1", &fakePlayer{}, nil)
	m.MetadataReady(120)
	m.TogglePause()

	// The pause belongs to the video; the next item starts fresh.
	snap := m.Next()
	if snap.ItemID != "img2" {
		t.Fatalf("item after next = %q, want img2", snap.ItemID)
	}
	clk.advance(10 * time.Second)
	m.Close()

	if got := mem.WatchSeconds(ctx, "img2"); got != 10 {
		t.Errorf("image watch seconds = %g, want 10", got)
	}
}

func TestProgressPersistCoalesced(t *testing.T) {
	m, mem, _, _ := newTestManager(t)
	ctx := context.Background()

	m.Open("vid1", &fakePlayer{}, nil)
	m.MetadataReady(120)

	// First report lands immediately.
	m.ReportPosition(5, 1, true)
	if got := mem.Progress(ctx, "vid1"); got != 5 {
		t.Fatalf("progress = %g, want 5", got)
	}

	// A report inside the persist interval is coalesced away.
	m.ReportPosition(8, 1, true)
	if got := mem.Progress(ctx, "vid1"); got != 5 {
		t.Errorf("progress = %g, want 5 (coalesced)", got)
	}

	// Close forces the final position out.
	m.Close()
	if got := mem.Progress(ctx, "vid1"); got != 8 {
		t.Errorf("progress after close = %g, want 8", got)
	}
}

func TestEndedClearsProgressAndStartsCountdown(t *testing.T) {
	m, mem, _, rec := newTestManager(t)
	ctx := context.Background()

	m.Open("vid1", &fakePlayer{}, nil)
	m.MetadataReady(120)
	m.ReportPosition(100, 1, true)

	snap := m.ReportEnded()
	if snap.State != StateVideoEnded {
		t.Fatalf("state = %q, want %q", snap.State, StateVideoEnded)
	}
	if got := mem.Progress(ctx, "vid1"); got != 0 {
		t.Errorf("progress after natural end = %g, want 0", got)
	}

	// Candidates walk forward through the frozen sequence, videos only,
	// capped at two.
	want := []string{"vid2", "vid3"}
	if !reflect.DeepEqual(snap.Candidates, want) {
		t.Errorf("candidates = %v, want %v", snap.Candidates, want)
	}

	timer := rec.last()
	if timer == nil || timer.d != 10*time.Second {
		t.Fatalf("countdown timer = %+v, want one scheduled at 10s", timer)
	}

	timer.fn()
	snap = m.Snapshot()
	if snap.ItemID != "vid2" || snap.State != StateVideoPlaying {
		t.Errorf("after countdown: %+v, want vid2 playing", snap)
	}
}

func TestCountdownCancelledByNavigation(t *testing.T) {
	m, _, _, rec := newTestManager(t)

	m.Open("vid1", &fakePlayer{}, nil)
	m.MetadataReady(120)
	m.ReportEnded()

	timer := rec.last()
	if timer == nil {
		t.Fatal("expected a countdown timer")
	}

	snap := m.Next()
	if !timer.stopped {
		t.Error("navigation should stop the countdown timer")
	}
	if snap.ItemID != "img2" {
		t.Errorf("after Next: item = %q, want img2", snap.ItemID)
	}

	// A stale timer that already fired its goroutine must be a no-op.
	timer.fn()
	if got := m.Snapshot().ItemID; got != "img2" {
		t.Errorf("stale countdown moved the viewer to %q", got)
	}
}

func TestEndedWithoutCandidatesAdvancesImmediately(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()

	m := NewManager(mem, Config{})
	m.clock = &fakeClock{now: time.Unix(1000, 0)}
	rec := &timerRecorder{}
	m.timer = rec.schedule

	items := []catalog.Item{
		{ID: "vid1", Kind: catalog.KindVideo, Src: "/m/vid1.mp4", Duration: 30},
		{ID: "img1", Kind: catalog.KindImage, Src: "/m/img1.jpg"},
	}
	m.UpdateView(items, catalog.IDs(items))

	m.Open("vid1", &fakePlayer{}, nil)
	m.MetadataReady(30)
	snap := m.ReportEnded()

	if len(rec.timers) != 0 {
		t.Error("no countdown should be scheduled without candidates")
	}
	if snap.ItemID != "img1" || snap.State != StateImage {
		t.Errorf("snapshot = %+v, want immediate advance to img1", snap)
	}
}

func TestSeekByOnVideoClampsAndCancelsCountdown(t *testing.T) {
	m, _, _, rec := newTestManager(t)

	p := &fakePlayer{}
	m.Open("vid1", p, nil)
	m.MetadataReady(120)
	m.ReportPosition(115, 1, true)

	snap := m.SeekBy(Forward)
	if len(p.seeks) == 0 || p.seeks[len(p.seeks)-1] != 120 {
		t.Errorf("seeks = %v, want final seek clamped to 120", p.seeks)
	}
	if snap.State != StateVideoPlaying {
		t.Errorf("state = %q, want playing", snap.State)
	}

	// Seeking during the end screen returns to playback.
	m.ReportPosition(100, 1, true)
	m.ReportEnded()
	timer := rec.last()

	snap = m.SeekBy(Backward)
	if snap.State != StateVideoPlaying {
		t.Errorf("state after seek from end screen = %q, want playing", snap.State)
	}
	if timer != nil && !timer.stopped {
		t.Error("seek should cancel the countdown")
	}
}

func TestSeekByOnImageNavigates(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()

	m := NewManager(mem, Config{})
	items := []catalog.Item{
		{ID: "img1", Kind: catalog.KindImage, Src: "/m/img1.jpg"},
		{ID: "img2", Kind: catalog.KindImage, Src: "/m/img2.jpg"},
	}
	m.UpdateView(items, catalog.IDs(items))

	m.Open("img1", nil, nil)
	if snap := m.SeekBy(Forward); snap.ItemID != "img2" {
		t.Errorf("Forward on image moved to %q, want img2", snap.ItemID)
	}
	if snap := m.SeekBy(Backward); snap.ItemID != "img1" {
		t.Errorf("Backward on image moved to %q, want img1", snap.ItemID)
	}
}

func TestAdjustVolume(t *testing.T) {
	m, mem, _, _ := newTestManager(t)
	ctx := context.Background()

	p := &fakePlayer{}
	m.Open("vid1", p, nil)

	if v := m.AdjustVolume(Backward); v != 0.95 {
		t.Errorf("volume after one step down = %g, want 0.95", v)
	}
	if p.volume != 0.95 {
		t.Errorf("player volume = %g, want 0.95", p.volume)
	}
	if got := mem.Volume(ctx); got != 0.95 {
		t.Errorf("stored volume = %g, want 0.95", got)
	}

	// Clamped at the top.
	m.AdjustVolume(Forward)
	if v := m.AdjustVolume(Forward); v != 1 {
		t.Errorf("volume = %g, want clamped 1", v)
	}
}

func TestSwipeClassification(t *testing.T) {
	tests := []struct {
		name   string
		dx, dy float64
		want   string // expected item after the swipe, starting from img1
	}{
		{"long left swipe advances", -80, 10, "vid1"},
		{"long right swipe retreats", 80, -10, "vid3"},
		{"short drag ignored", -40, 0, "img1"},
		{"vertical drag ignored", -80, 90, "img1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _, _ := newTestManager(t)
			m.Open("img1", nil, nil)

			snap := m.Swipe(tt.dx, tt.dy)
			if snap.ItemID != tt.want {
				t.Errorf("Swipe(%g, %g) landed on %q, want %q", tt.dx, tt.dy, snap.ItemID, tt.want)
			}
		})
	}
}

func TestCloseFromAnyState(t *testing.T) {
	m, _, _, _ := newTestManager(t)

	// Close while a countdown is running.
	m.Open("vid1", &fakePlayer{}, nil)
	m.MetadataReady(120)
	m.ReportEnded()

	snap := m.Close()
	if snap.State != StateClosed || snap.Index != -1 {
		t.Errorf("snapshot after close = %+v, want closed", snap)
	}

	// Closing an already-closed viewer is harmless.
	if snap := m.Close(); snap.State != StateClosed {
		t.Errorf("second close state = %q, want closed", snap.State)
	}
}
