package gallery

import (
	"context"
	"reflect"
	"testing"
	"time"

	"gallery-engine/internal/catalog"
	"gallery-engine/internal/store"
)

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

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

func videoCard(t *testing.T, frames []string) (*Card, *timerRecorder, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	t.Cleanup(func() { mem.Close() })

	item := catalog.Item{ID: "clip.mp4", Kind: catalog.KindVideo, Src: "/m/clip.mp4"}
	c := NewCard(item, frames, mem, Config{})
	rec := &timerRecorder{}
	c.timer = rec.schedule
	return c, rec, mem
}

func TestHoverRotationAfterDelay(t *testing.T) {
	c, rec, _ := videoCard(t, []string{"f1", "f2", "f3"})

	c.HoverStart()
	delay := rec.last()
	if delay == nil || delay.d != 400*time.Millisecond {
		t.Fatalf("delay timer = %+v, want one at 400ms", delay)
	}
	if c.Rotating() {
		t.Fatal("rotation must not start before the delay elapses")
	}

	delay.fn()
	if !c.Rotating() {
		t.Fatal("rotation should run after the delay")
	}

	// Each interval tick advances one frame, wrapping.
	for i, want := range []string{"f2", "f3", "f1"} {
		rec.last().fn()
		frame, ok := c.CurrentFrame()
		if !ok || frame != want {
			t.Errorf("tick %d: frame = %q, want %q", i+1, frame, want)
		}
	}
}

func TestHoverEndBeforeDelayNeverRotates(t *testing.T) {
	c, rec, _ := videoCard(t, []string{"f1", "f2"})

	c.HoverStart()
	delay := rec.last()
	c.HoverEnd()

	if !delay.stopped {
		t.Error("leaving the card should stop the delay timer")
	}
	// Even if the callback already raced past Stop, it must be stale.
	delay.fn()
	if c.Rotating() {
		t.Error("rotation started after the pointer left the card")
	}
	if frame, _ := c.CurrentFrame(); frame != "f1" {
		t.Errorf("frame = %q, want reset to f1", frame)
	}
}

func TestRepeatedHoverStopsStaleDelayTimer(t *testing.T) {
	c, rec, _ := videoCard(t, []string{"f1", "f2"})

	c.HoverStart()
	first := rec.last()
	c.HoverStart()

	if !first.stopped {
		t.Error("re-hover should stop the previous delay timer")
	}
	// A stale callback that fires anyway must not start rotation.
	first.fn()
	if c.Rotating() {
		t.Error("stale delay callback started rotation")
	}

	rec.last().fn()
	if !c.Rotating() {
		t.Error("the fresh delay timer should still start rotation")
	}
}

func TestHoverNeedsEnoughFrames(t *testing.T) {
	c, rec, _ := videoCard(t, []string{"only"})

	c.HoverStart()
	if len(rec.timers) != 0 {
		t.Error("a single-frame preview should never arm rotation")
	}
}

func TestFrameLoadFailedIsPermanent(t *testing.T) {
	c, rec, _ := videoCard(t, []string{"f1", "f2"})

	c.HoverStart()
	rec.last().fn()
	c.FrameLoadFailed()

	if _, ok := c.CurrentFrame(); ok {
		t.Error("a failed card should render the placeholder")
	}
	if c.Rotating() {
		t.Error("failure should stop rotation")
	}

	// Hovering a failed card stays on the placeholder.
	before := len(rec.timers)
	c.HoverStart()
	if len(rec.timers) != before {
		t.Error("hover on a failed card should not arm timers")
	}
}

func TestToggleTag(t *testing.T) {
	c, _, mem := videoCard(t, nil)
	ctx := context.Background()

	if _, err := mem.SetTags(ctx, "clip.mp4", []string{"beach", "sunset"}); err != nil {
		t.Fatalf("SetTags failed: %v", err)
	}

	got := c.ToggleTag(ctx, "Beach")
	if !reflect.DeepEqual(got, []string{"sunset"}) {
		t.Errorf("toggle off = %v, want [sunset]", got)
	}

	got = c.ToggleTag(ctx, "night")
	want := []string{"night", "sunset"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("toggle on = %v, want %v", got, want)
	}

	// Blank input changes nothing.
	got = c.ToggleTag(ctx, "  ")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("blank toggle = %v, want %v", got, want)
	}
}

func TestGridSyncDropsRemovedCards(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()

	g := NewGrid(mem, catalog.ResolverFunc(func(h string) string { return h }), Config{})
	items := []catalog.Item{
		{ID: "a.jpg", Kind: catalog.KindImage, Src: "/m/a.jpg"},
		{ID: "b.mp4", Kind: catalog.KindVideo, Src: "/m/b.mp4"},
	}
	g.Sync(items)

	if _, ok := g.Card("b.mp4"); !ok {
		t.Fatal("expected a card for b.mp4")
	}

	g.Sync(items[:1])
	if _, ok := g.Card("b.mp4"); ok {
		t.Error("removed item should drop its card")
	}
	if _, ok := g.Card("a.jpg"); !ok {
		t.Error("surviving item lost its card")
	}
}

func TestGridViewReadsStoreFresh(t *testing.T) {
	mem := store.NewMemory()
	defer mem.Close()
	ctx := context.Background()

	g := NewGrid(mem, catalog.ResolverFunc(func(h string) string { return h }), Config{})
	item := catalog.Item{ID: "a.jpg", Kind: catalog.KindImage, Src: "/m/holiday_a.jpg"}
	g.Sync([]catalog.Item{item})

	view := g.View(ctx, item)
	if view.Title != "holiday_a" {
		t.Errorf("title = %q, want filename stem", view.Title)
	}
	if view.Favorite || view.WatchBadge != "" {
		t.Errorf("fresh item view = %+v, want no engagement", view)
	}
	if view.DownloadURL != "/m/holiday_a.jpg" {
		t.Errorf("download url = %q, want source url", view.DownloadURL)
	}

	// Engagement written after Sync shows up on the next read.
	if err := mem.SetTitle(ctx, "a.jpg", "Trip"); err != nil {
		t.Fatalf("SetTitle failed: %v", err)
	}
	if _, err := mem.ToggleFavorite(ctx, "a.jpg"); err != nil {
		t.Fatalf("ToggleFavorite failed: %v", err)
	}
	if _, err := mem.AddWatchTime(ctx, "a.jpg", 190); err != nil {
		t.Fatalf("AddWatchTime failed: %v", err)
	}

	view = g.View(ctx, item)
	if view.Title != "Trip" || !view.Favorite || view.WatchBadge != "3m 10s" {
		t.Errorf("view after engagement writes = %+v", view)
	}
}

func TestFormatWatchTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, ""},
		{0.4, "1s"},
		{45, "45s"},
		{190, "3m 10s"},
		{3600, "1h 0m"},
		{7500, "2h 5m"},
	}

	for _, tt := range tests {
		if got := FormatWatchTime(tt.seconds); got != tt.want {
			t.Errorf("FormatWatchTime(%g) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
