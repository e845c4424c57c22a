package viewer

import (
	"context"

	"gallery-engine/internal/logging"
	"gallery-engine/internal/store"
)

// Direction is a directional input step.
type Direction int

const (
	// Backward seeks or navigates toward the start.
	Backward Direction = -1
	// Forward seeks or navigates toward the end.
	Forward Direction = 1
)

// SeekBy applies directional input: for a video it jumps the playhead
// by the configured step; for an image it advances or retreats the
// sequence. Seeking counts as user action and cancels any running
// recommendation countdown.
func (m *Manager) SeekBy(dir Direction) Snapshot {
	m.mu.Lock()

	s := m.sess
	if s == nil {
		defer m.mu.Unlock()
		return m.snapshotLocked()
	}

	if !s.item.IsVideo() {
		m.mu.Unlock()
		if dir == Forward {
			return m.Next()
		}
		return m.Prev()
	}
	defer m.mu.Unlock()

	m.cancelCountdownLocked("cancelled")
	if s.state == StateVideoEnded {
		s.state = StateVideoPlaying
	}

	target := store.ClampProgress(s.lastPos+float64(dir)*m.cfg.SeekStep, s.duration)
	if err := seek(s.player, target); err != nil {
		logging.Debug("viewer: seek to %.2fs failed: %v", target, err)
		return m.snapshotLocked()
	}
	s.lastPos = target
	return m.snapshotLocked()
}

// AdjustVolume steps the global volume up or down, clamped to [0, 1].
// The new value is persisted and pushed to the player.
func (m *Manager) AdjustVolume(dir Direction) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.store.Volume(context.Background())
	v := store.ClampVolume(current + float64(dir)*m.cfg.VolumeStep)

	if _, err := m.store.SetVolume(context.Background(), v); err != nil {
		logging.Debug("viewer: volume persist failed: %v", err)
	}

	if s := m.sess; s != nil && s.player != nil {
		if err := s.player.SetVolume(v); err != nil {
			logging.Debug("viewer: player volume set failed: %v", err)
		}
	}
	return v
}

// TogglePause flips playback between paused and playing. Watch time
// is flushed at the boundary so paused time never accrues.
func (m *Manager) TogglePause() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sess
	if s == nil || !s.item.IsVideo() || s.state != StateVideoPlaying {
		return m.snapshotLocked()
	}

	m.flushWatchLocked()
	s.paused = !s.paused

	var err error
	if s.player != nil {
		if s.paused {
			err = s.player.Pause()
		} else {
			err = s.player.Play()
		}
	}
	if err != nil {
		logging.Debug("viewer: pause toggle failed: %v", err)
	}
	return m.snapshotLocked()
}

// ToggleFullscreen asks the platform port to flip fullscreen. An
// absent or failing port is a no-op.
func (m *Manager) ToggleFullscreen() {
	m.mu.Lock()
	fs := (Fullscreen)(nil)
	if m.sess != nil {
		fs = m.sess.fullscreen
	}
	m.mu.Unlock()

	if fs == nil {
		return
	}
	if err := fs.Toggle(); err != nil {
		logging.Debug("viewer: fullscreen toggle failed: %v", err)
	}
}

// Swipe classifies a touch drag. A sufficiently long, predominantly
// horizontal drag advances (leftward) or retreats (rightward) the
// sequence; vertical or short drags are ignored.
func (m *Manager) Swipe(dx, dy float64) Snapshot {
	m.mu.Lock()
	minDist := m.cfg.SwipeMinDistance
	m.mu.Unlock()

	absX, absY := dx, dy
	if absX < 0 {
		absX = -absX
	}
	if absY < 0 {
		absY = -absY
	}

	if absX < minDist || absX <= absY {
		return m.Snapshot()
	}
	if dx < 0 {
		return m.Next()
	}
	return m.Prev()
}
