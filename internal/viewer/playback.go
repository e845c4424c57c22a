package viewer

import (
	"context"

	"gallery-engine/internal/logging"
	"gallery-engine/internal/metrics"
	"gallery-engine/internal/store"
)

// MetadataReady reports that the media element now knows its duration
// and is seekable. For a video awaiting resume this drives the bounded
// resume machine: awaiting-metadata, then seeking, then applied. A
// failed seek abandons resume silently.
func (m *Manager) MetadataReady(duration float64) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sess
	if s == nil || !s.item.IsVideo() {
		return m.snapshotLocked()
	}

	if duration > 0 {
		s.duration = duration
	}

	if s.resume != resumeAwaitingMetadata {
		return m.snapshotLocked()
	}

	target, ok := store.ResumePoint(context.Background(), m.store, s.item.ID, s.duration)
	if !ok {
		s.resume = resumeApplied
		return m.snapshotLocked()
	}

	s.resume = resumeSeeking
	s.resumeTarget = target
	if err := seek(s.player, target); err != nil {
		logging.Debug("viewer: resume seek to %.2fs failed for %s: %v", target, s.item.ID, err)
		s.resume = resumeAbandoned
		return m.snapshotLocked()
	}
	s.resume = resumeApplied
	s.lastPos = target
	logging.Debug("viewer: resumed %s at %.2fs", s.item.ID, target)
	return m.snapshotLocked()
}

// ReportPosition is the steady playback heartbeat: it carries the
// current playhead position, volume and playing flag. Watch time is
// accrued by wall clock here, and progress/volume are persisted on a
// coalesced cadence so write frequency stays bounded.
func (m *Manager) ReportPosition(pos, volume float64, playing bool) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sess
	if s == nil {
		return m.snapshotLocked()
	}

	m.flushWatchLocked()
	s.paused = !playing

	if s.item.IsVideo() && s.state == StateVideoPlaying {
		s.lastPos = store.ClampProgress(pos, s.duration)
		m.persistProgressLocked(false)

		v := store.ClampVolume(volume)
		if !s.hasPersistVol || diffAbs(v, s.persistedVol) > 0.01 {
			if _, err := m.store.SetVolume(context.Background(), v); err != nil {
				logging.Debug("viewer: volume persist failed: %v", err)
			} else {
				s.persistedVol = v
				s.hasPersistVol = true
			}
		}
	}
	return m.snapshotLocked()
}

// ReportEnded reports natural end of playback. The resume position is
// reset so a finished clip starts from the beginning next time, and
// the recommendation flow begins: with candidates a countdown starts,
// without any the sequence advances immediately.
func (m *Manager) ReportEnded() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sess
	if s == nil || !s.item.IsVideo() || s.state != StateVideoPlaying {
		return m.snapshotLocked()
	}

	m.flushWatchLocked()
	if err := m.store.ClearProgress(context.Background(), s.item.ID); err != nil {
		logging.Debug("viewer: progress reset failed for %s: %v", s.item.ID, err)
	}
	s.lastPos = 0
	s.persistedPos = 0

	s.candidates = m.upNextLocked()
	if len(s.candidates) == 0 {
		metrics.ViewerAutoplayAdvances.WithLabelValues("immediate").Inc()
		if id, ok := m.seq.Next(); ok {
			m.enterItemLocked(id)
		}
		return m.snapshotLocked()
	}

	s.state = StateVideoEnded
	m.startCountdownLocked()
	return m.snapshotLocked()
}

// VisibilityChanged reports the surface being hidden or shown (tab
// switch). Watch time is flushed at the boundary so hidden time is
// never counted.
func (m *Manager) VisibilityChanged(hidden bool) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return m.snapshotLocked()
	}
	m.flushWatchLocked()
	m.sess.hidden = hidden
	return m.snapshotLocked()
}

// upNextLocked selects the autoplay candidates: videos after the
// current index in the frozen sequence first, then wrapping around to
// those before it, excluding the current item, capped by config.
func (m *Manager) upNextLocked() []string {
	ids := m.seq.IDs()
	idx := m.seq.CurrentIndex()
	if len(ids) == 0 || idx < 0 {
		return nil
	}

	var out []string
	n := len(ids)
	for off := 1; off < n && len(out) < m.cfg.UpNextCount; off++ {
		id := ids[(idx+off)%n]
		if item, ok := m.items[id]; ok && item.IsVideo() {
			out = append(out, id)
		}
	}
	return out
}

// startCountdownLocked schedules the auto-advance. The sequence number
// guards against a stale timer firing after cancellation raced the
// lock.
func (m *Manager) startCountdownLocked() {
	s := m.sess
	s.countdownSeq++
	seq := s.countdownSeq
	s.countdownEnds = m.clock.Now().Add(m.cfg.AutoplayDelay)
	s.countdown = m.timer(m.cfg.AutoplayDelay, func() {
		m.countdownExpired(seq)
	})
}

func (m *Manager) countdownExpired(seq int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sess
	if s == nil || s.state != StateVideoEnded || s.countdownSeq != seq || len(s.candidates) == 0 {
		return
	}

	next := s.candidates[0]
	s.countdown = nil
	metrics.ViewerAutoplayAdvances.WithLabelValues("auto").Inc()
	logging.Debug("viewer: countdown elapsed, auto-advancing to %s", next)
	if _, ok := m.seq.Select(next); ok {
		m.enterItemLocked(next)
	}
}

// cancelCountdownLocked stops a running countdown and clears the
// recommendation state.
func (m *Manager) cancelCountdownLocked(outcome string) {
	s := m.sess
	if s == nil || s.countdown == nil {
		return
	}
	s.countdown.Stop()
	s.countdown = nil
	s.countdownSeq++
	s.candidates = nil
	metrics.ViewerAutoplayAdvances.WithLabelValues(outcome).Inc()
}

func diffAbs(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func seek(p Player, seconds float64) error {
	if p == nil {
		return nil
	}
	return p.Seek(seconds)
}
