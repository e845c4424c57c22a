// Package viewer implements the full-screen lightbox's playback and
// autoplay state machine: open/close lifecycle, resume-position
// application, watch-time accrual, coalesced progress persistence and
// the end-of-clip recommendation countdown.
//
// The package is headless. The actual media element lives in whatever
// surface embeds the engine; it drives the machine by reporting
// lifecycle events (metadata ready, position, ended, visibility) and
// receives commands through the Player and Fullscreen ports. Every
// port operation that fails is caught and ignored so the viewer
// degrades instead of crashing.
package viewer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"gallery-engine/internal/catalog"
	"gallery-engine/internal/logging"
	"gallery-engine/internal/metrics"
	"gallery-engine/internal/sequence"
	"gallery-engine/internal/store"
)

// State is the viewer's top-level state.
type State string

const (
	// StateClosed means no viewer session exists.
	StateClosed State = "closed"
	// StateImage means the viewer shows a still image.
	StateImage State = "open-image"
	// StateVideoPlaying means the viewer shows a video that has not
	// completed.
	StateVideoPlaying State = "open-video-playing"
	// StateVideoEnded means playback completed naturally and the
	// recommendation countdown may be running.
	StateVideoEnded State = "open-video-ended"
)

// Player is the command port to the actual media element. A nil Player
// turns every command into a no-op.
type Player interface {
	Seek(seconds float64) error
	SetVolume(v float64) error
	Pause() error
	Play() error
}

// Fullscreen is the optional platform fullscreen port. A nil
// Fullscreen turns the toggle into a no-op.
type Fullscreen interface {
	Toggle() error
}

// Clock abstracts wall-clock time for watch accrual and countdown
// deadlines. Tests inject a fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// stopTimer is the cancellation handle of a scheduled countdown.
type stopTimer interface {
	Stop() bool
}

// timerFunc schedules fn after d and returns a cancellation handle.
// The default implementation is time.AfterFunc.
type timerFunc func(d time.Duration, fn func()) stopTimer

func afterFunc(d time.Duration, fn func()) stopTimer {
	return time.AfterFunc(d, fn)
}

// Config holds the tunable parameters of the state machine. The
// autoplay delay and candidate count are deliberately configuration,
// not constants.
type Config struct {
	// AutoplayDelay is the recommendation countdown length.
	AutoplayDelay time.Duration
	// UpNextCount caps the number of up-next suggestions.
	UpNextCount int
	// SeekStep is the playhead jump, in seconds, for directional seek.
	SeekStep float64
	// VolumeStep is the volume change per directional input.
	VolumeStep float64
	// PersistInterval bounds how often playback progress is written.
	PersistInterval time.Duration
	// ProgressThreshold is the minimum position change, in seconds,
	// worth persisting.
	ProgressThreshold float64
	// SwipeMinDistance is the minimum horizontal drag, in pixels,
	// recognized as a swipe.
	SwipeMinDistance float64
}

// DefaultConfig returns the stock parameters.
func DefaultConfig() Config {
	return Config{
		AutoplayDelay:     10 * time.Second,
		UpNextCount:       2,
		SeekStep:          10,
		VolumeStep:        0.05,
		PersistInterval:   2 * time.Second,
		ProgressThreshold: 1,
		SwipeMinDistance:  60,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AutoplayDelay <= 0 {
		c.AutoplayDelay = d.AutoplayDelay
	}
	if c.UpNextCount <= 0 {
		c.UpNextCount = d.UpNextCount
	}
	if c.SeekStep <= 0 {
		c.SeekStep = d.SeekStep
	}
	if c.VolumeStep <= 0 {
		c.VolumeStep = d.VolumeStep
	}
	if c.PersistInterval <= 0 {
		c.PersistInterval = d.PersistInterval
	}
	if c.ProgressThreshold <= 0 {
		c.ProgressThreshold = d.ProgressThreshold
	}
	if c.SwipeMinDistance <= 0 {
		c.SwipeMinDistance = d.SwipeMinDistance
	}
	return c
}

// resumePhase tracks the bounded resume state machine for a video:
// awaiting-metadata, then seeking, then applied, or abandoned when the
// item leaves view first.
type resumePhase int

const (
	resumeIdle resumePhase = iota
	resumeAwaitingMetadata
	resumeSeeking
	resumeApplied
	resumeAbandoned
)

func (p resumePhase) String() string {
	switch p {
	case resumeAwaitingMetadata:
		return "awaiting-metadata"
	case resumeSeeking:
		return "seeking"
	case resumeApplied:
		return "applied"
	case resumeAbandoned:
		return "abandoned"
	default:
		return "idle"
	}
}

// session is the per-open-viewer state. Exactly one exists while the
// viewer is open.
type session struct {
	id         string
	state      State
	item       catalog.Item
	player     Player
	fullscreen Fullscreen

	resume       resumePhase
	resumeTarget float64
	duration     float64

	lastTick time.Time
	hidden   bool
	paused   bool

	lastPos float64

	countdown      stopTimer
	countdownSeq   int
	countdownEnds  time.Time
	candidates     []string
	persistLimiter *rate.Limiter
	persistedPos   float64
	persistedVol   float64
	hasPersistVol  bool
}

// Manager owns the single viewer session and its frozen navigation
// sequence. All methods are safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	store   store.Store
	seq     *sequence.Controller
	cfg     Config
	clock   Clock
	timer   timerFunc
	items   map[string]catalog.Item
	order   []string
	sess    *session
	pending bool // an Open is deferred in the sequence controller

	// ports handed to a deferred Open, applied when it completes
	pendingPlayer Player
	pendingFS     Fullscreen
}

// NewManager creates a viewer manager over the given store.
func NewManager(s store.Store, cfg Config) *Manager {
	return &Manager{
		store: s,
		seq:   sequence.New(),
		cfg:   cfg.withDefaults(),
		clock: systemClock{},
		timer: afterFunc,
		items: make(map[string]catalog.Item),
	}
}

// Sequence exposes the navigation controller, primarily for
// inspection by the HTTP surface.
func (m *Manager) Sequence() *sequence.Controller { return m.seq }

// Snapshot is the externally visible state of the viewer.
type Snapshot struct {
	State       State    `json:"state"`
	SessionID   string   `json:"sessionId,omitempty"`
	ItemID      string   `json:"itemId,omitempty"`
	Index       int      `json:"index"`
	Length      int      `json:"length"`
	Resume      string   `json:"resume,omitempty"`
	Candidates  []string `json:"candidates,omitempty"`
	CountdownMS int64    `json:"countdownMs,omitempty"`
	Paused      bool     `json:"paused,omitempty"`
	PendingOpen bool     `json:"pendingOpen,omitempty"`
}

// Snapshot returns the current viewer state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	if m.sess == nil {
		return Snapshot{State: StateClosed, Index: -1, PendingOpen: m.pending}
	}

	snap := Snapshot{
		State:      m.sess.state,
		SessionID:  m.sess.id,
		ItemID:     m.sess.item.ID,
		Index:      m.seq.CurrentIndex(),
		Length:     m.seq.Len(),
		Resume:     m.sess.resume.String(),
		Candidates: append([]string{}, m.sess.candidates...),
		Paused:     m.sess.paused,
	}
	if m.sess.countdown != nil {
		if remaining := m.sess.countdownEnds.Sub(m.clock.Now()); remaining > 0 {
			snap.CountdownMS = remaining.Milliseconds()
		}
	}
	return snap
}

// UpdateView informs the manager that the filtered/sorted view
// changed: items is the catalog snapshot, order the visible id order.
// An already-open session keeps its frozen sequence; a deferred open
// completes here once the requested item appears.
func (m *Manager) UpdateView(items []catalog.Item, order []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = catalog.Index(items)
	m.order = append([]string{}, order...)

	if !m.pending {
		return
	}
	if _, ok := m.seq.Refresh(m.order); ok {
		m.pending = false
		if m.sess == nil {
			metrics.ViewerSessionsActive.Inc()
			m.sess = &session{
				id:         uuid.NewString(),
				state:      StateClosed,
				player:     m.pendingPlayer,
				fullscreen: m.pendingFS,
			}
		}
		m.pendingPlayer, m.pendingFS = nil, nil
		id, _ := m.seq.Current()
		m.enterItemLocked(id)
	}
}

// Open opens the viewer at the requested item. The player and
// fullscreen ports may be nil; commands then degrade to no-ops. If the
// item is not in the current view order the open is deferred until an
// UpdateView contains it.
func (m *Manager) Open(requestedID string, p Player, fs Fullscreen) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	wasOpen := m.sess != nil
	if _, ok := m.seq.Open(requestedID, m.order); !ok {
		m.pending = true
		m.pendingPlayer = p
		m.pendingFS = fs
		logging.Debug("viewer: open of %s deferred, not in current order", requestedID)
		return m.snapshotLocked()
	}
	m.pending = false
	m.pendingPlayer, m.pendingFS = nil, nil

	if !wasOpen {
		metrics.ViewerSessionsActive.Inc()
		m.sess = &session{
			id:    uuid.NewString(),
			state: StateClosed,
		}
	}
	m.sess.player = p
	m.sess.fullscreen = fs

	id, _ := m.seq.Current()
	m.enterItemLocked(id)
	return m.snapshotLocked()
}

// Close tears the session down from any state: the countdown is
// cancelled, watch time flushed and the last known progress persisted.
func (m *Manager) Close() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		m.pending = false
		m.pendingPlayer, m.pendingFS = nil, nil
		m.seq.Close()
		return m.snapshotLocked()
	}

	m.cancelCountdownLocked("cancelled")
	m.flushWatchLocked()
	m.persistProgressLocked(true)
	if m.sess.resume == resumeAwaitingMetadata || m.sess.resume == resumeSeeking {
		// Resume never became applicable; abandoned silently.
		m.sess.resume = resumeAbandoned
	}

	metrics.ViewerSessionsActive.Dec()
	m.sess = nil
	m.pending = false
	m.seq.Close()
	return m.snapshotLocked()
}

// Next advances the frozen sequence, cancelling any countdown.
func (m *Manager) Next() Snapshot {
	return m.navigate(func() (string, bool) { return m.seq.Next() })
}

// Prev retreats the frozen sequence, cancelling any countdown.
func (m *Manager) Prev() Snapshot {
	return m.navigate(func() (string, bool) { return m.seq.Prev() })
}

// Select jumps to an id within the frozen sequence, cancelling any
// countdown. Unknown ids are ignored.
func (m *Manager) Select(id string) Snapshot {
	return m.navigate(func() (string, bool) {
		if _, ok := m.seq.Select(id); !ok {
			return "", false
		}
		return id, true
	})
}

func (m *Manager) navigate(move func() (string, bool)) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return m.snapshotLocked()
	}

	m.cancelCountdownLocked("cancelled")
	id, ok := move()
	if !ok {
		return m.snapshotLocked()
	}
	m.enterItemLocked(id)
	return m.snapshotLocked()
}

// enterItemLocked switches the session to an item: flushes engagement
// state for the outgoing item, resets per-item machinery and puts the
// machine in the state matching the item kind.
func (m *Manager) enterItemLocked(id string) {
	s := m.sess
	if s.item.ID != "" && s.item.ID != id {
		m.flushWatchLocked()
		m.persistProgressLocked(true)
	}

	item, ok := m.items[id]
	if !ok {
		// Kept in the sequence but gone from the catalog; treat as an
		// image so navigation still works.
		item = catalog.Item{ID: id, Kind: catalog.KindImage}
	}

	s.item = item
	s.lastTick = m.clock.Now()
	s.lastPos = 0
	s.persistedPos = 0
	s.hasPersistVol = false
	s.candidates = nil
	s.duration = item.Duration
	s.persistLimiter = rate.NewLimiter(rate.Every(m.cfg.PersistInterval), 1)

	if item.IsVideo() {
		s.state = StateVideoPlaying
		s.paused = false
		s.resume = resumeAwaitingMetadata
		s.resumeTarget = 0
	} else {
		s.state = StateImage
		s.paused = false
		s.resume = resumeIdle
	}
	logging.Debug("viewer: showing %s (%s)", item.ID, s.state)
}

// flushWatchLocked accrues wall-clock watch time since the last tick
// for the current item. Persistence failures are ignored; watch time
// is best effort.
func (m *Manager) flushWatchLocked() {
	s := m.sess
	if s == nil || s.item.ID == "" {
		return
	}

	now := m.clock.Now()
	delta := now.Sub(s.lastTick).Seconds()
	s.lastTick = now

	if delta <= 0 || s.hidden || s.paused || s.state == StateClosed {
		return
	}
	if _, err := m.store.AddWatchTime(context.Background(), s.item.ID, delta); err != nil {
		logging.Debug("viewer: watch-time flush failed for %s: %v", s.item.ID, err)
		return
	}
	metrics.ViewerWatchSeconds.Add(delta)
}

// persistProgressLocked writes the last known playback position,
// bypassing the coalescing cadence when force is set (close and item
// change must not lose the final position).
func (m *Manager) persistProgressLocked(force bool) {
	s := m.sess
	if s == nil || !s.item.IsVideo() || s.state == StateVideoEnded {
		return
	}
	if !force {
		if !s.persistLimiter.Allow() {
			return
		}
		if diff := s.lastPos - s.persistedPos; diff < m.cfg.ProgressThreshold && diff > -m.cfg.ProgressThreshold {
			return
		}
	}
	if s.lastPos <= 0 {
		return
	}
	if _, err := m.store.SetProgress(context.Background(), s.item.ID, s.lastPos, s.duration); err != nil {
		logging.Debug("viewer: progress persist failed for %s: %v", s.item.ID, err)
		return
	}
	s.persistedPos = s.lastPos
}
