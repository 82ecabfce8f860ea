// Package session keeps one view-state coordinator per open page and bridges
// it to the browser.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Zachkp/portfolio/internal/preference"
	"github.com/Zachkp/portfolio/internal/viewstate"
)

// Session is one rendered page and the coordinator driving its navigation.
type Session struct {
	ID          string
	VisitorID   string
	Coordinator *viewstate.Coordinator
	Layout      *viewstate.LayoutRegistry
	// DoNotTrack is set when the page was requested with the DNT header.
	DoNotTrack bool

	effects *effects

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Manager owns the live sessions.
type Manager struct {
	prefs    preference.Store
	sections []string
	opts     []viewstate.Option
	onCreate func(*Session)
	max      int
	log      *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

type ManagerOption func(*Manager)

// WithViewOptions passes options to every coordinator the manager creates.
func WithViewOptions(opts ...viewstate.Option) ManagerOption {
	return func(m *Manager) { m.opts = append(m.opts, opts...) }
}

// WithOnCreate registers a hook run after a session is initialized.
func WithOnCreate(fn func(*Session)) ManagerOption {
	return func(m *Manager) { m.onCreate = fn }
}

// WithMaxSessions caps the number of live sessions. Creating a session at
// the cap evicts the least recently used one without a live connection.
func WithMaxSessions(n int) ManagerOption {
	return func(m *Manager) { m.max = n }
}

// CreateOption adjusts a session before it is initialized.
type CreateOption func(*Session)

// DoNotTrack marks the session as opted out of analytics.
func DoNotTrack() CreateOption {
	return func(s *Session) { s.DoNotTrack = true }
}

func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a manager. sections is the document order of the page
// regions, used until the browser reports real geometry.
func NewManager(prefs preference.Store, sections []string, opts ...ManagerOption) *Manager {
	m := &Manager{
		prefs:    prefs,
		sections: append([]string(nil), sections...),
		log:      slog.Default(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a page session for visitorID and returns it initialized.
func (m *Manager) Create(visitorID string, options ...CreateOption) *Session {
	seed := make([]viewstate.Region, len(m.sections))
	for i, name := range m.sections {
		seed[i] = viewstate.Region{Name: name}
	}

	s := &Session{
		ID:        uuid.NewString(),
		VisitorID: visitorID,
		Layout:    viewstate.NewLayoutRegistry(seed),
		effects:   &effects{},
		lastSeen:  m.now(),
	}
	for _, opt := range options {
		opt(s)
	}
	opts := append([]viewstate.Option{
		viewstate.WithScrollLocker(s.effects),
		viewstate.WithThemeApplier(s.effects),
		viewstate.WithLogger(m.log.With("page", s.ID)),
	}, m.opts...)
	s.Coordinator = viewstate.New(s.Layout, preference.Scope(m.prefs, visitorID), opts...)
	s.Coordinator.Initialize()

	if m.onCreate != nil {
		m.onCreate(s)
	}

	m.mu.Lock()
	var evicted *Session
	if m.max > 0 && len(m.sessions) >= m.max {
		evicted = m.oldestIdleLocked()
	}
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if evicted != nil {
		evicted.Coordinator.Stop()
		m.log.Debug("session cap reached, evicted least recently used", "evicted", evicted.ID)
	}
	return s
}

// oldestIdleLocked removes and returns the least recently used session
// without a live connection, or nil when every session is connected.
func (m *Manager) oldestIdleLocked() *Session {
	var oldest *Session
	for _, s := range m.sessions {
		if s.effects.connected() {
			continue
		}
		if oldest == nil || s.idleSince().Before(oldest.idleSince()) {
			oldest = s
		}
	}
	if oldest != nil {
		delete(m.sessions, oldest.ID)
	}
	return oldest
}

// ForgetVisitor deletes every stored preference of visitorID.
func (m *Manager) ForgetVisitor(visitorID string) (int64, error) {
	return m.prefs.Forget(visitorID)
}

// Get returns the live session with id and marks it as recently used.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		s.touch(m.now())
	}
	return s, ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Remove stops and forgets the session with id.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Coordinator.Stop()
	}
}

// Evict removes sessions unused for longer than idle. Sessions with a live
// connection are kept.
func (m *Manager) Evict(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.effects.connected() || !s.idleSince().Before(cutoff) {
			continue
		}
		stale = append(stale, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Coordinator.Stop()
	}
	if len(stale) > 0 {
		m.log.Debug("evicted idle sessions", "count", len(stale))
	}
	return len(stale)
}

// Janitor evicts idle sessions every interval until ctx is done.
func (m *Manager) Janitor(ctx context.Context, interval, idle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Evict(idle)
		}
	}
}

// Close stops every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Coordinator.Stop()
	}
}

// effects forwards coordinator side effects to the connected page, if any.
type effects struct {
	mu   sync.Mutex
	sink Effects
}

// Effects receives the scroll-lock and theme side effects of a page.
type Effects interface {
	viewstate.ScrollLocker
	viewstate.ThemeApplier
}

func (e *effects) attach(sink Effects) (detach func(), ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sink != nil {
		return nil, false
	}
	e.sink = sink
	return func() {
		e.mu.Lock()
		if e.sink == sink {
			e.sink = nil
		}
		e.mu.Unlock()
	}, true
}

func (e *effects) connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sink != nil
}

func (e *effects) current() Effects {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sink
}

func (e *effects) LockScroll() {
	if s := e.current(); s != nil {
		s.LockScroll()
	}
}

func (e *effects) UnlockScroll() {
	if s := e.current(); s != nil {
		s.UnlockScroll()
	}
}

func (e *effects) ApplyTheme(dark bool) {
	if s := e.current(); s != nil {
		s.ApplyTheme(dark)
	}
}
