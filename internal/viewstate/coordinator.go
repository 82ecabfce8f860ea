// Package viewstate derives the navigation state of the single-page layout
// from scroll ticks and user toggles.
package viewstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

const (
	// DefaultLookAhead compensates for the fixed navigation bar height.
	DefaultLookAhead = 100
	// DefaultScrolledThreshold is the offset past which the bar is drawn opaque.
	DefaultScrolledThreshold = 20
	// DefaultSection is used when the registry is empty at initialization.
	DefaultSection = "home"
)

// ErrAlreadyStarted is returned by Start when a scroll source is attached.
var ErrAlreadyStarted = errors.New("viewstate: scroll source already attached")

// ViewState is the derived navigation state of one page session.
type ViewState struct {
	ActiveSection string `json:"activeSection"`
	MenuOpen      bool   `json:"menuOpen"`
	DarkMode      bool   `json:"darkMode"`
	Scrolled      bool   `json:"scrolled"`
}

// ScrollSource delivers the current vertical offset on every scroll tick.
type ScrollSource interface {
	Subscribe(fn func(offsetY float64)) (unsubscribe func())
}

// ScrollLocker suspends and restores page scrolling while the menu is open.
type ScrollLocker interface {
	LockScroll()
	UnlockScroll()
}

// ThemeApplier switches the document theme.
type ThemeApplier interface {
	ApplyTheme(dark bool)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLookAhead sets the offset added to the scroll position before region lookup.
func WithLookAhead(px float64) Option {
	return func(c *Coordinator) { c.lookAhead = px }
}

// WithScrolledThreshold sets the offset past which the page counts as scrolled.
func WithScrolledThreshold(px float64) Option {
	return func(c *Coordinator) { c.scrolledThreshold = px }
}

// WithDefaultSection overrides the section active before the first scroll tick.
func WithDefaultSection(name string) Option {
	return func(c *Coordinator) { c.defaultSection = name }
}

func WithScrollLocker(l ScrollLocker) Option {
	return func(c *Coordinator) { c.locker = l }
}

func WithThemeApplier(t ThemeApplier) Option {
	return func(c *Coordinator) { c.theme = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// Coordinator owns the ViewState of one session.
//
// Every transition runs to completion under a single lock, in delivery order.
// Observers and side-effect collaborators are invoked synchronously while the
// lock is held, so they must not call back into the Coordinator.
type Coordinator struct {
	registry Registry
	prefs    PreferenceStore

	lookAhead         float64
	scrolledThreshold float64
	defaultSection    string
	locker            ScrollLocker
	theme             ThemeApplier
	log               *slog.Logger

	mu        sync.Mutex
	state     ViewState
	locked    bool
	observers map[int]func(ViewState)
	nextObs   int

	// generation invalidates scroll handlers from earlier attachments.
	generation  int
	attached    bool
	unsubscribe func()
}

// New creates a Coordinator. prefs may be nil, in which case the dark-mode
// flag is neither read nor persisted.
func New(registry Registry, prefs PreferenceStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:          registry,
		prefs:             prefs,
		lookAhead:         DefaultLookAhead,
		scrolledThreshold: DefaultScrolledThreshold,
		log:               slog.Default(),
		observers:         make(map[int]func(ViewState)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = StaticRegistry(nil)
	}
	return c
}

// Initialize loads the persisted theme and resets the active section to the
// default. It never fails: unreadable preferences fall back to light mode.
func (c *Coordinator) Initialize() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.DarkMode = c.loadDarkMode()
	c.state.ActiveSection = c.initialSection()
	c.applyTheme()
	c.notify()
	return c.state
}

func (c *Coordinator) initialSection() string {
	if c.defaultSection != "" {
		return c.defaultSection
	}
	if regions := c.registry.ListRegions(); len(regions) > 0 {
		return regions[0].Name
	}
	return DefaultSection
}

func (c *Coordinator) loadDarkMode() bool {
	if c.prefs == nil {
		return false
	}
	raw, err := c.prefs.Get(DarkModeKey)
	if err != nil {
		c.log.Debug("dark mode preference unavailable", "error", err)
		return false
	}
	dark, err := decodeBool(DarkModeKey, raw)
	if err != nil {
		c.log.Debug("ignoring malformed preference", "error", err)
		return false
	}
	return dark
}

// State returns a copy of the current view state.
func (c *Coordinator) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnScroll recomputes the scrolled flag and the active section for offsetY.
// When no region contains the probe position the active section is kept.
func (c *Coordinator) OnScroll(offsetY float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onScrollLocked(offsetY)
}

func (c *Coordinator) onScrollLocked(offsetY float64) {
	prev := c.state
	c.state.Scrolled = offsetY > c.scrolledThreshold
	if name, ok := Locate(c.registry.ListRegions(), offsetY+c.lookAhead); ok {
		c.state.ActiveSection = name
	}
	if c.state != prev {
		c.notify()
	}
}

// ToggleMenu opens or closes the navigation menu, locking page scroll while open.
func (c *Coordinator) ToggleMenu() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setMenu(!c.state.MenuOpen)
}

// Navigate handles activation of the navigation link for section. An open
// menu is closed; the active section follows the resulting scroll ticks.
func (c *Coordinator) Navigate(section string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.MenuOpen {
		c.setMenu(false)
	}
	c.log.Debug("navigate", "section", section)
}

func (c *Coordinator) setMenu(open bool) {
	c.state.MenuOpen = open
	c.syncScrollLock()
	c.notify()
}

func (c *Coordinator) syncScrollLock() {
	want := c.state.MenuOpen && c.attachedOrStandalone()
	if want == c.locked {
		return
	}
	c.locked = want
	if c.locker == nil {
		return
	}
	if want {
		c.locker.LockScroll()
	} else {
		c.locker.UnlockScroll()
	}
}

// attachedOrStandalone reports whether a view is present to hold the lock.
// A coordinator that never had a scroll source attached is driven directly
// and always counts as present.
func (c *Coordinator) attachedOrStandalone() bool {
	return c.attached || c.generation == 0
}

// ToggleDarkMode flips the theme, persists it and applies it immediately.
func (c *Coordinator) ToggleDarkMode() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.DarkMode = !c.state.DarkMode
	if c.prefs != nil {
		if err := c.prefs.Set(DarkModeKey, encodeBool(c.state.DarkMode)); err != nil {
			c.log.Warn("persisting dark mode", "error", err)
		}
	}
	c.applyTheme()
	c.notify()
}

func (c *Coordinator) applyTheme() {
	if c.theme != nil {
		c.theme.ApplyTheme(c.state.DarkMode)
	}
}

// Subscribe registers fn to receive the state after every change.
func (c *Coordinator) Subscribe(fn func(ViewState)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Coordinator) notify() {
	for _, fn := range c.observers {
		fn(c.state)
	}
}

// Start attaches the coordinator to src. Every tick delivered by src until
// Stop is processed by OnScroll.
func (c *Coordinator) Start(src ScrollSource) error {
	c.mu.Lock()
	if c.attached {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.generation++
	gen := c.generation
	c.attached = true
	c.syncScrollLock()
	c.mu.Unlock()

	unsubscribe := src.Subscribe(func(offsetY float64) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.attached || c.generation != gen {
			return
		}
		c.onScrollLocked(offsetY)
	})

	c.mu.Lock()
	current := c.attached && c.generation == gen
	if current {
		c.unsubscribe = unsubscribe
	}
	c.mu.Unlock()

	// Stopped while subscribing.
	if !current && unsubscribe != nil {
		unsubscribe()
	}
	return nil
}

// Stop detaches the scroll source and releases the scroll lock. It is safe to
// call more than once.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.attached {
		c.mu.Unlock()
		return
	}
	c.attached = false
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.syncScrollLock()
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Run attaches src for the lifetime of ctx. The subscription is released on
// every return path.
func (c *Coordinator) Run(ctx context.Context, src ScrollSource) error {
	if err := c.Start(src); err != nil {
		return err
	}
	defer c.Stop()

	<-ctx.Done()
	return nil
}
