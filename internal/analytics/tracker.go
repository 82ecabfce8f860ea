// Package analytics counts page visits and section views without storing raw
// client identifiers. Nothing is persisted; counters live for the process.
package analytics

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Visit is a single tracked page hit.
type Visit struct {
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// SectionView records that a page session scrolled a section into view.
type SectionView struct {
	HashedID  string    `json:"hashed_id"`
	Section   string    `json:"section"`
	Timestamp time.Time `json:"timestamp"`
}

type SectionCount struct {
	Section string `json:"section"`
	Views   int64  `json:"views"`
}

type Stats struct {
	TotalVisitors    int64          `json:"total_visitors"`
	UniqueVisitors   int64          `json:"unique_visitors"`
	VisitorsToday    int64          `json:"visitors_today"`
	VisitorsThisWeek int64          `json:"visitors_this_week"`
	TopSections      []SectionCount `json:"top_sections"`
	RecentVisitors   []Visit        `json:"recent_visitors"`
}

const (
	defaultRetention = 365 * 24 * time.Hour
	defaultMaxEvents = 10000
	recentVisitors   = 50
)

// Tracker holds visits and section views within the retention window.
type Tracker struct {
	salt      string
	retention time.Duration
	maxEvents int
	now       func() time.Time
	log       *slog.Logger

	mu       sync.Mutex
	visits   []Visit
	sections []SectionView
}

// NewTracker creates a tracker with a random per-process hashing salt.
func NewTracker(retention time.Duration, maxEvents int, log *slog.Logger) *Tracker {
	if retention <= 0 {
		retention = defaultRetention
	}
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		salt:      RandomToken(),
		retention: retention,
		maxEvents: maxEvents,
		now:       time.Now,
		log:       log,
	}
}

// RandomToken returns 32 random bytes, hex encoded.
func RandomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("analytics: reading random bytes: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// Hash returns a salted, truncated digest of a client identifier.
func (t *Tracker) Hash(id string) string {
	h := sha256.New()
	h.Write([]byte(id + t.salt))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func (t *Tracker) RecordVisit(ip, userAgent, path string) {
	v := Visit{HashedIP: t.Hash(ip), UserAgent: userAgent, Path: path, Timestamp: t.now()}
	t.mu.Lock()
	t.visits = appendCapped(t.visits, v, t.maxEvents)
	t.mu.Unlock()
}

func (t *Tracker) RecordSection(clientID, section string) {
	v := SectionView{HashedID: t.Hash(clientID), Section: section, Timestamp: t.now()}
	t.mu.Lock()
	t.sections = appendCapped(t.sections, v, t.maxEvents)
	t.mu.Unlock()
}

func appendCapped[T any](s []T, v T, max int) []T {
	s = append(s, v)
	if len(s) > max {
		s = append(s[:0:0], s[len(s)-max:]...)
	}
	return s
}

// Stats summarizes the tracked events.
func (t *Tracker) Stats() Stats {
	now := t.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.Add(-7 * 24 * time.Hour)

	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{TotalVisitors: int64(len(t.visits))}
	unique := make(map[string]struct{})
	for _, v := range t.visits {
		unique[v.HashedIP] = struct{}{}
		if !v.Timestamp.Before(startOfDay) {
			stats.VisitorsToday++
		}
		if !v.Timestamp.Before(weekAgo) {
			stats.VisitorsThisWeek++
		}
	}
	stats.UniqueVisitors = int64(len(unique))

	counts := make(map[string]int64)
	for _, s := range t.sections {
		counts[s.Section]++
	}
	for section, n := range counts {
		stats.TopSections = append(stats.TopSections, SectionCount{Section: section, Views: n})
	}
	sort.Slice(stats.TopSections, func(i, j int) bool {
		a, b := stats.TopSections[i], stats.TopSections[j]
		if a.Views != b.Views {
			return a.Views > b.Views
		}
		return a.Section < b.Section
	})

	for i := len(t.visits) - 1; i >= 0 && len(stats.RecentVisitors) < recentVisitors; i-- {
		stats.RecentVisitors = append(stats.RecentVisitors, t.visits[i])
	}
	return stats
}

// Cleanup drops events older than the retention window and returns how many
// were removed.
func (t *Tracker) Cleanup() int {
	cutoff := t.now().Add(-t.retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	t.visits, removed = dropBefore(t.visits, cutoff, func(v Visit) time.Time { return v.Timestamp })
	var n int
	t.sections, n = dropBefore(t.sections, cutoff, func(v SectionView) time.Time { return v.Timestamp })
	removed += n
	if removed > 0 {
		t.log.Info("privacy cleanup", "removed", removed, "retention", t.retention)
	}
	return removed
}

// dropBefore relies on events being appended in time order.
func dropBefore[T any](s []T, cutoff time.Time, ts func(T) time.Time) ([]T, int) {
	i := 0
	for i < len(s) && ts(s[i]).Before(cutoff) {
		i++
	}
	if i == 0 {
		return s, 0
	}
	return append(s[:0:0], s[i:]...), i
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (t *Tracker) RunCleanup(ctx context.Context, interval time.Duration) error {
	t.Cleanup()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Cleanup()
		}
	}
}

// Middleware records page visits, skipping assets, the admin area, the live
// channel and clients sending Do Not Track.
func (t *Tracker) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != "GET" || skipTracking(path) || c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}
		t.RecordVisit(c.ClientIP(), c.GetHeader("User-Agent"), path)
		c.Next()
	}
}

func skipTracking(path string) bool {
	for _, prefix := range []string{"/static/", "/admin/", "/api/", "/ws", "/favicon", "/privacy", "/healthz"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
