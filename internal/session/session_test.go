package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Zachkp/portfolio/internal/preference"
	"github.com/Zachkp/portfolio/internal/viewstate"
)

var sections = []string{"home", "about", "projects"}

var layout = []viewstate.Region{
	{Name: "home", TopOffset: 0, Height: 800},
	{Name: "about", TopOffset: 800, Height: 600},
	{Name: "projects", TopOffset: 1400, Height: 900},
}

func TestCreateInitializesFromVisitorPreference(t *testing.T) {
	prefs := preference.NewMemory()
	_ = prefs.Set("visitor-1", viewstate.DarkModeKey, "true")

	var created []string
	m := NewManager(prefs, sections, WithOnCreate(func(s *Session) { created = append(created, s.ID) }))
	s := m.Create("visitor-1")

	st := s.Coordinator.State()
	if !st.DarkMode || st.ActiveSection != "home" {
		t.Fatalf("state = %+v", st)
	}
	if got, ok := m.Get(s.ID); !ok || got != s {
		t.Fatal("session not registered")
	}
	if len(created) != 1 || created[0] != s.ID {
		t.Fatalf("onCreate calls = %v", created)
	}
	if other := m.Create("visitor-2"); other.Coordinator.State().DarkMode {
		t.Fatal("preference leaked to another visitor")
	}
}

func TestSeedLayoutNeverMatches(t *testing.T) {
	m := NewManager(preference.NewMemory(), sections)
	s := m.Create("v")
	s.Coordinator.OnScroll(500)
	if got := s.Coordinator.State().ActiveSection; got != "home" {
		t.Fatalf("active = %q before layout report", got)
	}
	if err := s.Dispatch(Inbound{Type: "layout", Regions: layout}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Dispatch(Inbound{Type: "scroll", Y: 750}, nil); err != nil {
		t.Fatal(err)
	}
	if got := s.Coordinator.State().ActiveSection; got != "about" {
		t.Fatalf("active = %q, want about", got)
	}
}

func TestDispatch(t *testing.T) {
	m := NewManager(preference.NewMemory(), sections)
	s := m.Create("v")

	steps := []struct {
		msg     Inbound
		wantErr error
		check   func(viewstate.ViewState) bool
	}{
		{msg: Inbound{Type: "menu"}, check: func(v viewstate.ViewState) bool { return v.MenuOpen }},
		{msg: Inbound{Type: "navigate", Section: "about"}, check: func(v viewstate.ViewState) bool { return !v.MenuOpen }},
		{msg: Inbound{Type: "theme"}, check: func(v viewstate.ViewState) bool { return v.DarkMode }},
		{msg: Inbound{Type: "layout", Regions: []viewstate.Region{{Name: "a"}, {Name: "a"}}}, wantErr: errAny},
		{msg: Inbound{Type: "dance"}, wantErr: ErrUnknownMessage},
	}
	for i, step := range steps {
		err := s.Dispatch(step.msg, nil)
		switch {
		case step.wantErr == errAny && err == nil:
			t.Fatalf("step %d: expected error", i)
		case step.wantErr != nil && step.wantErr != errAny && !errors.Is(err, step.wantErr):
			t.Fatalf("step %d: err = %v, want %v", i, err, step.wantErr)
		case step.wantErr == nil && err != nil:
			t.Fatalf("step %d: %v", i, err)
		}
		if step.check != nil && !step.check(s.Coordinator.State()) {
			t.Fatalf("step %d: state = %+v", i, s.Coordinator.State())
		}
	}
}

var errAny = errors.New("any error")

func TestEvict(t *testing.T) {
	m := NewManager(preference.NewMemory(), sections)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	old := m.Create("a")
	connected := m.Create("c")
	now = now.Add(20 * time.Minute)
	fresh := m.Create("b")
	detach, ok := connected.effects.attach(&nopEffects{})
	if !ok {
		t.Fatal("attach failed")
	}
	defer detach()

	now = now.Add(15 * time.Minute)
	if n := m.Evict(30 * time.Minute); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if _, ok := m.Get(old.ID); ok {
		t.Error("idle session survived")
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Error("fresh session evicted")
	}
	if _, ok := m.Get(connected.ID); !ok {
		t.Error("connected session evicted")
	}
	if m.Len() != 2 {
		t.Errorf("len = %d", m.Len())
	}

	m.Close()
	if m.Len() != 0 {
		t.Error("Close left sessions")
	}
}

type nopEffects struct{}

func (nopEffects) LockScroll()     {}
func (nopEffects) UnlockScroll()   {}
func (nopEffects) ApplyTheme(bool) {}

func TestJanitorStops(t *testing.T) {
	m := NewManager(preference.NewMemory(), sections)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Janitor(ctx, 5*time.Millisecond, time.Hour) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

var upgrader = websocket.Upgrader{}

func liveServer(t *testing.T, s *Session) (*httptest.Server, chan error) {
	t.Helper()
	served := make(chan error, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			served <- err
			return
		}
		defer conn.Close()
		served <- Serve(r.Context(), s, conn, nil)
	}))
	t.Cleanup(srv.Close)
	return srv, served
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(Outbound) bool) Outbound {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg Outbound
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func TestServeDrivesCoordinator(t *testing.T) {
	m := NewManager(preference.NewMemory(), sections)
	s := m.Create("visitor")
	srv, served := liveServer(t, s)
	conn := dial(t, srv)

	first := readUntil(t, conn, func(o Outbound) bool { return o.Type == "state" })
	if first.State.ActiveSection != "home" {
		t.Fatalf("initial state = %+v", first.State)
	}

	send := func(msg Inbound) {
		t.Helper()
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatal(err)
		}
	}

	send(Inbound{Type: "layout", Regions: layout})
	send(Inbound{Type: "scroll", Y: 750})
	got := readUntil(t, conn, func(o Outbound) bool { return o.Type == "state" && o.State.ActiveSection == "about" })
	if !got.State.Scrolled {
		t.Errorf("expected scrolled state: %+v", got.State)
	}

	send(Inbound{Type: "menu"})
	lock := readUntil(t, conn, func(o Outbound) bool { return o.Type == "scroll-lock" })
	if lock.Locked == nil || !*lock.Locked {
		t.Fatalf("lock = %+v", lock)
	}
	send(Inbound{Type: "navigate", Section: "projects"})
	unlock := readUntil(t, conn, func(o Outbound) bool { return o.Type == "scroll-lock" })
	if unlock.Locked == nil || *unlock.Locked {
		t.Fatalf("unlock = %+v", unlock)
	}

	send(Inbound{Type: "theme"})
	theme := readUntil(t, conn, func(o Outbound) bool { return o.Type == "theme" })
	if theme.Dark == nil || !*theme.Dark {
		t.Fatalf("theme = %+v", theme)
	}

	send(Inbound{Type: "bogus"})
	readUntil(t, conn, func(o Outbound) bool { return o.Type == "error" })

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after close")
	}

	// Ticks after disconnect are no longer delivered; direct calls still work.
	if s.effects.connected() {
		t.Error("effects still attached after disconnect")
	}
	if err := s.Coordinator.Start(viewstateSourceNop{}); err != nil {
		t.Errorf("coordinator should be detached after Serve returns: %v", err)
	}
	s.Coordinator.Stop()
}

type viewstateSourceNop struct{}

func (viewstateSourceNop) Subscribe(func(float64)) func() { return func() {} }

func TestServeRejectsSecondConnection(t *testing.T) {
	m := NewManager(preference.NewMemory(), sections)
	s := m.Create("visitor")
	srv, served := liveServer(t, s)

	first := dial(t, srv)
	defer first.Close()
	readUntil(t, first, func(o Outbound) bool { return o.Type == "state" })

	second := dial(t, srv)
	defer second.Close()
	msg := readUntil(t, second, func(o Outbound) bool { return o.Type == "error" })
	if msg.Error != ErrAlreadyConnected.Error() {
		t.Fatalf("error = %q", msg.Error)
	}
	select {
	case err := <-served:
		if !errors.Is(err, ErrAlreadyConnected) {
			t.Fatalf("Serve = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second Serve did not return")
	}

	// The first connection keeps working.
	if err := first.WriteJSON(Inbound{Type: "menu"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, first, func(o Outbound) bool { return o.Type == "scroll-lock" })
}

func TestMaxSessionsEvictsLeastRecentlyUsed(t *testing.T) {
	m := NewManager(preference.NewMemory(), sections, WithMaxSessions(2))
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	connected := m.Create("a")
	now = now.Add(time.Minute)
	idle := m.Create("b")
	detach, ok := connected.effects.attach(nopEffects{})
	if !ok {
		t.Fatal("attach failed")
	}
	defer detach()

	now = now.Add(time.Minute)
	newest := m.Create("c", DoNotTrack())

	if m.Len() != 2 {
		t.Fatalf("len = %d, want 2", m.Len())
	}
	if _, ok := m.Get(idle.ID); ok {
		t.Error("least recently used idle session kept")
	}
	if _, ok := m.Get(connected.ID); !ok {
		t.Error("connected session evicted")
	}
	if _, ok := m.Get(newest.ID); !ok || !newest.DoNotTrack {
		t.Error("new session missing or lost its options")
	}
}

func TestForgetVisitor(t *testing.T) {
	prefs := preference.NewMemory()
	m := NewManager(prefs, sections)
	m.Create("v").Coordinator.ToggleDarkMode()

	if n, err := m.ForgetVisitor("v"); err != nil || n != 1 {
		t.Fatalf("ForgetVisitor = %d, %v", n, err)
	}
	if m.Create("v").Coordinator.State().DarkMode {
		t.Error("preference survived ForgetVisitor")
	}
}

func TestServeClosesOnOversizedMessage(t *testing.T) {
	m := NewManager(preference.NewMemory(), sections)
	s := m.Create("visitor")
	srv, served := liveServer(t, s)
	conn := dial(t, srv)
	defer conn.Close()
	readUntil(t, conn, func(o Outbound) bool { return o.Type == "state" })

	big := `{"type":"layout","regions":[{"name":"` + strings.Repeat("x", maxMessageSize) + `"}]}`
	// The server may drop the connection before the frame is fully written.
	_ = conn.WriteMessage(websocket.TextMessage, []byte(big))
	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept reading past the message limit")
	}
	if s.effects.connected() {
		t.Error("effects still attached")
	}
}

// acceptOne upgrades a single connection and hands the server side back.
func acceptOne(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)
	client = dial(t, srv)
	t.Cleanup(func() { client.Close() })
	select {
	case server = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("no server connection")
	}
	return server, client
}

func TestSendDoesNotBlockOnStalledPage(t *testing.T) {
	conn, _ := acceptOne(t)
	// No writer is running, so the queue fills as if the page stopped reading.
	sock := newSocket(conn, slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer+5; i++ {
			sock.sendState(viewstate.ViewState{ActiveSection: "home"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked on a full queue")
	}
	select {
	case <-sock.done:
	default:
		t.Error("stalled socket was not closed")
	}
}
