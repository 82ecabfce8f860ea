package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Zachkp/portfolio/internal/viewstate"
)

const writeWait = 5 * time.Second

// Inbound is a message sent by the page.
type Inbound struct {
	Type    string             `json:"type"` // scroll, layout, menu, theme, navigate
	Y       float64            `json:"y,omitempty"`
	Regions []viewstate.Region `json:"regions,omitempty"`
	Section string             `json:"section,omitempty"`
}

// Outbound is a message pushed to the page.
type Outbound struct {
	Type   string               `json:"type"` // state, scroll-lock, theme, error
	State  *viewstate.ViewState `json:"state,omitempty"`
	Locked *bool                `json:"locked,omitempty"`
	Dark   *bool                `json:"dark,omitempty"`
	Error  string               `json:"error,omitempty"`
}

const (
	// maxMessageSize bounds a single page message; layout reports are the largest.
	maxMessageSize = 64 << 10
	// sendBuffer is how many outbound messages may queue before the page is
	// considered too slow and disconnected.
	sendBuffer = 32
)

// Socket carries one page's live channel. It is the coordinator's scroll
// source and the sink for its side effects. Outbound messages are queued and
// written by a single writer goroutine, so callers never block on the network.
type Socket struct {
	conn *websocket.Conn
	log  *slog.Logger

	out       chan Outbound
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	scroll func(float64)
}

func newSocket(conn *websocket.Conn, log *slog.Logger) *Socket {
	return &Socket{
		conn: conn,
		log:  log,
		out:  make(chan Outbound, sendBuffer),
		done: make(chan struct{}),
	}
}

// Subscribe implements viewstate.ScrollSource. Only the latest subscriber
// receives ticks.
func (s *Socket) Subscribe(fn func(offsetY float64)) (unsubscribe func()) {
	s.mu.Lock()
	s.scroll = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.scroll = nil
			s.mu.Unlock()
		})
	}
}

func (s *Socket) deliverScroll(y float64) {
	s.mu.Lock()
	fn := s.scroll
	s.mu.Unlock()
	if fn != nil {
		fn(y)
	}
}

func (s *Socket) LockScroll() {
	locked := true
	s.send(Outbound{Type: "scroll-lock", Locked: &locked})
}

func (s *Socket) UnlockScroll() {
	locked := false
	s.send(Outbound{Type: "scroll-lock", Locked: &locked})
}

func (s *Socket) ApplyTheme(dark bool) {
	s.send(Outbound{Type: "theme", Dark: &dark})
}

func (s *Socket) sendState(st viewstate.ViewState) {
	s.send(Outbound{Type: "state", State: &st})
}

func (s *Socket) sendError(msg string) {
	s.send(Outbound{Type: "error", Error: msg})
}

// send queues msg for the writer. A full queue means the page stopped
// reading; the connection is closed instead of blocking the caller.
func (s *Socket) send(msg Outbound) {
	select {
	case <-s.done:
	case s.out <- msg:
	default:
		s.log.Warn("websocket send queue full, closing", "type", msg.Type)
		s.close()
	}
}

func (s *Socket) write(msg Outbound) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

func (s *Socket) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.out:
			if err := s.write(msg); err != nil {
				s.log.Debug("websocket write", "type", msg.Type, "error", err)
				s.close()
				return
			}
		}
	}
}

func (s *Socket) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Serve runs the live channel of sess over conn until the page disconnects
// or ctx is done. The coordinator is attached to the connection for exactly
// that long.
func Serve(ctx context.Context, sess *Session, conn *websocket.Conn, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("page", sess.ID)
	sock := newSocket(conn, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock ReadMessage when ctx is cancelled from outside.
	go func() {
		<-ctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	detach, ok := sess.effects.attach(sock)
	if !ok {
		_ = sock.write(Outbound{Type: "error", Error: ErrAlreadyConnected.Error()})
		return ErrAlreadyConnected
	}
	defer sock.close()
	defer detach()
	go sock.writeLoop()

	if err := sess.Coordinator.Start(sock); err != nil {
		sock.sendError(err.Error())
		return err
	}
	defer sess.Coordinator.Stop()

	unsubscribe := sess.Coordinator.Subscribe(sock.sendState)
	defer unsubscribe()

	sock.sendState(sess.Coordinator.State())

	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read", "error", err)
				return err
			}
			return nil
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			sock.sendError("invalid message format")
			continue
		}
		if err := sess.Dispatch(msg, sock); err != nil {
			sock.sendError(err.Error())
		}
	}
}

var (
	// ErrUnknownMessage is returned by Dispatch for unsupported message types.
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrAlreadyConnected is returned by Serve when the page already has a live channel.
	ErrAlreadyConnected = errors.New("page already connected")
)

// Dispatch applies one page message to the session. Scroll ticks go through
// src when it is the attached scroll source, and to the coordinator directly
// otherwise.
func (s *Session) Dispatch(msg Inbound, src *Socket) error {
	switch msg.Type {
	case "scroll":
		if src != nil {
			src.deliverScroll(msg.Y)
		} else {
			s.Coordinator.OnScroll(msg.Y)
		}
	case "layout":
		return s.Layout.Update(msg.Regions)
	case "menu":
		s.Coordinator.ToggleMenu()
	case "theme":
		s.Coordinator.ToggleDarkMode()
	case "navigate":
		s.Coordinator.Navigate(msg.Section)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	return nil
}
