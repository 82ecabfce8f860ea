package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Zachkp/portfolio/internal/apperr"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/viewstate"
)

const (
	pageHeader = "X-Page-ID"
	sessionKey = "page-session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func pageID(c *gin.Context) string {
	if id := c.GetHeader(pageHeader); id != "" {
		return id
	}
	return c.Query("page")
}

func (s *Server) lookupPage(c *gin.Context) (*session.Session, error) {
	id := pageID(c)
	if id == "" {
		return nil, fmt.Errorf("missing page id: %w", apperr.ErrInvalidInput)
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("page %s: %w", id, apperr.ErrNotFound)
	}
	return sess, nil
}

// pageSession resolves the page session named by the X-Page-ID header or the
// page query parameter.
func (s *Server) pageSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.lookupPage(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func current(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, current(c).Coordinator.State())
}

func (s *Server) handleMenu(c *gin.Context) {
	sess := current(c)
	sess.Coordinator.ToggleMenu()
	c.JSON(http.StatusOK, sess.Coordinator.State())
}

func (s *Server) handleTheme(c *gin.Context) {
	sess := current(c)
	sess.Coordinator.ToggleDarkMode()
	c.JSON(http.StatusOK, sess.Coordinator.State())
}

func (s *Server) handleNavigate(c *gin.Context) {
	section := c.Param("section")
	if !s.catalogue.HasSection(section) {
		abortWithError(c, fmt.Errorf("section %q: %w", section, apperr.ErrNotFound))
		return
	}
	sess := current(c)
	sess.Coordinator.Navigate(section)
	c.JSON(http.StatusOK, sess.Coordinator.State())
}

type scrollRequest struct {
	Y *float64 `json:"y"`
}

func (s *Server) handleScroll(c *gin.Context) {
	var req scrollRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Y == nil {
		abortWithError(c, fmt.Errorf("scroll offset required: %w", apperr.ErrInvalidInput))
		return
	}
	sess := current(c)
	if err := sess.Dispatch(session.Inbound{Type: "scroll", Y: *req.Y}, nil); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Coordinator.State())
}

type layoutRequest struct {
	Regions []viewstate.Region `json:"regions"`
}

func (s *Server) handleLayout(c *gin.Context) {
	var req layoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, fmt.Errorf("layout: %v: %w", err, apperr.ErrInvalidInput))
		return
	}
	sess := current(c)
	if err := sess.Dispatch(session.Inbound{Type: "layout", Regions: req.Regions}, nil); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"regions": len(req.Regions)})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	sess, err := s.lookupPage(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	if err := session.Serve(c.Request.Context(), sess, conn, s.log); err != nil {
		s.log.Debug("live channel closed", "page", sess.ID, "error", err)
	}
}
