package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Zachkp/portfolio/internal/apperr"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/viewstate"
)

const visitorCookie = "portfolio_visitor"

var projectFilters = []string{content.CategoryAll, content.CategoryWeb, content.CategoryAI, content.CategoryTools}

type pageData struct {
	Catalogue       *content.Catalogue
	State           viewstate.ViewState
	PageID          string
	SplashMillis    int64
	Filters         []string
	Filter          string
	Projects        []content.Project
	ExperienceIndex int
	Experience      *content.Experience
	Year            int
}

// visitorID returns the visitor cookie, issuing a new one when missing or
// malformed.
func visitorID(c *gin.Context) string {
	if id, err := c.Cookie(visitorCookie); err == nil {
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(visitorCookie, id, int((365 * 24 * time.Hour).Seconds()), "/", "", false, true)
	return id
}

func (s *Server) handleIndex(c *gin.Context) {
	var opts []session.CreateOption
	if c.GetHeader("DNT") == "1" {
		opts = append(opts, session.DoNotTrack())
	}
	sess := s.sessions.Create(visitorID(c), opts...)

	data := pageData{
		Catalogue:    s.catalogue,
		State:        sess.Coordinator.State(),
		PageID:       sess.ID,
		SplashMillis: s.cfg.View.SplashDuration.Milliseconds(),
		Filters:      projectFilters,
		Filter:       content.CategoryAll,
		Projects:     s.catalogue.ProjectsByCategory(content.CategoryAll),
		Year:         time.Now().Year(),
	}
	if len(s.catalogue.Experience) > 0 {
		data.Experience = &s.catalogue.Experience[0]
	}
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) handleProjects(c *gin.Context) {
	filter := c.DefaultQuery("filter", content.CategoryAll)
	c.HTML(http.StatusOK, "projects.html", pageData{
		Filter:   filter,
		Projects: s.catalogue.ProjectsByCategory(filter),
	})
}

func (s *Server) handleExperience(c *gin.Context) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		abortWithError(c, fmt.Errorf("experience index %q: %w", c.Param("index"), apperr.ErrInvalidInput))
		return
	}
	e, err := s.catalogue.ExperienceAt(i)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.HTML(http.StatusOK, "experience.html", pageData{ExperienceIndex: i, Experience: &e})
}

// handleContact validates the form and discards it. Nothing is delivered.
func (s *Server) handleContact(c *gin.Context) {
	var form contact.Form
	if err := c.ShouldBind(&form); err != nil {
		c.HTML(http.StatusBadRequest, "contact-error.html", gin.H{
			"error": "Sorry, your message could not be read. Please try again.",
		})
		return
	}

	if err := form.Validate(); err != nil {
		c.HTML(http.StatusOK, "contact-error.html", gin.H{
			"error":  "Please correct the highlighted fields.",
			"fields": contact.FieldErrors(err),
		})
		return
	}

	form.Normalize()
	s.log.Info("contact form accepted", "subject", form.Subject, "message_length", len(form.Message))
	c.HTML(http.StatusOK, "contact-success.html", gin.H{
		"success": "Thank you for your message! I'll get back to you soon.",
	})
}

// handleForget deletes the stored preferences of the requesting visitor and
// expires the visitor cookie.
func (s *Server) handleForget(c *gin.Context) {
	var removed int64
	if id, err := c.Cookie(visitorCookie); err == nil {
		n, err := s.sessions.ForgetVisitor(id)
		if err != nil {
			s.log.Error("forgetting visitor preferences", "error", err)
			abortWithError(c, err)
			return
		}
		removed = n
	}
	c.SetCookie(visitorCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
