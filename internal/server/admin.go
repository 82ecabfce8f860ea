package server

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Zachkp/portfolio/internal/analytics"
	"github.com/Zachkp/portfolio/internal/apperr"
	"github.com/Zachkp/portfolio/internal/config"
)

const adminCookie = "admin_token"

// adminAuth guards the dashboard with a per-process token issued on login.
type adminAuth struct {
	token    string
	username string
	password string
	tracker  *analytics.Tracker
	log      *slog.Logger
}

func newAdminAuth(cfg config.AdminConfig, tracker *analytics.Tracker, log *slog.Logger) *adminAuth {
	a := &adminAuth{
		token:    analytics.RandomToken(),
		username: cfg.Username,
		password: cfg.Password,
		tracker:  tracker,
		log:      log,
	}
	if a.password == "" {
		log.Warn("admin login disabled: ADMIN_PASSWORD is not set")
	} else {
		log.Info("admin access available", "path", "/admin/login")
	}
	return a
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (a *adminAuth) authorized(c *gin.Context) bool {
	token, err := c.Cookie(adminCookie)
	return err == nil && equal(token, a.token)
}

// middleware redirects browsers to the login page. API and mutating
// requests get a 401 instead.
func (a *adminAuth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.authorized(c) {
			c.Next()
			return
		}
		if c.Request.Method != http.MethodGet || strings.HasPrefix(c.Request.URL.Path, "/admin/api/") {
			abortWithError(c, fmt.Errorf("admin session required: %w", apperr.ErrUnauthorized))
			return
		}
		c.Redirect(http.StatusFound, "/admin/login")
		c.Abort()
	}
}

func retentionText(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	if days > 1 {
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}

func (a *adminAuth) routes(r *gin.Engine, s *Server) {
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{
			"title":     "Privacy Policy",
			"retention": retentionText(s.cfg.Analytics.Retention),
		})
	})

	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{"title": "Admin Login"})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		username := c.PostForm("username")
		password := c.PostForm("password")

		// Both comparisons run so timing does not reveal which field was wrong.
		userOK := equal(username, a.username)
		passOK := equal(password, a.password)
		if a.password == "" || !userOK || !passOK {
			a.log.Warn("failed admin login", "client", a.tracker.Hash(c.ClientIP()))
			c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{"error": "Invalid credentials"})
			return
		}

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(adminCookie, a.token, int((24 * time.Hour).Seconds()), "/admin", "", false, true)
		a.log.Info("admin login", "client", a.tracker.Hash(c.ClientIP()))
		c.Redirect(http.StatusFound, "/admin/dashboard")
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", false, true)
		a.log.Info("admin logout", "client", a.tracker.Hash(c.ClientIP()))
		c.Redirect(http.StatusFound, "/admin/login")
	})

	admin := r.Group("/admin")
	admin.Use(a.middleware())

	admin.GET("/dashboard", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{
			"stats": a.tracker.Stats(),
			"pages": s.sessions.Len(),
		})
	})

	admin.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.tracker.Stats())
	})

	admin.GET("/export/stats", func(c *gin.Context) {
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		a.log.Info("admin stats exported", "client", a.tracker.Hash(c.ClientIP()))
		c.JSON(http.StatusOK, a.tracker.Stats())
	})

	admin.POST("/privacy/cleanup", func(c *gin.Context) {
		removed := a.tracker.Cleanup()
		c.JSON(http.StatusOK, gin.H{"removed": removed})
	})
}
