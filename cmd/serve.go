package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Zachkp/portfolio/internal/analytics"
	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/preference"
	"github.com/Zachkp/portfolio/internal/server"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/viewstate"
)

const janitorInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the portfolio web server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "override the HTTP port")
	rootCmd.AddCommand(serveCmd)
	rootCmd.RunE = runServe
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.App.HTTP.Port = port
	}

	level, err := cfg.App.Level()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	gin.SetMode(cfg.App.Mode)

	logger.Info("configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("db_path", cfg.Storage.DBPath),
		slog.String("content_file", cfg.Content.File),
		slog.String("log_level", level.String()))

	prefs, closePrefs, err := openPreferences(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer closePrefs()

	cat, err := loadCatalogue(cfg.Content.File)
	if err != nil {
		return fmt.Errorf("loading catalogue: %w", err)
	}

	tracker := analytics.NewTracker(cfg.Analytics.Retention, cfg.Analytics.MaxEvents, logger)
	sessions := session.NewManager(prefs, cat.SectionIDs(),
		session.WithLogger(logger),
		session.WithOnCreate(server.TrackSections(tracker)),
		session.WithMaxSessions(cfg.View.MaxSessions),
		session.WithViewOptions(
			viewstate.WithLookAhead(cfg.View.LookAhead),
			viewstate.WithScrolledThreshold(cfg.View.ScrolledThreshold),
		),
	)
	defer sessions.Close()

	srv, err := server.New(cfg, cat, sessions, tracker, logger)
	if err != nil {
		return fmt.Errorf("building server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gCtx) })
	g.Go(func() error { return sessions.Janitor(gCtx, janitorInterval, cfg.View.SessionIdle) })
	g.Go(func() error { return tracker.RunCleanup(gCtx, cfg.Analytics.CleanupInterval) })

	if err := g.Wait(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("server stopped")
	return nil
}

// openPreferences opens the SQLite store at path, or an in-memory store when
// path is empty.
func openPreferences(path string) (preference.Store, func(), error) {
	if path == "" {
		return preference.NewMemory(), func() {}, nil
	}
	db, err := preference.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening preferences: %w", err)
	}
	return db, func() { _ = db.Close() }, nil
}
