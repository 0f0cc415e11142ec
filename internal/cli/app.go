package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/glabrego/selfoss-cli/internal/app"
	"github.com/glabrego/selfoss-cli/internal/config"
	"github.com/glabrego/selfoss-cli/internal/entrylist"
	"github.com/glabrego/selfoss-cli/internal/logging"
	"github.com/glabrego/selfoss-cli/internal/selfoss"
	"github.com/glabrego/selfoss-cli/internal/storage"
)

// App wires the client, the offline cache and the sync service for one
// command invocation.
type App struct {
	cfg      config.Config
	repo     *storage.Repository
	client   *selfoss.Client
	service  *app.Service
	counters *entrylist.CounterStore
	logger   *slog.Logger
	logClose io.Closer
}

func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger, logClose io.Closer) (*App, error) {
	repo, err := storage.NewRepository(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}
	if err := repo.Init(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("storage schema: %w", err)
	}
	if err := repo.CheckWritable(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("storage write check failed (%v); verify SELFOSS_DB_PATH is writable: %s", err, cfg.DBPath)
	}

	client := selfoss.NewClient(cfg.BaseURL, cfg.Username, cfg.Password, &http.Client{Timeout: cfg.HTTPTimeout})
	counters := entrylist.NewCounterStore()
	service := app.NewService(client, repo, app.Options{
		PageSize:      cfg.PageSize,
		RetentionDays: cfg.RetentionDays,
		Counters:      counters,
		Logger:        logging.Component(logger, "sync"),
	})

	return &App{
		cfg:      cfg,
		repo:     repo,
		client:   client,
		service:  service,
		counters: counters,
		logger:   logger,
		logClose: logClose,
	}, nil
}

// Login opens a session when credentials are configured. An unreachable
// server is not fatal in offline mode.
func (a *App) Login(ctx context.Context) error {
	err := a.client.Login(ctx)
	if err != nil && selfoss.IsNetworkError(err) && a.cfg.OfflineEnabled {
		a.logger.Warn("server unreachable, continuing offline", "err", err)
		return nil
	}
	return err
}

func (a *App) Behavior() entrylist.Behavior {
	return entrylist.Behavior{
		OfflineEnabled:        a.cfg.OfflineEnabled,
		AutoMarkAsRead:        a.cfg.AutoMarkAsRead,
		AutoCollapse:          a.cfg.AutoCollapse,
		AutoHideReadOnMobile:  a.cfg.AutoHideReadOnMobile,
		ScrollToArticleHeader: a.cfg.ScrollToArticleHeader,
		AutoStreamMore:        a.cfg.AutoStreamMore,
		PageSize:              a.cfg.PageSize,
	}
}

func (a *App) Close() error {
	var errs []error
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	if a.logClose != nil {
		errs = append(errs, a.logClose.Close())
	}
	return errors.Join(errs...)
}
