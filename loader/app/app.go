package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prawnloader/prawnloader/loader/catalog"
	"github.com/prawnloader/prawnloader/loader/config"
	"github.com/prawnloader/prawnloader/loader/db"
	"github.com/prawnloader/prawnloader/loader/encode"
	"github.com/prawnloader/prawnloader/loader/engine"
	"github.com/prawnloader/prawnloader/loader/events"
	"github.com/prawnloader/prawnloader/loader/id3"
	logpkg "github.com/prawnloader/prawnloader/loader/logger"
	"github.com/prawnloader/prawnloader/loader/platform"
	platformplugins "github.com/prawnloader/prawnloader/loader/platform/plugins"
	"github.com/prawnloader/prawnloader/loader/platform/registry"
	"github.com/prawnloader/prawnloader/loader/resolve"
)

// App wires all application dependencies.
type App struct {
	Config   *config.Config
	Logger   *logpkg.Logger
	DB       *db.Repository
	Manager  *platform.Manager
	Grammars *registry.Registry
	Resolver *resolve.Resolver
	Catalog  *catalog.Catalog
	Engine   *engine.Engine
	Encoder  *encode.FFmpeg
}

// Options adjusts construction, mostly for tests.
type Options struct {
	// Logger replaces the configured logger when set.
	Logger *logpkg.Logger
	// Plugins limits the loaded plugins; nil loads every configured or
	// registered plugin.
	Plugins []string
}

// New builds the application container.
func New(ctx context.Context, configPath string, opts Options) (*App, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log, err = logpkg.New(logpkg.Options{
			Level:     conf.GetString("LogLevel"),
			Format:    conf.GetString("LogFormat"),
			AddSource: conf.GetBool("LogSource"),
			Dir:       conf.GetString("LogDir"),
		})
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	databasePath := strings.TrimSpace(conf.GetString("Database"))
	if databasePath == "" {
		databasePath = "history.db"
	}
	gormLogger := logpkg.NewGormLogger(log.Slog(), logpkg.GormLevel(conf.GetString("GormLogLevel")))
	repo, err := db.NewSQLiteRepository(databasePath, gormLogger)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("init db: %w", err)
	}

	manager := platform.NewManager()
	grammars := registry.New()
	loadPlugins(conf, log, opts.Plugins, manager, grammars)
	if len(manager.Providers()) == 0 {
		_ = repo.Close()
		_ = log.Close()
		return nil, errors.New("no provider plugins loaded")
	}

	resolver := resolve.New(grammars, resolve.Options{
		Timeout: time.Duration(conf.GetInt("RedirectTimeoutSec")) * time.Second,
		Logger:  log.With("component", "resolver"),
	})

	cat := catalog.New(manager, catalog.Options{
		MemberRetries: conf.GetInt("MemberRetries"),
		RetryWaitMin:  time.Duration(conf.GetInt("MemberRetryWaitMinMs")) * time.Millisecond,
		RetryWaitMax:  time.Duration(conf.GetInt("MemberRetryWaitMaxMs")) * time.Millisecond,
		MemberTimeout: time.Duration(conf.GetInt("MemberTimeoutSec")) * time.Second,
		Concurrency:   conf.GetInt("MemberConcurrency"),
		Logger:        log.With("component", "catalog"),
	})

	encoder := encode.New(conf.GetString("FFmpegPath"), log.With("component", "ffmpeg"))
	if !encoder.Available() {
		log.Warn("ffmpeg not found; transcoding, merging and chapter splitting will fail", "path", conf.GetString("FFmpegPath"))
	}

	engineCfg := engine.Config{
		Workers:   conf.GetInt("WorkerCount"),
		QueueSize: conf.GetInt("QueueSize"),
		Encoder:   encoder,
		Recorder:  repo,
		Logger:    log.With("component", "engine"),
	}
	if conf.GetBool("EmbedTags") {
		engineCfg.Tagger = id3.NewService(id3.Options{
			CoverMaxSize: conf.GetInt("CoverMaxSize"),
			Logger:       log.With("component", "tagger"),
		})
	}

	eng := engine.New(manager, engineCfg)
	log.Info("loader ready", "providers", manager.Providers(), "workers", engineCfg.Workers)

	return &App{
		Config:   conf,
		Logger:   log,
		DB:       repo,
		Manager:  manager,
		Grammars: grammars,
		Resolver: resolver,
		Catalog:  cat,
		Engine:   eng,
		Encoder:  encoder,
	}, nil
}

func loadPlugins(conf *config.Config, log *logpkg.Logger, only []string, manager *platform.Manager, grammars *registry.Registry) {
	names := only
	if names == nil {
		names = platformplugins.Names()
	}
	for _, name := range names {
		if !conf.PluginEnabled(name) {
			log.Info("plugin disabled by config", "plugin", name)
			continue
		}
		factory, ok := platformplugins.Get(name)
		if !ok {
			log.Warn("plugin not registered", "plugin", name)
			continue
		}
		contrib, err := factory(conf, log)
		if err != nil {
			log.Error("plugin init failed", "plugin", name, "error", err)
			continue
		}
		if contrib == nil || contrib.Client == nil {
			continue
		}
		if err := manager.Register(contrib.Client); err != nil {
			log.Error("register client failed", "plugin", name, "error", err)
			continue
		}
		if contrib.Grammar != nil {
			if err := grammars.Register(contrib.Grammar); err != nil {
				log.Error("register grammar failed", "plugin", name, "error", err)
			}
		}
	}
}

// ResolveItem turns a URL into a downloadable item using the current settings.
func (a *App) ResolveItem(ctx context.Context, rawURL string) (engine.Item, error) {
	ref, err := a.Resolver.Resolve(ctx, rawURL)
	if err != nil {
		return engine.Item{}, err
	}
	settings := a.Config.Settings()

	if ref.Kind.IsCollection() {
		album, ok, err := a.Catalog.FetchAlbum(ctx, ref)
		if err != nil {
			return engine.Item{}, err
		}
		if !ok {
			return engine.Item{}, platform.NewNotFoundError(string(ref.Provider), ref.Kind.String(), ref.ID)
		}
		if ref.Kind == platform.KindAlbum {
			return engine.NewAlbumItem(ref.Provider, album, settings.MergeTracks), nil
		}
		return engine.NewPlaylistItem(ref.Provider, album), nil
	}

	song, ok, err := a.Catalog.FetchSong(ctx, ref)
	if err != nil {
		return engine.Item{}, err
	}
	if !ok {
		return engine.Item{}, platform.NewNotFoundError(string(ref.Provider), ref.Kind.String(), ref.ID)
	}
	if ref.Kind == platform.KindVideo {
		return engine.NewVideoItem(ref.Provider, song, settings.SplitByChapters), nil
	}
	return engine.NewTrackItem(ref.Provider, song), nil
}

// Submit enqueues req with a snapshot of the current settings.
func (a *App) Submit(req engine.DownloadRequest) error {
	return a.Engine.Submit(req, engine.OptionsFromSettings(a.Config.Settings()))
}

// Settings returns the current settings.
func (a *App) Settings() config.Settings {
	return a.Config.Settings()
}

// UpdateSettings validates and stores s. Queued requests keep their snapshot.
func (a *App) UpdateSettings(s config.Settings) error {
	return a.Config.UpdateSettings(s)
}

// Stop cancels a downloading request.
func (a *App) Stop(id uuid.UUID) error {
	return a.Engine.Stop(id)
}

// Clear drops every waiting request of provider.
func (a *App) Clear(provider platform.Provider) int {
	return a.Engine.Clear(provider)
}

// Requests returns the registered requests in submit order.
func (a *App) Requests() []engine.RequestStatus {
	return a.Engine.Requests()
}

// Events returns the progress event stream.
func (a *App) Events() <-chan events.Event {
	return a.Engine.Events()
}

// History returns the latest recorded outcomes.
func (a *App) History(ctx context.Context, limit int) ([]engine.Outcome, error) {
	return a.DB.Recent(ctx, limit)
}

// Shutdown stops the engine and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if a.Engine != nil {
		if err := a.Engine.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("shutdown engine: %w", err)
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			if a.Logger != nil {
				a.Logger.Error("failed to close database", "error", err)
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("close database: %w", err)
			}
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close logger: %w", err)
		}
	}

	return firstErr
}
