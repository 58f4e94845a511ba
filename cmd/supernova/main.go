package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/supernova/supernova/internal/api"
	"github.com/supernova/supernova/internal/avatar"
	"github.com/supernova/supernova/internal/broll"
	"github.com/supernova/supernova/internal/composition"
	"github.com/supernova/supernova/internal/config"
	"github.com/supernova/supernova/internal/creator"
	"github.com/supernova/supernova/internal/db"
	"github.com/supernova/supernova/internal/footage"
	"github.com/supernova/supernova/internal/logging"
	"github.com/supernova/supernova/internal/progress"
	"github.com/supernova/supernova/internal/scriptgen"
	"github.com/supernova/supernova/internal/studio"
	"github.com/supernova/supernova/internal/ui"
)

var Version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting supernova", "version", Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := studio.NewRepository(database.Conn())

	installID, err := ensureInstallID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure install ID: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keys := cfg.Keys()
	features := cfg.Features()

	generator := newGenerator(cfg, logger)
	footageClient := newFootageClient(cfg, logger)
	avatarClient := newAvatarClient(cfg, logger)
	profiles := newProfileSource(ctx, keys.YouTube, logger)
	trends := newTrendSource(features, logger)

	rules := broll.DefaultRules()
	if path := cfg.BRollRulesPath(); path != "" {
		rules, err = broll.LoadRules(path)
		if err != nil {
			return fmt.Errorf("failed to load b-roll rules: %w", err)
		}
		logger.Info("loaded b-roll rules", "path", path, "rules", len(rules.Rules))
	}

	hub := progress.NewHub()
	defer hub.Close()

	catalog := avatar.NewCachedCatalog(avatarClient, logger)
	if keys.Avatar != "" {
		go func() {
			vctx, vcancel := context.WithTimeout(ctx, 15*time.Second)
			defer vcancel()
			if err := catalog.Validate(vctx); err != nil {
				logger.Warn("avatar key validation failed", "error", err)
				return
			}
			logger.Info("avatar key validated")
		}()
	}
	pipeline := studio.Pipeline{
		Poller:   avatar.NewPoller(avatarClient, cfg.AvatarPollInterval(), cfg.AvatarMaxPolls(), logger),
		Rules:    rules,
		Matcher:  broll.NewMatcher(footageClient, cfg.FootageConcurrency(), logger),
		Composer: composition.NewComposer(cfg.ComposeStageDelay(), logger),
	}

	service := studio.NewService(repo, generator, profiles, trends, features, logger)
	runner := studio.NewRunner(repo, pipeline, hub, cfg.RenderPollInterval(), logger)
	go runner.Start(ctx)

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                     SUPERNOVA v0.1.0                      ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Install ID: %-45s ║\n", installID[:8]+"...")
	fmt.Printf("║  Live APIs:  %-45s ║\n", liveServices(keys))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	apiServer := api.NewServer(api.ServerConfig{
		Port:      cfg.Port(),
		Service:   service,
		Runner:    runner,
		Hub:       hub,
		Catalog:   catalog,
		Avatars:   avatar.NewAvatarUploader(avatarClient, cfg.AvatarPollInterval(), cfg.AvatarMaxPolls(), logger),
		Footage:   footageClient,
		Rules:     rules,
		Features:  features,
		Logger:    logger,
		StartTime: startTime,
		InstallID: installID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quit := newQuitSignal()

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit.Quit()
		case <-quit.Done():
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Counter: service,
			Runner:  runner,
			Port:    cfg.Port(),
			Logger:  logger,
			OnQuit:  quit.Quit,
		})
		go tray.Run()
	}

	<-quit.Done()

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newGenerator(cfg config.Config, logger *slog.Logger) scriptgen.Generator {
	key := cfg.Keys().OpenAI
	if key == "" {
		logger.Warn("no OpenAI key configured, using placeholder scripts")
		return scriptgen.NewStubGenerator(logger)
	}
	return scriptgen.NewOpenAIGenerator(scriptgen.OpenAIConfig{
		APIKey:  key,
		Model:   cfg.OpenAIModel(),
		Timeout: cfg.LLMTimeout(),
	}, logger)
}

func newFootageClient(cfg config.Config, logger *slog.Logger) footage.Client {
	key := cfg.Keys().Footage
	if key == "" {
		logger.Warn("no footage key configured, b-roll falls back to the avatar video")
		return footage.NewStubClient(logger)
	}
	return footage.NewHTTPClient(cfg.FootageBaseURL(), key, logger)
}

// avatarService is the avatar API surface the app uses: renders, the
// catalog and custom avatar uploads.
type avatarService interface {
	avatar.Client
	avatar.Uploader
}

func newAvatarClient(cfg config.Config, logger *slog.Logger) avatarService {
	key := cfg.Keys().Avatar
	if key == "" {
		logger.Warn("no avatar key configured, renders use a placeholder video")
		return avatar.NewStubClient(logger)
	}
	return avatar.NewHTTPClient(cfg.AvatarBaseURL(), key, logger)
}

// newProfileSource returns nil when YouTube is not configured so that
// generation stays generic.
func newProfileSource(ctx context.Context, apiKey string, logger *slog.Logger) studio.ProfileSource {
	if apiKey == "" {
		return nil
	}
	yt, err := creator.NewYouTube(ctx, apiKey, "", logger)
	if err != nil {
		logger.Warn("youtube client unavailable, creator profiles disabled", "error", err)
		return nil
	}
	return yt
}

func newTrendSource(features config.Features, logger *slog.Logger) studio.TrendSource {
	if !features.EnableTrends {
		return nil
	}
	rd, err := creator.NewReddit("", "", logger)
	if err != nil {
		logger.Warn("reddit client unavailable, trends disabled", "error", err)
		return nil
	}
	return rd
}

func liveServices(keys config.Keys) string {
	var live []string
	for _, s := range []struct {
		name string
		key  string
	}{
		{"openai", keys.OpenAI},
		{"footage", keys.Footage},
		{"avatar", keys.Avatar},
		{"youtube", keys.YouTube},
	} {
		if s.key != "" {
			live = append(live, s.name)
		}
	}
	if len(live) == 0 {
		return "none (offline stubs)"
	}
	return fmt.Sprint(live)
}

func ensureInstallID(repo studio.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "install_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	id := uuid.NewString()
	if err := repo.SetConfig(ctx, "install_id", id); err != nil {
		return "", err
	}
	return id, nil
}

// quitSignal is closed by whichever of the signal handler or the tray asks
// first; later requests are no-ops.
type quitSignal struct {
	ch   chan struct{}
	once sync.Once
}

func newQuitSignal() *quitSignal {
	return &quitSignal{ch: make(chan struct{})}
}

func (q *quitSignal) Quit() {
	q.once.Do(func() { close(q.ch) })
}

func (q *quitSignal) Done() <-chan struct{} {
	return q.ch
}
