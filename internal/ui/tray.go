// Package ui runs the system tray menu of the desktop app.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/supernova/supernova/internal/studio"
)

const refreshInterval = 5 * time.Second

// RenderCounter reports how many renders are in each status.
type RenderCounter interface {
	RenderCounts(ctx context.Context) (map[string]int, error)
}

// Runner is the part of the render runner the tray controls.
type Runner interface {
	Pause()
	Resume()
	IsPaused() bool
	ActiveRenders() int
}

type Tray struct {
	counter RenderCounter
	runner  Runner
	logger  *slog.Logger
	port    int

	statusItem  *systray.MenuItem
	rendersItem *systray.MenuItem
	pauseItem   *systray.MenuItem

	mu sync.Mutex

	onQuit func()
	stop   chan struct{}
}

type TrayConfig struct {
	Counter RenderCounter
	Runner  Runner
	Port    int
	Logger  *slog.Logger
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		counter: cfg.Counter,
		runner:  cfg.Runner,
		port:    cfg.Port,
		logger:  cfg.Logger,
		onQuit:  cfg.OnQuit,
		stop:    make(chan struct{}),
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes())
	systray.SetTitle("Supernova")
	systray.SetTooltip(fmt.Sprintf("Supernova studio on 127.0.0.1:%d", t.port))

	t.statusItem = systray.AddMenuItem("Status: Idle", "Render queue status")
	t.statusItem.Disable()

	t.rendersItem = systray.AddMenuItem(RenderSummary(nil), "Renders by status")
	t.rendersItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause", "Pause rendering")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Supernova")

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				close(t.stop)
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	go t.refreshLoop()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	t.refresh()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *Tray) refresh() {
	if t.counter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	counts, err := t.counter.RenderCounts(ctx)
	if err != nil {
		t.logger.Warn("failed to count renders", "error", err)
		return
	}

	status := "Idle"
	if t.runner != nil && t.runner.ActiveRenders() > 0 {
		status = "Rendering"
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.rendersItem.SetTitle(RenderSummary(counts))
	if t.runner == nil || !t.runner.IsPaused() {
		t.statusItem.SetTitle("Status: " + status)
	}
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause")
		t.statusItem.SetTitle("Status: Idle")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume")
		t.statusItem.SetTitle("Status: Paused")
	}
}

// RenderSummary formats render counts for the tray menu.
func RenderSummary(counts map[string]int) string {
	return fmt.Sprintf("Renders: %d queued, %d running, %d done, %d failed",
		counts[studio.RenderStatusPending],
		counts[studio.RenderStatusRunning],
		counts[studio.RenderStatusCompleted],
		counts[studio.RenderStatusFailed],
	)
}

func (t *Tray) Quit() {
	systray.Quit()
}
