package cubeview

import (
	"log/slog"
	"sync"
	"time"

	Cs "github.com/maroda/cubeview/server"
)

type RefreshSupervisor struct {
	View     *View
	Interval time.Duration
	Ticker   *time.Ticker
	StopChan chan struct{}
	WG       sync.WaitGroup
	mu       sync.Mutex
}

// NewRefreshSupervisor is a wrapper around the View that manages the refresh goroutine.
// Each tick redraws the screen (when there is one) and pushes a frame to websocket clients.
func (v *View) NewRefreshSupervisor(interval time.Duration) *RefreshSupervisor {
	if interval <= 0 {
		interval = time.Second
	}
	rs := &RefreshSupervisor{
		View:     v,
		Interval: interval,
	}
	v.Supervisor = rs
	return rs
}

// ReloadConfig starts a fresh session over a new cube configuration.
// The new cube takes the View's CubeOptions; on error the current session is untouched.
func (v *View) ReloadConfig(cfg *Cs.Config) error {
	cube, err := Cs.NewCube(cfg, v.CubeOptions...)
	if err != nil {
		slog.Error("Could not reload cube", slog.Any("Error", err))
		return err
	}

	v.MU.Lock()
	v.Cube = cube
	v.Selected = 0
	v.ShowDetail = false
	v.detail = nil
	v.message = "Configuration reloaded"
	v.MU.Unlock()

	if v.Supervisor != nil && v.Supervisor.Running() {
		v.Supervisor.Restart()
	}
	v.Broadcast()
	slog.Info("Cube configuration reloaded",
		slog.String("levels", cube.CurrentLevelDescription()))
	return nil
}

// Refresh runs one tick
func (v *View) Refresh() {
	if v.Screen != nil {
		v.UpdateScreen()
	}
	v.Broadcast()
}

// Start the RefreshSupervisor
func (p *RefreshSupervisor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start()
}

func (p *RefreshSupervisor) start() {
	p.StopChan = make(chan struct{})
	p.Ticker = time.NewTicker(p.Interval)

	p.WG.Add(1)
	go func(ticker *time.Ticker, stop chan struct{}) {
		defer p.WG.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.View.Refresh()
			case <-stop:
				return
			}
		}
	}(p.Ticker, p.StopChan)
}

// Stop the RefreshSupervisor
func (p *RefreshSupervisor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop()
}

func (p *RefreshSupervisor) stop() {
	if p.StopChan != nil {
		close(p.StopChan)
		p.WG.Wait()
		p.StopChan = nil
	}
}

// Restart the RefreshSupervisor
func (p *RefreshSupervisor) Restart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stop()
	p.start()
}

// Running reports whether the refresh goroutine is live
func (p *RefreshSupervisor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.StopChan != nil
}
