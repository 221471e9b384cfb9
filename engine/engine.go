package engine

import (
	"errors"
	"sync/atomic"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framestamp/engine/config"
	"github.com/spaghettifunk/framestamp/engine/core"
	"github.com/spaghettifunk/framestamp/engine/layer"
	"github.com/spaghettifunk/framestamp/engine/platform"
	"github.com/spaghettifunk/framestamp/engine/renderer"
	"github.com/spaghettifunk/framestamp/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Engine hosts a presenting application with the stamp layer between it and
// the driver.
type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    atomic.Bool
	isSuspended  bool
	platform     *platform.Platform
	renderer     *renderer.Renderer
	layer        *layer.Layer
	watcher      *config.Watcher
	cfg          config.Config
	width        uint32
	height       uint32
	clock        *core.Clock
	lastTime     time.Duration
}

func New(g *Game) (*Engine, error) {
	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	path := g.ApplicationConfig.ConfigPath
	if path == "" {
		path = config.Path()
	}
	cfg := config.Default()
	watcher, err := config.NewWatcher(path)
	if err != nil {
		core.LogError("configuration %s unusable, running with defaults: %s", path, err)
	} else {
		cfg = watcher.Current()
	}
	if err := core.SetLogLevel(cfg.LogLevel); err != nil {
		core.LogWarn("log level %q: %s", cfg.LogLevel, err)
	}

	// One lock pool, so the application and the layer never submit to the
	// same queue at once.
	locks := vulkan.NewVulkanLockPool()
	l := layer.New(cfg, layer.WithLockPool(locks))
	if watcher != nil {
		watcher.Subscribe(l.Reconfigure)
	}
	g.Layer = l

	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		platform:     p,
		renderer:     renderer.New(p, l, locks, g.ApplicationConfig.Debug),
		layer:        l,
		watcher:      watcher,
		cfg:          cfg,
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
	}
	e.isRunning.Store(true)
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	app := e.gameInstance.ApplicationConfig
	if err := e.platform.Startup(app.Name, app.StartPosX, app.StartPosY, app.StartWidth, app.StartHeight); err != nil {
		return err
	}
	e.platform.OnResize = e.onResized

	format, ok := vulkan.ParseFormat(e.cfg.ImageFormat)
	if !ok {
		format = vk.FormatB8g8r8a8Unorm
	}
	if err := e.renderer.Initialize(app.Name, app.StartWidth, app.StartHeight, format); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

// Run presents frames until the window closes or Stop is called, then shuts
// everything down on the calling thread.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var runErr error
	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			break
		}
		if e.isSuspended {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := (currentTime - e.lastTime).Seconds()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("Game update failed, shutting down.")
				runErr = err
				break
			}
		}
		if err := e.renderer.DrawFrame(delta); err != nil {
			core.LogError("Frame presentation failed, shutting down.")
			runErr = err
			break
		}

		e.lastTime = currentTime
	}

	return errors.Join(runErr, e.Shutdown())
}

// Stop asks Run to return after the current frame. It is safe to call from
// any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

// Shutdown releases the renderer, the watcher and the window. It must run on
// the thread that called Initialize; Run calls it before returning.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	// Destroys the device, which tears down the layer's context for it.
	errs = append(errs, e.renderer.Shutdown())
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
	}
	errs = append(errs, e.platform.Shutdown())
	return errors.Join(errs...)
}

// Layer returns the interception layer the renderer presents through.
func (e *Engine) Layer() *layer.Layer {
	return e.layer
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onResized(width, height uint32) {
	// Check if different. If so, trigger a resize event.
	if width == e.width && height == e.height {
		return
	}
	e.width = width
	e.height = height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	e.renderer.OnResize(width, height)
}
