/*
framestamp testbed: opens a window, presents an animated clear colour and
routes every present through the frame-index stamp layer.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/framestamp/engine"
	"github.com/spaghettifunk/framestamp/engine/core"
	"github.com/spaghettifunk/framestamp/testbed"
)

func main() {
	configPath := flag.String("config", "", "layer configuration file (default $FRAMESTAMP_CONFIG or framestamp.toml)")
	debug := flag.Bool("debug", false, "enable the Vulkan validation layer when installed")
	flag.Parse()

	tb := testbed.NewTestGame(*configPath, *debug)

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("engine: %s", err)
	}

	if err := e.Initialize(); err != nil {
		core.LogError("initialize: %s", err)
		_ = e.Shutdown()
		os.Exit(1)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		e.Stop()
	}()

	if err := e.Run(); err != nil {
		core.LogFatal("run: %s", err)
	}
}
