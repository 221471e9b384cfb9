package engine

import (
	"github.com/spaghettifunk/framestamp/engine/layer"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	// Layer is set by the engine before FnInitialize runs.
	Layer        *layer.Layer
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
