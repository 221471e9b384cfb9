package renderer

import (
	vk "github.com/goki/vulkan"
)

// RendererBackend presents frames through the layer hooks.
type RendererBackend interface {
	Initialize(appName string, appWidth, appHeight uint32, preferredFormat vk.Format) error
	Shutdown() error
	Resized(width, height uint32)
	DrawFrame(deltaTime float64) error
}
