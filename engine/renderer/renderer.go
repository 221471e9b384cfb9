package renderer

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framestamp/engine/core"
	"github.com/spaghettifunk/framestamp/engine/platform"
	"github.com/spaghettifunk/framestamp/engine/renderer/vulkan"
)

var _ RendererBackend = (*vulkan.VulkanRenderer)(nil)

// Renderer drives a backend once per frame and counts what it presented.
type Renderer struct {
	backend     RendererBackend
	FrameNumber uint64
}

// New returns a Vulkan renderer whose device, swapchain and present calls
// are routed through hooks. locks is shared with the layer.
func New(p *platform.Platform, hooks vulkan.Interceptor, locks *vulkan.VulkanLockPool, debug bool) *Renderer {
	return &Renderer{
		backend: vulkan.New(p, hooks, locks, debug),
	}
}

// NewWithBackend is used when the backend is provided by the caller.
func NewWithBackend(backend RendererBackend) *Renderer {
	return &Renderer{backend: backend}
}

func (r *Renderer) Initialize(appName string, appWidth, appHeight uint32, preferredFormat vk.Format) error {
	return r.backend.Initialize(appName, appWidth, appHeight, preferredFormat)
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}

func (r *Renderer) OnResize(width, height uint32) {
	r.backend.Resized(width, height)
}

func (r *Renderer) DrawFrame(deltaTime float64) error {
	if err := r.backend.DrawFrame(deltaTime); err != nil {
		core.LogError("DrawFrame failed: %s", err)
		return err
	}
	r.FrameNumber++
	return nil
}
