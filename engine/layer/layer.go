package layer

import (
	"errors"
	"sync"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framestamp/engine/assets"
	"github.com/spaghettifunk/framestamp/engine/config"
	"github.com/spaghettifunk/framestamp/engine/core"
	"github.com/spaghettifunk/framestamp/engine/renderer/vulkan"
	"github.com/spaghettifunk/framestamp/engine/stamp"
)

// Hooks are the entry points an interception mechanism forwards to the
// layer. Each one is called on the application's thread before the call
// continues down the chain.
type Hooks interface {
	// DeviceCreated registers a logical device and returns its context id.
	DeviceCreated(device vk.Device) uint32
	// DeviceDestroyed releases everything created for device. It must run
	// before the device itself is destroyed.
	DeviceDestroyed(device vk.Device)
	// SwapchainImagesQueried sees both the count query (images nil) and the
	// array query of vkGetSwapchainImagesKHR.
	SwapchainImagesQueried(device vk.Device, swapchain vk.Swapchain, count uint32, images []vk.Image) vk.Result
	QueueObtained(device vk.Device, queue vk.Queue, familyIndex, queueIndex uint32)
	// QueueFamiliesQueried reports the queue families of the device's
	// physical device. Presents on a family without compute support switch
	// stamping off for the device.
	QueueFamiliesQueried(device vk.Device, families []vk.QueueFamilyProperties)
	// PresentRequested returns the present info to forward. The caller's
	// info is never modified.
	PresentRequested(queue vk.Queue, info vk.PresentInfo) (vk.PresentInfo, vk.Result)
}

var _ Hooks = (*Layer)(nil)
var _ vulkan.Interceptor = (*Layer)(nil)

// DeviceFactory wraps a logical device for the stamp core.
type DeviceFactory func(device vk.Device) stamp.Device

type Option func(*Layer)

// WithDeviceFactory replaces the goki/vulkan backed stamp device.
func WithDeviceFactory(factory DeviceFactory) Option {
	return func(l *Layer) {
		l.newDevice = factory
	}
}

// WithShaderLoader replaces the program resolved from the configuration.
func WithShaderLoader(loader stamp.ShaderLoader) Option {
	return func(l *Layer) {
		l.shader = loader
	}
}

// WithLockPool shares queue locks with the application so submissions from
// both sides are serialised per queue.
func WithLockPool(locks *vulkan.VulkanLockPool) Option {
	return func(l *Layer) {
		l.locks = locks
	}
}

// Layer maps devices and queues to their stamp contexts.
type Layer struct {
	mutex   sync.RWMutex
	devices map[vk.Device]*stamp.DeviceContext
	queues  map[vk.Queue]*stamp.DeviceContext
	ids     *core.Identifiers

	cfg     atomic.Value // config.Config
	shaders *assets.ShaderManager

	newDevice DeviceFactory
	shader    stamp.ShaderLoader
	locks     *vulkan.VulkanLockPool
}

func New(cfg config.Config, opts ...Option) *Layer {
	l := &Layer{
		devices: make(map[vk.Device]*stamp.DeviceContext),
		queues:  make(map[vk.Queue]*stamp.DeviceContext),
		ids:     core.NewIdentifiers(),
		shaders: assets.NewShaderManager(),
	}
	l.cfg.Store(cfg)
	for _, opt := range opts {
		opt(l)
	}
	if l.locks == nil {
		l.locks = vulkan.NewVulkanLockPool()
	}
	if l.newDevice == nil {
		l.newDevice = l.vulkanDevice
	}
	return l
}

func (l *Layer) config() config.Config {
	return l.cfg.Load().(config.Config)
}

func (l *Layer) vulkanDevice(device vk.Device) stamp.Device {
	format, ok := vulkan.ParseFormat(l.config().ImageFormat)
	if !ok {
		format = vk.FormatB8g8r8a8Unorm
	}
	return vulkan.NewStampDevice(device, format, l.locks)
}

func (l *Layer) shaderLoader() stamp.ShaderLoader {
	if l.shader != nil {
		return l.shader
	}
	return l.shaders.Source(l.config().ShaderPath)
}

func (l *Layer) DeviceCreated(device vk.Device) uint32 {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if dc, ok := l.devices[device]; ok {
		core.LogWarn("device registered twice, keeping context %d", dc.ID)
		return dc.ID
	}

	id := l.ids.AquireNewID(device)
	dc := stamp.NewDeviceContext(id, l.newDevice(device), l.shaderLoader(), l.config().Options())
	l.devices[device] = dc
	return id
}

func (l *Layer) DeviceDestroyed(device vk.Device) {
	l.mutex.Lock()
	dc, ok := l.devices[device]
	if ok {
		delete(l.devices, device)
		for q, owner := range l.queues {
			if owner == dc {
				delete(l.queues, q)
			}
		}
	}
	l.mutex.Unlock()

	if !ok {
		core.LogWarn("destroying device without context: %s", core.ErrUnknownDevice)
		return
	}
	dc.Destroy()
	if err := l.ids.ReleaseID(dc.ID); err != nil {
		core.LogWarn("release context id %d: %s", dc.ID, err)
	}
}

func (l *Layer) QueueObtained(device vk.Device, queue vk.Queue, familyIndex, queueIndex uint32) {
	l.mutex.Lock()
	dc, ok := l.devices[device]
	if ok {
		l.queues[queue] = dc
	}
	l.mutex.Unlock()

	if !ok {
		core.LogWarn("queue %d/%d obtained: %s", familyIndex, queueIndex, core.ErrUnknownDevice)
		return
	}
	dc.QueueObtained(vulkan.QueueHandle(queue), familyIndex, queueIndex)
}

func (l *Layer) QueueFamiliesQueried(device vk.Device, families []vk.QueueFamilyProperties) {
	dc := l.deviceContext(device)
	if dc == nil {
		core.LogWarn("queue families queried: %s", core.ErrUnknownDevice)
		return
	}
	dc.QueueFamiliesReported(vulkan.ComputeFamilies(families))
}

// SwapchainImagesQueried never reports its own failures to the
// application; a failed refresh only switches stamping off for the device.
func (l *Layer) SwapchainImagesQueried(device vk.Device, swapchain vk.Swapchain, count uint32, images []vk.Image) vk.Result {
	dc := l.deviceContext(device)
	if dc == nil {
		core.LogWarn("swapchain images queried: %s", core.ErrUnknownDevice)
		return vk.Success
	}
	if uint32(len(images)) > count {
		images = images[:count]
	}
	if err := dc.SwapchainImagesQueried(count, vulkan.ImageHandles(images)); err != nil {
		core.LogWarn("device context %d: swapchain images: %s", dc.ID, err)
	}
	return vk.Success
}

// PresentRequested stamps the first presented image and makes the present
// wait on the stamp work instead of the application's semaphores. Only a
// failed submission is reported back; every other failure presents
// unchanged.
func (l *Layer) PresentRequested(queue vk.Queue, info vk.PresentInfo) (vk.PresentInfo, vk.Result) {
	if !l.config().Enabled {
		return info, vk.Success
	}

	dc := l.queueContext(queue)
	if dc == nil {
		core.LogDebug("present on unregistered queue: %s", core.ErrUnknownDevice)
		return info, vk.Success
	}

	req := stamp.PresentRequest{
		ImageIndices:   firstN(info.PImageIndices, info.SwapchainCount),
		WaitSemaphores: vulkan.SemaphoreHandles(firstN(info.PWaitSemaphores, info.WaitSemaphoreCount)),
	}
	res, err := dc.Present(vulkan.QueueHandle(queue), req)
	if err != nil {
		var submitErr *stamp.SubmitError
		if errors.As(err, &submitErr) {
			core.LogError("device context %d: %s", dc.ID, err)
			return info, vulkan.ResultOf(err)
		}
		if !errors.Is(err, core.ErrContextDisabled) && !errors.Is(err, core.ErrSlotDisabled) {
			core.LogWarn("device context %d: present passes through: %s", dc.ID, err)
		}
		return info, vk.Success
	}
	if !res.Injected {
		return info, vk.Success
	}

	out := info
	out.PWaitSemaphores = make([]vk.Semaphore, len(res.WaitSemaphores))
	for i, s := range res.WaitSemaphores {
		out.PWaitSemaphores[i] = vulkan.SemaphoreOf(s)
	}
	out.WaitSemaphoreCount = uint32(len(out.PWaitSemaphores))
	return out, vk.Success
}

// Reconfigure applies a reloaded configuration: the log level immediately,
// stamping options from the next present on. The view format and shader of
// existing devices stay as they were created. A changed shader path drops
// the cached programs of both paths so the next device reads the file again.
func (l *Layer) Reconfigure(cfg config.Config) {
	if err := core.SetLogLevel(cfg.LogLevel); err != nil {
		core.LogWarn("log level %q: %s", cfg.LogLevel, err)
	}
	old := l.cfg.Swap(cfg).(config.Config)
	if old.ShaderPath != cfg.ShaderPath {
		l.shaders.Forget(old.ShaderPath)
		l.shaders.Forget(cfg.ShaderPath)
		core.LogInfo("stamp shader path changed from %q to %q", old.ShaderPath, cfg.ShaderPath)
	}

	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for _, dc := range l.devices {
		dc.Reconfigure(cfg.Options())
	}
	core.LogInfo("configuration applied to %d device contexts (enabled=%t)", len(l.devices), cfg.Enabled)
}

// Stats returns a snapshot for every registered device, keyed by context id.
func (l *Layer) Stats() map[uint32]stamp.Stats {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	stats := make(map[uint32]stamp.Stats, len(l.devices))
	for _, dc := range l.devices {
		stats[dc.ID] = dc.Stats()
	}
	return stats
}

// Context returns the stamp context registered for device.
func (l *Layer) Context(device vk.Device) (*stamp.DeviceContext, error) {
	dc := l.deviceContext(device)
	if dc == nil {
		return nil, core.ErrUnknownDevice
	}
	return dc, nil
}

func (l *Layer) deviceContext(device vk.Device) *stamp.DeviceContext {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.devices[device]
}

func (l *Layer) queueContext(queue vk.Queue) *stamp.DeviceContext {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.queues[queue]
}

func firstN[T any](list []T, n uint32) []T {
	if uint32(len(list)) > n {
		return list[:n]
	}
	return list
}
