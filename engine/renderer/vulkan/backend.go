package vulkan

import (
	"fmt"
	"math"
	"runtime"
	"time"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framestamp/engine/core"
	"github.com/spaghettifunk/framestamp/engine/platform"
)

// Interceptor receives the calls a loader would route through an implicit
// layer sitting between the application and the driver.
type Interceptor interface {
	DeviceCreated(device vk.Device) uint32
	DeviceDestroyed(device vk.Device)
	SwapchainImagesQueried(device vk.Device, swapchain vk.Swapchain, count uint32, images []vk.Image) vk.Result
	QueueObtained(device vk.Device, queue vk.Queue, familyIndex, queueIndex uint32)
	QueueFamiliesQueried(device vk.Device, families []vk.QueueFamilyProperties)
	PresentRequested(queue vk.Queue, info vk.PresentInfo) (vk.PresentInfo, vk.Result)
}

// VulkanRenderer is a minimal presenting application: it clears every
// swapchain image to an animated colour and presents it through an
// Interceptor.
type VulkanRenderer struct {
	platform    *platform.Platform
	hooks       Interceptor
	FrameNumber uint64
	context     *VulkanContext

	preferredFormat         vk.Format
	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	debug bool
}

func New(p *platform.Platform, hooks Interceptor, locks *VulkanLockPool, debug bool) *VulkanRenderer {
	if locks == nil {
		locks = NewVulkanLockPool()
	}
	return &VulkanRenderer{
		platform: p,
		hooks:    hooks,
		context: &VulkanContext{
			Device: &VulkanDevice{GraphicsQueueIndex: -1, PresentQueueIndex: -1},
			Locks:  locks,
		},
		debug: debug,
	}
}

// Initialize creates the instance, surface, device, swapchain and per-frame
// sync objects. preferredFormat is used for the swapchain when the surface
// supports it.
func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32, preferredFormat vk.Format) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return fmt.Errorf("failed to initialize vk: %w", err)
	}

	vr.preferredFormat = preferredFormat
	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	if err := vr.createInstance(appName); err != nil {
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	if vr.debug {
		if err := vr.createDebugCallback(); err != nil {
			// Validation output is optional.
			core.LogWarn("Vulkan debugger unavailable: %s", err)
		}
	}

	surface, err := vr.platform.Window.CreateWindowSurface(vr.context.Instance, nil)
	if err != nil {
		return fmt.Errorf("vulkan surface creation failed: %w", err)
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := DeviceCreate(vr.context, vr.hooks); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	sc, err := SwapchainCreate(vr.context, vr.hooks, vr.context.FramebufferWidth, vr.context.FramebufferHeight, preferredFormat)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc
	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height
	if sc.ImageFormat.Format != vr.preferredFormat {
		core.LogWarn("surface does not offer format %d, swapchain uses %d; stamp views may not match", vr.preferredFormat, sc.ImageFormat.Format)
	}

	rp, err := RenderpassCreate(vr.context, 0, 0, float32(sc.Extent.Width), float32(sc.Extent.Height), 0, 0, 0, 1)
	if err != nil {
		return err
	}
	vr.context.MainRenderpass = rp
	core.LogDebug("Vulkan renderpass created.")

	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}
	if err := vr.createSyncObjects(); err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("framestamp"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := vr.platform.GetRequiredExtensionNames()
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if vr.debug {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if hasInstanceLayer("VK_LAYER_KHRONOS_validation") {
			layers = append(layers, "VK_LAYER_KHRONOS_validation")
			core.LogInfo("Validation layers enabled.")
		} else {
			core.LogWarn("VK_LAYER_KHRONOS_validation is not installed, continuing without validation.")
		}
	}
	for _, ext := range extensions {
		core.LogDebug("Required extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		return fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
	}
	return vk.InitInstance(vr.context.Instance)
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, layers) != vk.Success {
		return false
	}
	for _, layer := range layers {
		layer.Deref()
		if vk.ToString(layer.LayerName[:]) == name {
			return true
		}
	}
	return false
}

func (vr *VulkanRenderer) createDebugCallback() error {
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}
	var dbg vk.DebugReportCallback
	if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
		return err
	}
	vr.context.debugMessenger = dbg
	core.LogDebug("Vulkan debugger created.")
	return nil
}

func (vr *VulkanRenderer) createSyncObjects() error {
	frames := int(vr.context.Swapchain.MaxFramesInFlight)
	vr.context.ImageAvailableSemaphores = make([]vk.Semaphore, frames)
	vr.context.QueueCompleteSemaphores = make([]vk.Semaphore, frames)
	vr.context.InFlightFences = make([]*VulkanFence, frames)

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	device := vr.context.Device.LogicalDevice
	for i := 0; i < frames; i++ {
		if err := resultError("vkCreateSemaphore", vk.CreateSemaphore(device, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.ImageAvailableSemaphores[i])); err != nil {
			return err
		}
		if err := resultError("vkCreateSemaphore", vk.CreateSemaphore(device, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.QueueCompleteSemaphores[i])); err != nil {
			return err
		}
		// Signaled, so the first frame does not wait on a frame that was never submitted.
		f, err := NewFence(vr.context, true)
		if err != nil {
			return err
		}
		vr.context.InFlightFences[i] = f
	}

	vr.context.ImagesInFlight = make([]*VulkanFence, vr.context.Swapchain.ImageCount)
	return nil
}

func (vr *VulkanRenderer) Shutdown() error {
	if vr.context.Device.LogicalDevice == nil {
		return nil
	}
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	// Destroy in the opposite order of creation.
	for i := range vr.context.InFlightFences {
		vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.context.ImageAvailableSemaphores[i], vr.context.Allocator)
		vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.context.QueueCompleteSemaphores[i], vr.context.Allocator)
		vr.context.InFlightFences[i].FenceDestroy(vr.context)
	}
	vr.context.ImageAvailableSemaphores = nil
	vr.context.QueueCompleteSemaphores = nil
	vr.context.InFlightFences = nil
	vr.context.ImagesInFlight = nil

	vr.freeCommandBuffers()

	if vr.context.Swapchain != nil {
		vr.context.Swapchain.SwapchainDestroy(vr.context)
	}
	if vr.context.MainRenderpass != nil {
		vr.context.MainRenderpass.RenderpassDestroy(vr.context)
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vr.context, vr.hooks)

	core.LogDebug("Destroying Vulkan surface...")
	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}
	if vr.context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	return nil
}

// Resized records a new framebuffer size. The swapchain is rebuilt on the
// next frame.
func (vr *VulkanRenderer) Resized(width, height uint32) {
	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height
	vr.context.FramebufferSizeGeneration++
	core.LogInfo("Vulkan renderer resized: w/h/gen: %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
}

// DrawFrame renders and presents one frame. It returns without presenting
// while the swapchain is being rebuilt.
func (vr *VulkanRenderer) DrawFrame(deltaTime float64) error {
	ok, err := vr.BeginFrame(deltaTime)
	if err != nil || !ok {
		return err
	}
	return vr.EndFrame(deltaTime)
}

func (vr *VulkanRenderer) BeginFrame(deltaTime float64) (bool, error) {
	if vr.context.RecreatingSwapchain {
		return false, nil
	}

	if vr.context.FramebufferSizeGeneration != vr.context.FramebufferSizeLastGeneration {
		if err := vr.recreateSwapchain(); err != nil {
			return false, err
		}
		core.LogInfo("Resized, booting.")
		return false, nil
	}

	// The fence being free means the frame that last used this slot is done.
	if err := vr.context.InFlightFences[vr.context.CurrentFrame].FenceWait(vr.context, 0); err != nil {
		return false, fmt.Errorf("in-flight fence wait failure: %w", err)
	}

	imageIndex, ok, err := vr.context.Swapchain.SwapchainAcquireNextImageIndex(vr.context, math.MaxUint64, vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame])
	if err != nil {
		return false, err
	}
	if !ok {
		vr.context.FramebufferSizeGeneration++
		return false, nil
	}
	vr.context.ImageIndex = imageIndex

	// The command buffer belongs to the image; an older frame may still be using it.
	if f := vr.context.ImagesInFlight[imageIndex]; f != nil {
		if err := f.FenceWait(vr.context, 0); err != nil {
			return false, err
		}
	}

	cb := vr.context.GraphicsCommandBuffers[imageIndex]
	cb.Reset()
	if err := cb.Begin(true); err != nil {
		return false, err
	}

	rp := vr.context.MainRenderpass
	rp.W = float32(vr.context.FramebufferWidth)
	rp.H = float32(vr.context.FramebufferHeight)
	color := vr.clearColor()
	rp.R, rp.G, rp.B, rp.A = color[0], color[1], color[2], color[3]
	rp.RenderpassBegin(cb, vr.context.Swapchain.Framebuffers[imageIndex].Handle)
	rp.RenderpassEnd(cb)

	return true, nil
}

func (vr *VulkanRenderer) EndFrame(deltaTime float64) error {
	cb := vr.context.GraphicsCommandBuffers[vr.context.ImageIndex]
	if err := cb.End(); err != nil {
		return err
	}

	fence := vr.context.InFlightFences[vr.context.CurrentFrame]
	vr.context.ImagesInFlight[vr.context.ImageIndex] = fence
	if err := fence.FenceReset(vr.context); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame]},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vr.context.QueueCompleteSemaphores[vr.context.CurrentFrame]},
	}
	queue := vr.context.Device.GraphicsQueue
	if err := vr.context.Locks.SafeQueueCall(queue, func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle))
	}); err != nil {
		return err
	}
	cb.UpdateSubmitted()

	ok, err := vr.context.Swapchain.SwapchainPresent(
		vr.context,
		vr.hooks,
		vr.context.Device.PresentQueue,
		vr.context.QueueCompleteSemaphores[vr.context.CurrentFrame],
		vr.context.ImageIndex)
	if err != nil {
		return err
	}
	if !ok {
		vr.context.FramebufferSizeGeneration++
	}
	vr.FrameNumber++
	return nil
}

// clearColor cycles slowly so a capture shows the application's own content
// changing under the stamp bar.
func (vr *VulkanRenderer) clearColor() []float32 {
	t := float64(time.Now().UnixMilli()%4000) / 4000 * 2 * math.Pi
	return []float32{
		float32(0.25 + 0.25*math.Sin(t)),
		float32(0.25 + 0.25*math.Sin(t+2*math.Pi/3)),
		float32(0.25 + 0.25*math.Sin(t+4*math.Pi/3)),
		1.0,
	}
}

func (vr *VulkanRenderer) createCommandBuffers() error {
	vr.context.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, vr.context.Swapchain.ImageCount)
	for i := range vr.context.GraphicsCommandBuffers {
		cb, err := NewVulkanCommandBuffer(vr.context, vr.context.Device.GraphicsCommandPool)
		if err != nil {
			return err
		}
		vr.context.GraphicsCommandBuffers[i] = cb
	}
	core.LogDebug("Vulkan command buffers created.")
	return nil
}

func (vr *VulkanRenderer) freeCommandBuffers() {
	for _, cb := range vr.context.GraphicsCommandBuffers {
		if cb != nil {
			cb.Free(vr.context, vr.context.Device.GraphicsCommandPool)
		}
	}
	vr.context.GraphicsCommandBuffers = nil
}

func (vr *VulkanRenderer) recreateSwapchain() error {
	if vr.context.RecreatingSwapchain {
		core.LogDebug("recreateSwapchain called when already recreating. Booting.")
		return nil
	}

	width, height := vr.cachedFramebufferWidth, vr.cachedFramebufferHeight
	if width == 0 && height == 0 {
		width, height = vr.context.FramebufferWidth, vr.context.FramebufferHeight
	}
	// Minimised; try again on the next resize.
	if width == 0 || height == 0 {
		return nil
	}

	vr.context.RecreatingSwapchain = true
	defer func() { vr.context.RecreatingSwapchain = false }()

	if err := resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)); err != nil {
		return err
	}
	for i := range vr.context.ImagesInFlight {
		vr.context.ImagesInFlight[i] = nil
	}

	if err := DeviceQuerySwapchainSupport(vr.context.Device.PhysicalDevice, vr.context.Surface, &vr.context.Device.SwapchainSupport); err != nil {
		return err
	}

	sc, err := vr.context.Swapchain.SwapchainRecreate(vr.context, vr.hooks, width, height)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0
	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration

	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}
	vr.freeCommandBuffers()
	vr.context.ImagesInFlight = make([]*VulkanFence, sc.ImageCount)
	return vr.createCommandBuffers()
}

func (vr *VulkanRenderer) regenerateFramebuffers() error {
	sc := vr.context.Swapchain
	sc.Framebuffers = make([]*VulkanFramebuffer, sc.ImageCount)
	for i, view := range sc.Views {
		fb, err := FramebufferCreate(vr.context, vr.context.MainRenderpass, sc.Extent.Width, sc.Extent.Height, []vk.ImageView{view})
		if err != nil {
			return err
		}
		sc.Framebuffers[i] = fb
	}
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
