package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framestamp/engine/core"
	fsmath "github.com/spaghettifunk/framestamp/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat       vk.SurfaceFormat
	Extent            vk.Extent2D
	MaxFramesInFlight uint8
	Handle            vk.Swapchain
	ImageCount        uint32
	Images            []vk.Image
	Views             []vk.ImageView

	// One per image, rebuilt with the swapchain.
	Framebuffers []*VulkanFramebuffer
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

func SwapchainCreate(context *VulkanContext, hooks Interceptor, width, height uint32, preferred vk.Format) (*VulkanSwapchain, error) {
	return createSwapchain(context, hooks, width, height, preferred, nil)
}

// SwapchainRecreate builds a replacement swapchain and then destroys the old one.
func (vs *VulkanSwapchain) SwapchainRecreate(context *VulkanContext, hooks Interceptor, width, height uint32) (*VulkanSwapchain, error) {
	sc, err := createSwapchain(context, hooks, width, height, vs.ImageFormat.Format, vs.Handle)
	vs.SwapchainDestroy(context)
	return sc, err
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) {
	if vs.Handle == nil {
		return
	}
	vk.DeviceWaitIdle(context.Device.LogicalDevice)
	for _, fb := range vs.Framebuffers {
		fb.Destroy(context)
	}
	vs.Framebuffers = nil
	for _, view := range vs.Views {
		vk.DestroyImageView(context.Device.LogicalDevice, view, context.Allocator)
	}
	vs.Views = nil
	// Images are owned by the swapchain.
	vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
	vs.Handle = nil
	vs.Images = nil
}

// SwapchainAcquireNextImageIndex returns false when the swapchain is out of
// date and must be recreated.
func (vs *VulkanSwapchain) SwapchainAcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore) (uint32, bool, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailableSemaphore, vk.NullFence, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, true, nil
	case vk.ErrorOutOfDate:
		return 0, false, nil
	default:
		return 0, false, resultError("vkAcquireNextImageKHR", result)
	}
}

// SwapchainPresent hands the image back to the swapchain. The present info
// goes through hooks first, exactly like a loader dispatching to a layer.
// It returns false when the swapchain needs to be recreated.
func (vs *VulkanSwapchain) SwapchainPresent(context *VulkanContext, hooks Interceptor, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) (bool, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	rewritten, status := hooks.PresentRequested(presentQueue, presentInfo)
	if status != vk.Success {
		// The layer already fell back to the original wait list.
		core.LogWarn("present interception returned %s", VulkanResultString(status, false))
	}

	var result vk.Result
	context.Locks.SafeQueueCall(presentQueue, func() error {
		result = vk.QueuePresent(presentQueue, &rewritten)
		return nil
	})

	// Increment (and loop) the index.
	context.CurrentFrame = (context.CurrentFrame + 1) % uint32(vs.MaxFramesInFlight)

	switch result {
	case vk.Success:
		return true, nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		return false, nil
	default:
		return false, resultError("vkQueuePresentKHR", result)
	}
}

func createSwapchain(context *VulkanContext, hooks Interceptor, width, height uint32, preferred vk.Format, old vk.Swapchain) (*VulkanSwapchain, error) {
	support := &context.Device.SwapchainSupport
	if len(support.Formats) == 0 {
		return nil, fmt.Errorf("surface reports no formats")
	}

	swapchain := &VulkanSwapchain{
		MaxFramesInFlight: 2,
		ImageFormat:       support.Formats[0],
	}
	for _, format := range support.Formats {
		if format.Format == preferred && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = format
			break
		}
	}

	presentMode := vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	capabilities := support.Capabilities
	extent := vk.Extent2D{Width: width, Height: height}
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		extent = capabilities.CurrentExtent
	}
	extent.Width = fsmath.Clamp(extent.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width)
	extent.Height = fsmath.Clamp(extent.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height)
	swapchain.Extent = extent

	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	// Storage for the stamp dispatch.
	usage := vk.ImageUsageColorAttachmentBit | vk.ImageUsageStorageBit

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(usage),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}
	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	}

	device := context.Device.LogicalDevice
	if err := resultError("vkCreateSwapchainKHR", vk.CreateSwapchain(device, &createInfo, context.Allocator, &swapchain.Handle)); err != nil {
		return nil, err
	}
	context.CurrentFrame = 0

	// Count first, then the array; each query goes through the layer.
	if err := resultError("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(device, swapchain.Handle, &swapchain.ImageCount, nil)); err != nil {
		return nil, err
	}
	hooks.SwapchainImagesQueried(device, swapchain.Handle, swapchain.ImageCount, nil)

	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	if err := resultError("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(device, swapchain.Handle, &swapchain.ImageCount, swapchain.Images)); err != nil {
		return nil, err
	}
	if status := hooks.SwapchainImagesQueried(device, swapchain.Handle, swapchain.ImageCount, swapchain.Images); status != vk.Success {
		core.LogWarn("swapchain image interception returned %s", VulkanResultString(status, false))
	}

	swapchain.Views = make([]vk.ImageView, swapchain.ImageCount)
	for i, image := range swapchain.Images {
		view, err := createImageView(device, context.Allocator, image, swapchain.ImageFormat.Format)
		if err != nil {
			return nil, err
		}
		swapchain.Views[i] = view
	}

	core.LogInfo("Swapchain created: %dx%d, %d images.", extent.Width, extent.Height, swapchain.ImageCount)
	return swapchain, nil
}
