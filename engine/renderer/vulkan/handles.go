package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framestamp/engine/stamp"
)

// Vulkan handles are pointers on 64-bit targets, dispatchable or not. The
// stamp core keeps them as opaque uint64 values; these helpers convert at
// the boundary.

func ptr(h uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(h))
}

func addr(p unsafe.Pointer) uint64 {
	return uint64(uintptr(p))
}

func ImageHandle(i vk.Image) stamp.Image { return stamp.Image(addr(unsafe.Pointer(i))) }
func imageOf(h stamp.Image) vk.Image     { return vk.Image(ptr(uint64(h))) }

// ImageHandles converts a swapchain image array.
func ImageHandles(images []vk.Image) []stamp.Image {
	if images == nil {
		return nil
	}
	out := make([]stamp.Image, len(images))
	for i, img := range images {
		out[i] = ImageHandle(img)
	}
	return out
}

func QueueHandle(q vk.Queue) stamp.Queue { return stamp.Queue(addr(unsafe.Pointer(q))) }
func queueOf(h stamp.Queue) vk.Queue     { return vk.Queue(ptr(uint64(h))) }

func SemaphoreHandle(s vk.Semaphore) stamp.Semaphore { return stamp.Semaphore(addr(unsafe.Pointer(s))) }
func SemaphoreOf(h stamp.Semaphore) vk.Semaphore     { return vk.Semaphore(ptr(uint64(h))) }

// SemaphoreHandles converts a present wait list.
func SemaphoreHandles(list []vk.Semaphore) []stamp.Semaphore {
	out := make([]stamp.Semaphore, len(list))
	for i, s := range list {
		out[i] = SemaphoreHandle(s)
	}
	return out
}

func semaphoresOf(list []stamp.Semaphore) []vk.Semaphore {
	out := make([]vk.Semaphore, len(list))
	for i, s := range list {
		out[i] = SemaphoreOf(s)
	}
	return out
}

func imageViewHandle(v vk.ImageView) stamp.ImageView { return stamp.ImageView(addr(unsafe.Pointer(v))) }
func imageViewOf(h stamp.ImageView) vk.ImageView     { return vk.ImageView(ptr(uint64(h))) }

func descriptorSetHandle(s vk.DescriptorSet) stamp.DescriptorSet {
	return stamp.DescriptorSet(addr(unsafe.Pointer(s)))
}
func descriptorSetOf(h stamp.DescriptorSet) vk.DescriptorSet { return vk.DescriptorSet(ptr(uint64(h))) }

func descriptorPoolHandle(p vk.DescriptorPool) stamp.DescriptorPool {
	return stamp.DescriptorPool(addr(unsafe.Pointer(p)))
}
func descriptorPoolOf(h stamp.DescriptorPool) vk.DescriptorPool {
	return vk.DescriptorPool(ptr(uint64(h)))
}

func descriptorSetLayoutHandle(l vk.DescriptorSetLayout) stamp.DescriptorSetLayout {
	return stamp.DescriptorSetLayout(addr(unsafe.Pointer(l)))
}
func descriptorSetLayoutOf(h stamp.DescriptorSetLayout) vk.DescriptorSetLayout {
	return vk.DescriptorSetLayout(ptr(uint64(h)))
}

func commandPoolHandle(p vk.CommandPool) stamp.CommandPool {
	return stamp.CommandPool(addr(unsafe.Pointer(p)))
}
func commandPoolOf(h stamp.CommandPool) vk.CommandPool { return vk.CommandPool(ptr(uint64(h))) }

func commandBufferHandle(cb vk.CommandBuffer) stamp.CommandBuffer {
	return stamp.CommandBuffer(addr(unsafe.Pointer(cb)))
}
func commandBufferOf(h stamp.CommandBuffer) vk.CommandBuffer {
	return vk.CommandBuffer(ptr(uint64(h)))
}

func fenceHandle(f vk.Fence) stamp.Fence { return stamp.Fence(addr(unsafe.Pointer(f))) }
func fenceOf(h stamp.Fence) vk.Fence     { return vk.Fence(ptr(uint64(h))) }

func shaderModuleHandle(m vk.ShaderModule) stamp.ShaderModule {
	return stamp.ShaderModule(addr(unsafe.Pointer(m)))
}
func shaderModuleOf(h stamp.ShaderModule) vk.ShaderModule { return vk.ShaderModule(ptr(uint64(h))) }

func pipelineLayoutHandle(l vk.PipelineLayout) stamp.PipelineLayout {
	return stamp.PipelineLayout(addr(unsafe.Pointer(l)))
}
func pipelineLayoutOf(h stamp.PipelineLayout) vk.PipelineLayout {
	return vk.PipelineLayout(ptr(uint64(h)))
}

func pipelineHandle(p vk.Pipeline) stamp.Pipeline { return stamp.Pipeline(addr(unsafe.Pointer(p))) }
func pipelineOf(h stamp.Pipeline) vk.Pipeline     { return vk.Pipeline(ptr(uint64(h))) }
