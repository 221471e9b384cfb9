package vulkan

import (
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framestamp/engine/stamp"
)

// StampDevice runs the stamp core's GPU operations on a Vulkan logical device.
type StampDevice struct {
	Device     vk.Device
	Allocator  *vk.AllocationCallbacks
	ViewFormat vk.Format

	locks *VulkanLockPool
}

var _ stamp.Device = (*StampDevice)(nil)

// NewStampDevice wraps device. Views of swapchain images are created with
// viewFormat. locks is shared with anything else that submits to the same
// queues; nil gets a private pool.
func NewStampDevice(device vk.Device, viewFormat vk.Format, locks *VulkanLockPool) *StampDevice {
	if locks == nil {
		locks = NewVulkanLockPool()
	}
	return &StampDevice{
		Device:     device,
		ViewFormat: viewFormat,
		locks:      locks,
	}
}

func (sd *StampDevice) CreateShaderModule(code []uint32) (stamp.ShaderModule, error) {
	var module vk.ShaderModule
	err := sd.locks.SafeCall(ShaderManagement, func() (err error) {
		module, err = createShaderModule(sd.Device, sd.Allocator, code)
		return err
	})
	return shaderModuleHandle(module), err
}

func (sd *StampDevice) CreateDescriptorPool(maxSets uint32) (stamp.DescriptorPool, error) {
	var pool vk.DescriptorPool
	err := sd.locks.SafeCall(DescriptorManagement, func() (err error) {
		pool, err = createDescriptorPool(sd.Device, sd.Allocator, maxSets)
		return err
	})
	return descriptorPoolHandle(pool), err
}

func (sd *StampDevice) CreateDescriptorSetLayout() (stamp.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	err := sd.locks.SafeCall(DescriptorManagement, func() (err error) {
		layout, err = createStorageImageSetLayout(sd.Device, sd.Allocator)
		return err
	})
	return descriptorSetLayoutHandle(layout), err
}

func (sd *StampDevice) CreatePipelineLayout(setLayout stamp.DescriptorSetLayout, pushConstantSize uint32) (stamp.PipelineLayout, error) {
	var layout vk.PipelineLayout
	err := sd.locks.SafeCall(PipelineManagement, func() (err error) {
		layout, err = createPipelineLayout(sd.Device, sd.Allocator, descriptorSetLayoutOf(setLayout), pushConstantSize)
		return err
	})
	return pipelineLayoutHandle(layout), err
}

func (sd *StampDevice) CreateComputePipeline(layout stamp.PipelineLayout, module stamp.ShaderModule, entryPoint string) (stamp.Pipeline, error) {
	var pipeline vk.Pipeline
	err := sd.locks.SafeCall(PipelineManagement, func() (err error) {
		pipeline, err = createComputePipeline(sd.Device, sd.Allocator, pipelineLayoutOf(layout), shaderModuleOf(module), entryPoint)
		return err
	})
	return pipelineHandle(pipeline), err
}

func (sd *StampDevice) CreateImageView(image stamp.Image) (stamp.ImageView, error) {
	var view vk.ImageView
	err := sd.locks.SafeCall(ImageManagement, func() (err error) {
		view, err = createImageView(sd.Device, sd.Allocator, imageOf(image), sd.ViewFormat)
		return err
	})
	return imageViewHandle(view), err
}

func (sd *StampDevice) AllocateDescriptorSet(pool stamp.DescriptorPool, layout stamp.DescriptorSetLayout) (stamp.DescriptorSet, error) {
	var set vk.DescriptorSet
	err := sd.locks.SafeCall(DescriptorManagement, func() (err error) {
		set, err = allocateDescriptorSet(sd.Device, descriptorPoolOf(pool), descriptorSetLayoutOf(layout))
		return err
	})
	return descriptorSetHandle(set), err
}

func (sd *StampDevice) UpdateDescriptorSet(set stamp.DescriptorSet, view stamp.ImageView) {
	sd.locks.SafeCall(DescriptorManagement, func() error {
		writeStorageImage(sd.Device, descriptorSetOf(set), imageViewOf(view))
		return nil
	})
}

func (sd *StampDevice) CreateCommandPool(queueFamily uint32) (stamp.CommandPool, error) {
	var pool vk.CommandPool
	err := sd.locks.SafeCall(CommandPoolManagement, func() (err error) {
		pool, err = createCommandPool(sd.Device, sd.Allocator, queueFamily)
		return err
	})
	return commandPoolHandle(pool), err
}

func (sd *StampDevice) AllocateCommandBuffer(pool stamp.CommandPool) (stamp.CommandBuffer, error) {
	var cb vk.CommandBuffer
	err := sd.locks.SafeCall(CommandPoolManagement, func() (err error) {
		cb, err = allocateCommandBuffer(sd.Device, commandPoolOf(pool))
		return err
	})
	return commandBufferHandle(cb), err
}

func (sd *StampDevice) CreateSemaphore() (stamp.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	err := sd.locks.SafeCall(SynchronizationManagement, func() error {
		return resultError("vkCreateSemaphore", vk.CreateSemaphore(sd.Device, &createInfo, sd.Allocator, &semaphore))
	})
	return SemaphoreHandle(semaphore), err
}

func (sd *StampDevice) CreateFence(signaled bool) (stamp.Fence, error) {
	var fence vk.Fence
	err := sd.locks.SafeCall(SynchronizationManagement, func() (err error) {
		fence, err = createFence(sd.Device, sd.Allocator, signaled)
		return err
	})
	return fenceHandle(fence), err
}

// WaitForFence blocks without holding any lock pool mutex.
func (sd *StampDevice) WaitForFence(fence stamp.Fence, timeout time.Duration) error {
	return waitFence(sd.Device, fenceOf(fence), timeout)
}

func (sd *StampDevice) ResetFence(fence stamp.Fence) error {
	return resetFence(sd.Device, fenceOf(fence))
}

func (sd *StampDevice) QueueSubmit(queue stamp.Queue, submit stamp.Submission, fence stamp.Fence) error {
	waitStages := make([]vk.PipelineStageFlags, len(submit.WaitStages))
	for i, s := range submit.WaitStages {
		waitStages[i] = vk.PipelineStageFlags(pipelineStageBit(s))
	}
	buffers := make([]vk.CommandBuffer, len(submit.CommandBuffers))
	for i, cb := range submit.CommandBuffers {
		buffers[i] = commandBufferOf(cb)
	}

	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(submit.WaitSemaphores)),
		PWaitSemaphores:      semaphoresOf(submit.WaitSemaphores),
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   uint32(len(buffers)),
		PCommandBuffers:      buffers,
		SignalSemaphoreCount: uint32(len(submit.SignalSemaphores)),
		PSignalSemaphores:    semaphoresOf(submit.SignalSemaphores),
	}
	q := queueOf(queue)
	return sd.locks.SafeQueueCall(q, func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(q, 1, []vk.SubmitInfo{info}, fenceOf(fence)))
	})
}

func (sd *StampDevice) BeginCommandBuffer(cb stamp.CommandBuffer) error {
	return beginCommandBuffer(commandBufferOf(cb), vk.CommandBufferUsageOneTimeSubmitBit)
}

func (sd *StampDevice) CmdImageBarrier(cb stamp.CommandBuffer, image stamp.Image, from, to stamp.ImageLayout) {
	cmdLayoutBarrier(commandBufferOf(cb), imageOf(image), imageLayout(from), imageLayout(to))
}

func (sd *StampDevice) CmdBindComputePipeline(cb stamp.CommandBuffer, pipeline stamp.Pipeline) {
	vk.CmdBindPipeline(commandBufferOf(cb), vk.PipelineBindPointCompute, pipelineOf(pipeline))
}

func (sd *StampDevice) CmdBindDescriptorSet(cb stamp.CommandBuffer, layout stamp.PipelineLayout, set stamp.DescriptorSet) {
	vk.CmdBindDescriptorSets(commandBufferOf(cb), vk.PipelineBindPointCompute, pipelineLayoutOf(layout),
		0, 1, []vk.DescriptorSet{descriptorSetOf(set)}, 0, nil)
}

func (sd *StampDevice) CmdPushConstant(cb stamp.CommandBuffer, layout stamp.PipelineLayout, value uint32) {
	value = stampWord(value, sd.ViewFormat)
	vk.CmdPushConstants(commandBufferOf(cb), pipelineLayoutOf(layout),
		vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(unsafe.Sizeof(value)), unsafe.Pointer(&value))
}

func (sd *StampDevice) CmdDispatch(cb stamp.CommandBuffer, x, y, z uint32) {
	vk.CmdDispatch(commandBufferOf(cb), x, y, z)
}

func (sd *StampDevice) EndCommandBuffer(cb stamp.CommandBuffer) error {
	return endCommandBuffer(commandBufferOf(cb))
}

func (sd *StampDevice) DestroyFence(fence stamp.Fence) {
	vk.DestroyFence(sd.Device, fenceOf(fence), sd.Allocator)
}

func (sd *StampDevice) DestroySemaphore(semaphore stamp.Semaphore) {
	vk.DestroySemaphore(sd.Device, SemaphoreOf(semaphore), sd.Allocator)
}

func (sd *StampDevice) DestroyImageView(view stamp.ImageView) {
	vk.DestroyImageView(sd.Device, imageViewOf(view), sd.Allocator)
}

func (sd *StampDevice) DestroyDescriptorPool(pool stamp.DescriptorPool) {
	sd.locks.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorPool(sd.Device, descriptorPoolOf(pool), sd.Allocator)
		return nil
	})
}

func (sd *StampDevice) DestroyDescriptorSetLayout(layout stamp.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(sd.Device, descriptorSetLayoutOf(layout), sd.Allocator)
}

func (sd *StampDevice) FreeCommandBuffers(pool stamp.CommandPool, buffers []stamp.CommandBuffer) {
	handles := make([]vk.CommandBuffer, len(buffers))
	for i, cb := range buffers {
		handles[i] = commandBufferOf(cb)
	}
	sd.locks.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(sd.Device, commandPoolOf(pool), uint32(len(handles)), handles)
		return nil
	})
}

func (sd *StampDevice) DestroyCommandPool(pool stamp.CommandPool) {
	sd.locks.SafeCall(CommandPoolManagement, func() error {
		vk.DestroyCommandPool(sd.Device, commandPoolOf(pool), sd.Allocator)
		return nil
	})
}

func (sd *StampDevice) DestroyPipeline(pipeline stamp.Pipeline) {
	vk.DestroyPipeline(sd.Device, pipelineOf(pipeline), sd.Allocator)
}

func (sd *StampDevice) DestroyPipelineLayout(layout stamp.PipelineLayout) {
	vk.DestroyPipelineLayout(sd.Device, pipelineLayoutOf(layout), sd.Allocator)
}

func (sd *StampDevice) DestroyShaderModule(module stamp.ShaderModule) {
	vk.DestroyShaderModule(sd.Device, shaderModuleOf(module), sd.Allocator)
}

func imageLayout(l stamp.ImageLayout) vk.ImageLayout {
	if l == stamp.ImageLayoutGeneral {
		return vk.ImageLayoutGeneral
	}
	return vk.ImageLayoutPresentSrc
}

func pipelineStageBit(s stamp.PipelineStage) vk.PipelineStageFlagBits {
	switch s {
	case stamp.PipelineStageTopOfPipe:
		return vk.PipelineStageTopOfPipeBit
	case stamp.PipelineStageComputeShader:
		return vk.PipelineStageComputeShaderBit
	case stamp.PipelineStageAllCommands:
		return vk.PipelineStageAllCommandsBit
	default:
		return vk.PipelineStageBottomOfPipeBit
	}
}
