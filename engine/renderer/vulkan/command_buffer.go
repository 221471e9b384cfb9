package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framestamp/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

func createCommandPool(device vk.Device, allocator *vk.AllocationCallbacks, family uint32) (vk.CommandPool, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := resultError("vkCreateCommandPool", vk.CreateCommandPool(device, &poolCreateInfo, allocator, &pool)); err != nil {
		return nil, err
	}
	return pool, nil
}

func allocateCommandBuffer(device vk.Device, pool vk.CommandPool) (vk.CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if err := resultError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(device, &allocateInfo, buffers)); err != nil {
		return nil, err
	}
	return buffers[0], nil
}

func beginCommandBuffer(cb vk.CommandBuffer, flags vk.CommandBufferUsageFlagBits) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(flags),
	}
	return resultError("vkBeginCommandBuffer", vk.BeginCommandBuffer(cb, &beginInfo))
}

func endCommandBuffer(cb vk.CommandBuffer) error {
	return resultError("vkEndCommandBuffer", vk.EndCommandBuffer(cb))
}

// VulkanCommandBuffer is a primary command buffer with its recording state.
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	handle, err := allocateCommandBuffer(context.Device.LogicalDevice, pool)
	if err != nil {
		core.LogError("failed to allocate command buffer: %s", err)
		return nil, err
	}
	return &VulkanCommandBuffer{Handle: handle, State: COMMAND_BUFFER_STATE_READY}, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.Handle == nil {
		return
	}
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse bool) error {
	var flags vk.CommandBufferUsageFlagBits
	if isSingleUse {
		flags |= vk.CommandBufferUsageOneTimeSubmitBit
	}
	if err := beginCommandBuffer(v.Handle, flags); err != nil {
		core.LogError("failed to begin command buffer: %s", err)
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := endCommandBuffer(v.Handle); err != nil {
		core.LogError("failed to end command buffer: %s", err)
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = COMMAND_BUFFER_STATE_READY
}
