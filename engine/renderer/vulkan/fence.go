package vulkan

import (
	"math"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framestamp/engine/core"
)

func createFence(device vk.Device, allocator *vk.AllocationCallbacks, signaled bool) (vk.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := resultError("vkCreateFence", vk.CreateFence(device, &fenceCreateInfo, allocator, &fence)); err != nil {
		return vk.NullFence, err
	}
	return fence, nil
}

// timeoutNanos converts a wait timeout. Zero waits forever.
func timeoutNanos(timeout time.Duration) uint64 {
	if timeout <= 0 {
		return math.MaxUint64
	}
	return uint64(timeout.Nanoseconds())
}

// waitFence blocks until fence is signaled. A timed out wait returns an error
// matching core.ErrFenceTimeout.
func waitFence(device vk.Device, fence vk.Fence, timeout time.Duration) error {
	result := vk.WaitForFences(device, 1, []vk.Fence{fence}, vk.True, timeoutNanos(timeout))
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("vkWaitForFences timed out after %s", timeout)
	case vk.ErrorDeviceLost:
		core.LogError("vkWaitForFences: VK_ERROR_DEVICE_LOST")
	}
	return resultError("vkWaitForFences", result)
}

func resetFence(device vk.Device, fence vk.Fence) error {
	return resultError("vkResetFences", vk.ResetFences(device, 1, []vk.Fence{fence}))
}

// VulkanFence is a fence that remembers whether it was last seen signaled,
// so waiting on it twice costs nothing.
type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	handle, err := createFence(context.Device.LogicalDevice, context.Allocator, createSignaled)
	if err != nil {
		core.LogError("failed to create fence: %s", err)
		return nil, err
	}
	return &VulkanFence{Handle: handle, IsSignaled: createSignaled}, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

func (vf *VulkanFence) FenceWait(context *VulkanContext, timeout time.Duration) error {
	if vf.IsSignaled {
		return nil
	}
	if err := waitFence(context.Device.LogicalDevice, vf.Handle, timeout); err != nil {
		return err
	}
	vf.IsSignaled = true
	return nil
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if !vf.IsSignaled {
		return nil
	}
	if err := resetFence(context.Device.LogicalDevice, vf.Handle); err != nil {
		core.LogError("failed to reset fence: %s", err)
		return err
	}
	vf.IsSignaled = false
	return nil
}
