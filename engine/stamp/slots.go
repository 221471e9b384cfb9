package stamp

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/framestamp/engine/core"
)

type SlotState int

const (
	// No command buffer, semaphore or fence yet.
	SlotStateUnarmed SlotState = iota
	// Resources allocated and the fence is known to be signaled.
	SlotStateIdle
	SlotStateRecording
	// Work submitted; the fence signals when it retires.
	SlotStateSubmitted
	// A wait, record or submit failed; the slot is never injected again.
	SlotStateDisabled
)

func (s SlotState) String() string {
	switch s {
	case SlotStateUnarmed:
		return "unarmed"
	case SlotStateIdle:
		return "idle"
	case SlotStateRecording:
		return "recording"
	case SlotStateSubmitted:
		return "submitted"
	case SlotStateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// OutputSlot is the working set for one swapchain image index.
type OutputSlot struct {
	Image         Image
	View          ImageView
	DescriptorSet DescriptorSet
	CommandBuffer CommandBuffer
	Semaphore     Semaphore
	Fence         Fence
	State         SlotState
	// Pending is set by a successful submit and cleared only by a successful
	// wait on Fence. A disabled slot may still have work outstanding.
	Pending bool
}

// Armed reports whether the lazily allocated submission objects exist.
func (s *OutputSlot) Armed() bool {
	return s.CommandBuffer != 0
}

// SlotPool is an arena of output slots indexed by image index. It only grows.
type SlotPool struct {
	slots []*OutputSlot
}

func (sp *SlotPool) Len() int {
	return len(sp.slots)
}

// Slot returns the slot for index, or nil when it does not exist.
func (sp *SlotPool) Slot(index uint32) *OutputSlot {
	if int(index) >= len(sp.slots) {
		return nil
	}
	return sp.slots[index]
}

// Refresh rebinds the arena to a new swapchain image set. images may be nil
// when the caller only reports the count. After it returns every index in
// [0, len(images)) has an image, a fresh view and a descriptor set bound to it,
// except slots whose outstanding work could not be drained. Those keep their
// old view and set and stay disabled.
func (sp *SlotPool) Refresh(dev Device, pf *PipelineFactory, count uint32, images []Image, capacity uint32) error {
	if count == 0 {
		return nil
	}
	if count > capacity {
		return fmt.Errorf("%d images for %d slots: %w", count, capacity, core.ErrSlotCapacity)
	}
	if uint32(len(images)) > count {
		images = images[:count]
	}

	// Nothing below may touch a view or descriptor set still referenced by
	// in-flight stamp work.
	sp.drain(dev)

	for _, slot := range sp.slots {
		if slot.View != 0 && !slot.Pending {
			dev.DestroyImageView(slot.View)
			slot.View = 0
		}
	}

	for uint32(len(sp.slots)) < count {
		sp.slots = append(sp.slots, &OutputSlot{})
	}

	for i, image := range images {
		slot := sp.slots[i]
		if slot.Pending {
			core.LogWarn("slot %d: stamp work still outstanding, keeping its view and descriptor set", i)
			continue
		}
		slot.Image = image

		view, err := dev.CreateImageView(image)
		if err != nil {
			return fmt.Errorf("slot %d: create image view: %w", i, err)
		}
		slot.View = view

		if slot.DescriptorSet == 0 {
			set, err := dev.AllocateDescriptorSet(pf.DescriptorPool, pf.DescriptorSetLayout)
			if err != nil {
				return fmt.Errorf("slot %d: allocate descriptor set: %w", i, err)
			}
			slot.DescriptorSet = set
		}
		dev.UpdateDescriptorSet(slot.DescriptorSet, slot.View)
	}

	core.LogDebug("slot pool refreshed: %d images, %d slots", count, len(sp.slots))
	return nil
}

// drain waits without a timeout for every slot with outstanding work,
// including slots disabled by an earlier bounded wait.
func (sp *SlotPool) drain(dev Device) {
	for i, slot := range sp.slots {
		if !slot.Pending {
			continue
		}
		if err := dev.WaitForFence(slot.Fence, 0); err != nil {
			core.LogWarn("slot %d: waiting for in-flight stamp work failed, disabling slot: %s", i, err)
			slot.State = SlotStateDisabled
			continue
		}
		slot.Pending = false
		if slot.State == SlotStateSubmitted {
			slot.State = SlotStateIdle
		}
	}
}

// arm allocates the command buffer, semaphore and fence of a slot. The fence
// starts signaled so the first wait returns immediately.
func (sp *SlotPool) arm(dev Device, slot *OutputSlot, pool CommandPool) error {
	var errs []error

	cb, err := dev.AllocateCommandBuffer(pool)
	if err != nil {
		errs = append(errs, fmt.Errorf("allocate command buffer: %w", err))
	} else {
		slot.CommandBuffer = cb
	}
	semaphore, err := dev.CreateSemaphore()
	if err != nil {
		errs = append(errs, fmt.Errorf("create semaphore: %w", err))
	} else {
		slot.Semaphore = semaphore
	}
	fence, err := dev.CreateFence(true)
	if err != nil {
		errs = append(errs, fmt.Errorf("create fence: %w", err))
	} else {
		slot.Fence = fence
	}

	if len(errs) > 0 {
		slot.State = SlotStateDisabled
		return errors.Join(errs...)
	}
	slot.State = SlotStateIdle
	return nil
}

// releaseSync destroys every slot fence, then every semaphore.
func (sp *SlotPool) releaseSync(dev Device) {
	for _, slot := range sp.slots {
		if slot.Fence != 0 {
			dev.DestroyFence(slot.Fence)
			slot.Fence = 0
		}
	}
	for _, slot := range sp.slots {
		if slot.Semaphore != 0 {
			dev.DestroySemaphore(slot.Semaphore)
			slot.Semaphore = 0
		}
	}
}

// releaseViews destroys every slot image view. Images are owned by the swapchain.
func (sp *SlotPool) releaseViews(dev Device) {
	for _, slot := range sp.slots {
		if slot.View != 0 {
			dev.DestroyImageView(slot.View)
			slot.View = 0
		}
		slot.Image = 0
	}
}

// releaseCommandBuffers frees every allocated command buffer back to pool.
func (sp *SlotPool) releaseCommandBuffers(dev Device, pool CommandPool) {
	var buffers []CommandBuffer
	for _, slot := range sp.slots {
		if slot.CommandBuffer != 0 {
			buffers = append(buffers, slot.CommandBuffer)
			slot.CommandBuffer = 0
		}
		// Freed together with the descriptor pool.
		slot.DescriptorSet = 0
		slot.State = SlotStateUnarmed
	}
	if len(buffers) > 0 && pool != 0 {
		dev.FreeCommandBuffers(pool, buffers)
	}
}
