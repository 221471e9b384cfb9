package stamp

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/framestamp/engine/core"
	"github.com/spaghettifunk/framestamp/engine/math"
)

var errCommandPool = errors.New("stamp command pool unavailable")

// PresentRequest is the part of a present call the scheduler reads.
type PresentRequest struct {
	// ImageIndices holds one image index per swapchain being presented.
	ImageIndices []uint32
	// WaitSemaphores are the semaphores the application asked the present to wait on.
	WaitSemaphores []Semaphore
}

// PresentResult tells the caller which wait list to present with.
type PresentResult struct {
	WaitSemaphores []Semaphore
	Injected       bool
	Slot           uint32
	Frame          uint32
}

// SubmitError reports a failed submission of the stamp work. Err carries the
// underlying API status.
type SubmitError struct {
	Slot uint32
	Err  error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("slot %d: submit stamp work: %s", e.Slot, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// DispatchGrid returns the workgroup counts covering the target region.
func DispatchGrid(opts Options) (uint32, uint32, uint32) {
	return math.DivCeil(opts.TargetWidth, WorkgroupSize), math.DivCeil(opts.TargetHeight, WorkgroupSize), 1
}

// InjectionScheduler records and submits the stamp dispatch for each present.
type InjectionScheduler struct {
	dev      Device
	pipeline *PipelineFactory
	slots    *SlotPool
	queues   QueueIndexMap
	families FamilySupport
	opts     *Options

	CommandPool CommandPool
	poolFamily  uint32
	frames      FrameCounter
}

func newInjectionScheduler(dev Device, pf *PipelineFactory, sp *SlotPool, queues QueueIndexMap, families FamilySupport, opts *Options) *InjectionScheduler {
	return &InjectionScheduler{
		dev:      dev,
		pipeline: pf,
		slots:    sp,
		queues:   queues,
		families: families,
		opts:     opts,
	}
}

// OnPresent injects the stamp dispatch ahead of a present on queue. On any
// failure the original wait list is returned with Injected false.
func (is *InjectionScheduler) OnPresent(queue Queue, req PresentRequest) (PresentResult, error) {
	// Every present call advances the counter, stamped or not.
	frame := is.frames.Next()
	passthrough := PresentResult{WaitSemaphores: req.WaitSemaphores, Frame: frame}

	if len(req.ImageIndices) == 0 {
		return passthrough, fmt.Errorf("present without image index: %w", core.ErrSlotOutOfRange)
	}
	if !is.pipeline.Ready() {
		return passthrough, core.ErrPipelineNotReady
	}

	// Only the first swapchain of a multi-swapchain present is stamped.
	index := req.ImageIndices[0]
	passthrough.Slot = index
	slot := is.slots.Slot(index)
	if slot == nil || slot.View == 0 || slot.DescriptorSet == 0 {
		return passthrough, fmt.Errorf("image index %d: %w", index, core.ErrSlotOutOfRange)
	}
	if slot.State == SlotStateDisabled {
		return passthrough, fmt.Errorf("image index %d: %w", index, core.ErrSlotDisabled)
	}

	family, _ := is.queues.Family(queue)
	if err := is.ensureCommandPool(family); err != nil {
		return passthrough, err
	}
	if family != is.poolFamily {
		return passthrough, fmt.Errorf("queue family %d, pool family %d: %w", family, is.poolFamily, core.ErrQueueFamilyMismatch)
	}

	if slot.State == SlotStateUnarmed {
		if err := is.slots.arm(is.dev, slot, is.CommandPool); err != nil {
			return passthrough, fmt.Errorf("slot %d: arm: %w", index, err)
		}
	}

	if err := is.dev.WaitForFence(slot.Fence, is.opts.FenceTimeout); err != nil {
		slot.State = SlotStateDisabled
		return passthrough, fmt.Errorf("slot %d: wait for previous stamp work: %w", index, err)
	}
	slot.Pending = false
	slot.State = SlotStateIdle
	if err := is.dev.ResetFence(slot.Fence); err != nil {
		slot.State = SlotStateDisabled
		return passthrough, fmt.Errorf("slot %d: reset fence: %w", index, err)
	}

	slot.State = SlotStateRecording
	if err := is.record(slot, frame); err != nil {
		slot.State = SlotStateDisabled
		return passthrough, fmt.Errorf("slot %d: record: %w", index, err)
	}

	waitStages := make([]PipelineStage, len(req.WaitSemaphores))
	for i := range waitStages {
		waitStages[i] = is.opts.WaitStage
	}
	submit := Submission{
		WaitSemaphores:   req.WaitSemaphores,
		WaitStages:       waitStages,
		CommandBuffers:   []CommandBuffer{slot.CommandBuffer},
		SignalSemaphores: []Semaphore{slot.Semaphore},
	}
	if err := is.dev.QueueSubmit(queue, submit, slot.Fence); err != nil {
		slot.State = SlotStateDisabled
		return passthrough, &SubmitError{Slot: index, Err: err}
	}
	slot.State = SlotStateSubmitted
	slot.Pending = true

	return PresentResult{
		WaitSemaphores: []Semaphore{slot.Semaphore},
		Injected:       true,
		Slot:           index,
		Frame:          frame,
	}, nil
}

func (is *InjectionScheduler) ensureCommandPool(family uint32) error {
	if is.CommandPool != 0 {
		return nil
	}
	if !is.families.Compute(family) {
		core.LogWarn("queue family %d has no compute support, the stamp dispatch cannot run on it", family)
		return fmt.Errorf("%w: family %d: %w", errCommandPool, family, core.ErrQueueNoCompute)
	}
	pool, err := is.dev.CreateCommandPool(family)
	if err != nil {
		return fmt.Errorf("%w: %w", errCommandPool, err)
	}
	is.CommandPool = pool
	is.poolFamily = family
	core.LogDebug("stamp command pool created for queue family %d", family)
	return nil
}

func (is *InjectionScheduler) record(slot *OutputSlot, frame uint32) error {
	cb := slot.CommandBuffer
	if err := is.dev.BeginCommandBuffer(cb); err != nil {
		return err
	}
	if is.opts.LayoutTransitions {
		is.dev.CmdImageBarrier(cb, slot.Image, ImageLayoutPresentSrc, ImageLayoutGeneral)
	}
	is.dev.CmdBindComputePipeline(cb, is.pipeline.Pipeline)
	is.dev.CmdBindDescriptorSet(cb, is.pipeline.PipelineLayout, slot.DescriptorSet)
	is.dev.CmdPushConstant(cb, is.pipeline.PipelineLayout, frame)
	x, y, z := DispatchGrid(*is.opts)
	is.dev.CmdDispatch(cb, x, y, z)
	if is.opts.LayoutTransitions {
		is.dev.CmdImageBarrier(cb, slot.Image, ImageLayoutGeneral, ImageLayoutPresentSrc)
	}
	return is.dev.EndCommandBuffer(cb)
}

// release frees the slot command buffers and then the shared command pool.
func (is *InjectionScheduler) release() {
	is.slots.releaseCommandBuffers(is.dev, is.CommandPool)
	if is.CommandPool != 0 {
		is.dev.DestroyCommandPool(is.CommandPool)
		is.CommandPool = 0
	}
}
