package stamp

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/framestamp/engine/core"
)

// Stats is a snapshot of a context's present counters.
type Stats struct {
	Presents    uint64
	Injected    uint64
	Skipped     uint64
	AvgInterval float64
	FPS         float64
	Slots       int
	Frame       uint32
	Disabled    bool
}

// DeviceContext holds everything the layer owns for one logical device. All
// methods are safe for concurrent use.
type DeviceContext struct {
	mu sync.Mutex

	ID      uint32
	Session uuid.UUID

	device     Device
	loadShader ShaderLoader
	opts       Options

	pipeline  PipelineFactory
	slots     SlotPool
	queues    QueueIndexMap
	families  FamilySupport
	scheduler *InjectionScheduler
	metrics   *core.PresentMetrics

	disabled  error
	destroyed bool
}

// NewDeviceContext is called when a device is created.
func NewDeviceContext(id uint32, dev Device, loadShader ShaderLoader, opts Options) *DeviceContext {
	dc := &DeviceContext{
		ID:         id,
		Session:    uuid.New(),
		device:     dev,
		loadShader: loadShader,
		opts:       opts,
		queues:     make(QueueIndexMap),
		families:   make(FamilySupport),
		metrics:    core.NewPresentMetrics(core.NewClock()),
	}
	dc.scheduler = newInjectionScheduler(dev, &dc.pipeline, &dc.slots, dc.queues, dc.families, &dc.opts)
	core.LogInfo("device context %d created (session %s)", id, dc.Session)
	return dc
}

// QueueObtained records the family a queue belongs to.
func (dc *DeviceContext) QueueObtained(queue Queue, family, index uint32) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	dc.queues[queue] = QueueInfo{Family: family, Index: index}
}

// QueueFamiliesReported records, per family index, whether the family can
// run compute work. A present on a family without it disables the context.
func (dc *DeviceContext) QueueFamiliesReported(compute []bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for i, ok := range compute {
		dc.families[uint32(i)] = ok
	}
}

// SwapchainImagesQueried builds the pipeline on first use and refreshes the
// slot pool. images is nil when the caller only queried the count. A failure
// disables injection for the whole device.
func (dc *DeviceContext) SwapchainImagesQueried(count uint32, images []Image) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.destroyed {
		return core.ErrDeviceDestroyed
	}
	if dc.disabled != nil {
		return fmt.Errorf("%w: %w", core.ErrContextDisabled, dc.disabled)
	}

	if err := dc.pipeline.Ensure(dc.device, dc.loadShader, dc.opts.MaxSlots); err != nil {
		dc.disable(err)
		return err
	}
	if err := dc.slots.Refresh(dc.device, &dc.pipeline, count, images, dc.opts.MaxSlots); err != nil {
		dc.disable(err)
		return err
	}
	return nil
}

// Present runs the injection scheduler for one present call on queue.
func (dc *DeviceContext) Present(queue Queue, req PresentRequest) (PresentResult, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.destroyed {
		return PresentResult{WaitSemaphores: req.WaitSemaphores}, core.ErrDeviceDestroyed
	}
	if dc.disabled != nil {
		dc.scheduler.frames.Next()
		dc.metrics.Present(false)
		return PresentResult{WaitSemaphores: req.WaitSemaphores}, core.ErrContextDisabled
	}

	res, err := dc.scheduler.OnPresent(queue, req)
	if errors.Is(err, errCommandPool) {
		dc.disable(err)
	}
	dc.metrics.Present(res.Injected)
	dc.logMetrics()
	return res, err
}

// Destroy releases every object the context owns, in dependency order:
// fences, semaphores, views, descriptor pool and set layout, command buffers
// and command pool, pipeline, pipeline layout, shader module.
func (dc *DeviceContext) Destroy() {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.destroyed {
		return
	}
	dc.destroyed = true

	dc.slots.releaseSync(dc.device)
	dc.slots.releaseViews(dc.device)
	dc.pipeline.releasePools(dc.device)
	dc.scheduler.release()
	dc.pipeline.releasePipeline(dc.device)

	core.LogInfo("device context %d destroyed after %d presents (%d stamped)", dc.ID, dc.metrics.Presents, dc.metrics.Injected)
}

// Reconfigure applies new options to later presents. The descriptor pool is
// sized once, so MaxSlots is kept once the pipeline exists.
func (dc *DeviceContext) Reconfigure(opts Options) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.pipeline.Ready() {
		opts.MaxSlots = dc.opts.MaxSlots
	}
	dc.opts = opts
}

// Disabled returns the error that switched injection off, if any.
func (dc *DeviceContext) Disabled() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	return dc.disabled
}

func (dc *DeviceContext) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	fps, avg := dc.metrics.Frame()
	return Stats{
		Presents:    dc.metrics.Presents,
		Injected:    dc.metrics.Injected,
		Skipped:     dc.metrics.Skipped,
		AvgInterval: avg,
		FPS:         fps,
		Slots:       dc.slots.Len(),
		Frame:       dc.scheduler.frames.Current(),
		Disabled:    dc.disabled != nil,
	}
}

// Slot returns a copy of the slot at index.
func (dc *DeviceContext) Slot(index uint32) (OutputSlot, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	slot := dc.slots.Slot(index)
	if slot == nil {
		return OutputSlot{}, false
	}
	return *slot, true
}

func (dc *DeviceContext) disable(err error) {
	if dc.disabled != nil {
		return
	}
	dc.disabled = err
	core.LogError("device context %d: injection disabled: %s", dc.ID, err)
}

func (dc *DeviceContext) logMetrics() {
	interval := dc.opts.MetricsInterval
	if interval == 0 || dc.metrics.Presents%interval != 0 {
		return
	}
	fps, avg := dc.metrics.Frame()
	core.LogDebug("session %s: %d presents, %d stamped, %d skipped, %.2f ms avg interval, %.0f presents/s",
		dc.Session, dc.metrics.Presents, dc.metrics.Injected, dc.metrics.Skipped, avg, fps)
}
