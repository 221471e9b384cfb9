package layer

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framestamp/engine/assets"
	"github.com/spaghettifunk/framestamp/engine/assets/loaders"
	"github.com/spaghettifunk/framestamp/engine/config"
	"github.com/spaghettifunk/framestamp/engine/core"
	"github.com/spaghettifunk/framestamp/engine/renderer/vulkan"
	"github.com/spaghettifunk/framestamp/engine/stamp"
)

// countingDevice hands out increasing handles and counts what happens to
// them. Only the calls the layer tests look at are recorded in detail.
type countingDevice struct {
	next      uint64
	live      int
	submits   []stamp.Submission
	stages    []stamp.PipelineStage
	submitErr error
}

var _ stamp.Device = (*countingDevice)(nil)

func (d *countingDevice) handle() uint64 {
	d.next++
	d.live++
	return 0x4000 + d.next
}

func (d *countingDevice) release() { d.live-- }

func (d *countingDevice) CreateShaderModule([]uint32) (stamp.ShaderModule, error) {
	return stamp.ShaderModule(d.handle()), nil
}
func (d *countingDevice) CreateDescriptorPool(uint32) (stamp.DescriptorPool, error) {
	return stamp.DescriptorPool(d.handle()), nil
}
func (d *countingDevice) CreateDescriptorSetLayout() (stamp.DescriptorSetLayout, error) {
	return stamp.DescriptorSetLayout(d.handle()), nil
}
func (d *countingDevice) CreatePipelineLayout(stamp.DescriptorSetLayout, uint32) (stamp.PipelineLayout, error) {
	return stamp.PipelineLayout(d.handle()), nil
}
func (d *countingDevice) CreateComputePipeline(stamp.PipelineLayout, stamp.ShaderModule, string) (stamp.Pipeline, error) {
	return stamp.Pipeline(d.handle()), nil
}
func (d *countingDevice) CreateImageView(stamp.Image) (stamp.ImageView, error) {
	return stamp.ImageView(d.handle()), nil
}
func (d *countingDevice) AllocateDescriptorSet(stamp.DescriptorPool, stamp.DescriptorSetLayout) (stamp.DescriptorSet, error) {
	// Freed with the pool, so not counted as live.
	d.next++
	return stamp.DescriptorSet(0x4000 + d.next), nil
}
func (d *countingDevice) UpdateDescriptorSet(stamp.DescriptorSet, stamp.ImageView) {}
func (d *countingDevice) CreateCommandPool(uint32) (stamp.CommandPool, error) {
	return stamp.CommandPool(d.handle()), nil
}
func (d *countingDevice) AllocateCommandBuffer(stamp.CommandPool) (stamp.CommandBuffer, error) {
	return stamp.CommandBuffer(d.handle()), nil
}
func (d *countingDevice) CreateSemaphore() (stamp.Semaphore, error) {
	return stamp.Semaphore(d.handle()), nil
}
func (d *countingDevice) CreateFence(bool) (stamp.Fence, error) {
	return stamp.Fence(d.handle()), nil
}
func (d *countingDevice) WaitForFence(stamp.Fence, time.Duration) error { return nil }
func (d *countingDevice) ResetFence(stamp.Fence) error { return nil }
func (d *countingDevice) QueueSubmit(_ stamp.Queue, submit stamp.Submission, _ stamp.Fence) error {
	if d.submitErr != nil {
		return d.submitErr
	}
	d.submits = append(d.submits, submit)
	d.stages = append(d.stages, submit.WaitStages...)
	return nil
}
func (d *countingDevice) BeginCommandBuffer(stamp.CommandBuffer) error { return nil }
func (d *countingDevice) CmdImageBarrier(stamp.CommandBuffer, stamp.Image, stamp.ImageLayout, stamp.ImageLayout) {
}
func (d *countingDevice) CmdBindComputePipeline(stamp.CommandBuffer, stamp.Pipeline) {}
func (d *countingDevice) CmdBindDescriptorSet(stamp.CommandBuffer, stamp.PipelineLayout, stamp.DescriptorSet) {
}
func (d *countingDevice) CmdPushConstant(stamp.CommandBuffer, stamp.PipelineLayout, uint32) {}
func (d *countingDevice) CmdDispatch(stamp.CommandBuffer, uint32, uint32, uint32) {}
func (d *countingDevice) EndCommandBuffer(stamp.CommandBuffer) error { return nil }
func (d *countingDevice) DestroyFence(stamp.Fence) { d.release() }
func (d *countingDevice) DestroySemaphore(stamp.Semaphore) { d.release() }
func (d *countingDevice) DestroyImageView(stamp.ImageView) { d.release() }
func (d *countingDevice) DestroyDescriptorPool(stamp.DescriptorPool) { d.release() }
func (d *countingDevice) DestroyDescriptorSetLayout(stamp.DescriptorSetLayout) { d.release() }
func (d *countingDevice) FreeCommandBuffers(_ stamp.CommandPool, b []stamp.CommandBuffer) {
	d.live -= len(b)
}
func (d *countingDevice) DestroyCommandPool(stamp.CommandPool) { d.release() }
func (d *countingDevice) DestroyPipeline(stamp.Pipeline) { d.release() }
func (d *countingDevice) DestroyPipelineLayout(stamp.PipelineLayout) { d.release() }
func (d *countingDevice) DestroyShaderModule(stamp.ShaderModule) { d.release() }

// Handles are only compared, never dereferenced.
func vkHandle(h uintptr) unsafe.Pointer {
	return unsafe.Pointer(h)
}

var (
	testDevice    = vk.Device(vkHandle(0x1_0000_0100))
	testQueue     = vk.Queue(vkHandle(0x1_0000_0200))
	testSwapchain = vk.Swapchain(vkHandle(0x1_0000_0300))
	testImages    = []vk.Image{vk.Image(vkHandle(0x1_0000_1000)), vk.Image(vkHandle(0x1_0000_1100)), vk.Image(vkHandle(0x1_0000_1200))}
	appWaits      = []vk.Semaphore{vk.Semaphore(vkHandle(0x1_0000_2000)), vk.Semaphore(vkHandle(0x1_0000_2100))}
)

func testShader() ([]uint32, error) {
	return []uint32{0x07230203, 0x00010000, 0, 0, 0}, nil
}

type harness struct {
	layer *Layer
	dev   *countingDevice
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	core.SetLogOutput(io.Discard)

	h := &harness{dev: &countingDevice{}}
	h.layer = New(cfg,
		WithDeviceFactory(func(vk.Device) stamp.Device { return h.dev }),
		WithShaderLoader(testShader),
	)
	h.layer.DeviceCreated(testDevice)
	h.layer.QueueObtained(testDevice, testQueue, 0, 0)
	if res := h.layer.SwapchainImagesQueried(testDevice, testSwapchain, uint32(len(testImages)), nil); res != vk.Success {
		t.Fatalf("count query: %d", res)
	}
	if res := h.layer.SwapchainImagesQueried(testDevice, testSwapchain, uint32(len(testImages)), testImages); res != vk.Success {
		t.Fatalf("image query: %d", res)
	}
	return h
}

func presentInfo(index uint32) vk.PresentInfo {
	return vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(appWaits)),
		PWaitSemaphores:    slices.Clone(appWaits),
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{testSwapchain},
		PImageIndices:      []uint32{index},
	}
}

func samePresent(a, b vk.PresentInfo) bool {
	return a.WaitSemaphoreCount == b.WaitSemaphoreCount && slices.Equal(a.PWaitSemaphores, b.PWaitSemaphores) &&
		a.SwapchainCount == b.SwapchainCount && slices.Equal(a.PImageIndices, b.PImageIndices)
}

func TestPresentWaitsOnStampSemaphore(t *testing.T) {
	h := newHarness(t, config.Default())

	info := presentInfo(1)
	out, res := h.layer.PresentRequested(testQueue, info)
	if res != vk.Success {
		t.Fatalf("result = %d", res)
	}

	dc, err := h.layer.Context(testDevice)
	if err != nil {
		t.Fatal(err)
	}
	slot, _ := dc.Slot(1)
	if out.WaitSemaphoreCount != 1 || len(out.PWaitSemaphores) != 1 || out.PWaitSemaphores[0] != vulkan.SemaphoreOf(slot.Semaphore) {
		t.Errorf("present waits on %v (count %d), want the slot semaphore", out.PWaitSemaphores, out.WaitSemaphoreCount)
	}
	if !slices.Equal(info.PWaitSemaphores, appWaits) || info.WaitSemaphoreCount != 2 {
		t.Error("caller's present info was modified")
	}
	if !slices.Equal(out.PImageIndices, info.PImageIndices) || out.SwapchainCount != 1 {
		t.Error("present targets changed")
	}

	if len(h.dev.submits) != 1 {
		t.Fatalf("%d submissions, want 1", len(h.dev.submits))
	}
	if got := h.dev.submits[0].WaitSemaphores; !slices.Equal(got, vulkan.SemaphoreHandles(appWaits)) {
		t.Errorf("stamp work waits on %v", got)
	}
}

func TestPresentPassesThrough(t *testing.T) {
	disabled := config.Default()
	disabled.Enabled = false

	tests := []struct {
		name  string
		cfg   config.Config
		queue vk.Queue
		info  vk.PresentInfo
	}{
		{name: "disabled", cfg: disabled, queue: testQueue, info: presentInfo(0)},
		{name: "unknown queue", cfg: config.Default(), queue: vk.Queue(vkHandle(0x1_0000_0900)), info: presentInfo(0)},
		{name: "index out of range", cfg: config.Default(), queue: testQueue, info: presentInfo(7)},
		{name: "no swapchain", cfg: config.Default(), queue: testQueue, info: vk.PresentInfo{WaitSemaphoreCount: 2, PWaitSemaphores: appWaits}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.cfg)
			out, res := h.layer.PresentRequested(tt.queue, tt.info)
			if res != vk.Success {
				t.Errorf("result = %d", res)
			}
			if !samePresent(out, tt.info) {
				t.Errorf("present rewritten: %+v", out)
			}
			if len(h.dev.submits) != 0 {
				t.Errorf("%d submissions", len(h.dev.submits))
			}
		})
	}
}

func TestPresentCountsBoundLists(t *testing.T) {
	h := newHarness(t, config.Default())

	info := presentInfo(0)
	info.WaitSemaphoreCount = 1
	info.PImageIndices = []uint32{2, 0}
	if _, res := h.layer.PresentRequested(testQueue, info); res != vk.Success {
		t.Fatalf("result = %d", res)
	}
	if got := h.dev.submits[0].WaitSemaphores; len(got) != 1 || got[0] != vulkan.SemaphoreHandle(appWaits[0]) {
		t.Errorf("stamp work waits on %v, want only the first semaphore", got)
	}

	dc, _ := h.layer.Context(testDevice)
	if slot, _ := dc.Slot(2); !slot.Armed() {
		t.Error("first image index was not stamped")
	}
	if slot, _ := dc.Slot(0); slot.Armed() {
		t.Error("image index beyond the swapchain count was stamped")
	}
}

func TestSubmitFailureIsReported(t *testing.T) {
	h := newHarness(t, config.Default())
	h.dev.submitErr = &vulkan.ResultError{Op: "vkQueueSubmit", Result: vk.ErrorDeviceLost}

	info := presentInfo(0)
	out, res := h.layer.PresentRequested(testQueue, info)
	if res != vk.ErrorDeviceLost {
		t.Errorf("result = %s, want VK_ERROR_DEVICE_LOST", vulkan.VulkanResultString(res, false))
	}
	if !samePresent(out, info) {
		t.Error("failed present was rewritten")
	}

	// The slot is disabled now; later presents pass through quietly.
	h.dev.submitErr = nil
	out, res = h.layer.PresentRequested(testQueue, info)
	if res != vk.Success || !samePresent(out, info) {
		t.Errorf("present on disabled slot: %d, %+v", res, out)
	}
}

func TestQueueFamilyWithoutComputeIsNeverStamped(t *testing.T) {
	h := newHarness(t, config.Default())
	h.layer.QueueFamiliesQueried(testDevice, []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueTransferBit)},
	})

	info := presentInfo(0)
	out, res := h.layer.PresentRequested(testQueue, info)
	if res != vk.Success || !samePresent(out, info) {
		t.Errorf("present on a graphics-only family not passed through: %d", res)
	}
	if len(h.dev.submits) != 0 {
		t.Errorf("%d submissions, want 0", len(h.dev.submits))
	}
	if st := h.layer.Stats()[0]; !st.Disabled {
		t.Errorf("stats = %+v, want disabled", st)
	}
}

func TestReconfigure(t *testing.T) {
	h := newHarness(t, config.Default())

	cfg := config.Default()
	cfg.WaitStage = "compute_shader"
	h.layer.Reconfigure(cfg)
	if _, res := h.layer.PresentRequested(testQueue, presentInfo(0)); res != vk.Success {
		t.Fatalf("result = %d", res)
	}
	want := []stamp.PipelineStage{stamp.PipelineStageComputeShader, stamp.PipelineStageComputeShader}
	if !slices.Equal(h.dev.stages, want) {
		t.Errorf("wait stages = %v, want %v", h.dev.stages, want)
	}

	cfg.Enabled = false
	h.layer.Reconfigure(cfg)
	info := presentInfo(1)
	if out, _ := h.layer.PresentRequested(testQueue, info); !samePresent(out, info) {
		t.Error("present rewritten after disabling")
	}
	if len(h.dev.submits) != 1 {
		t.Errorf("%d submissions, want 1", len(h.dev.submits))
	}
}

func TestReconfigureShaderPathDropsCachedProgram(t *testing.T) {
	core.SetLogOutput(io.Discard)
	dir := t.TempDir()
	path := filepath.Join(dir, "stamp.spv")
	var module []byte
	for _, w := range []uint32{loaders.SPIRVMagic, 0x00010000, 0, 1, 0} {
		module = binary.LittleEndian.AppendUint32(module, w)
	}
	if err := os.WriteFile(path, module, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.ShaderPath = path
	l := New(cfg, WithDeviceFactory(func(vk.Device) stamp.Device { return &countingDevice{} }))
	if _, err := l.shaderLoader()(); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	cfg.WaitStage = "compute_shader"
	l.Reconfigure(cfg)
	if _, err := l.shaders.Load(path); err != nil {
		t.Errorf("program dropped without a path change: %v", err)
	}

	cfg.ShaderPath = filepath.Join(dir, "other.spv")
	l.Reconfigure(cfg)
	if _, err := l.shaders.Load(path); err == nil {
		t.Error("program of the old path still cached after the path changed")
	}
}

func TestDeviceLifecycle(t *testing.T) {
	h := newHarness(t, config.Default())
	for i := uint32(0); i < 3; i++ {
		if _, res := h.layer.PresentRequested(testQueue, presentInfo(i)); res != vk.Success {
			t.Fatalf("present %d: %d", i, res)
		}
	}

	if id := h.layer.DeviceCreated(testDevice); id != 0 {
		t.Errorf("second registration got id %d, want 0", id)
	}
	stats := h.layer.Stats()
	if len(stats) != 1 || stats[0].Injected != 3 || stats[0].Slots != 3 {
		t.Errorf("stats = %+v", stats)
	}

	h.layer.DeviceDestroyed(testDevice)
	if h.dev.live != 0 {
		t.Errorf("%d objects still alive after device destruction", h.dev.live)
	}
	if _, err := h.layer.Context(testDevice); err != core.ErrUnknownDevice {
		t.Errorf("Context after destroy: %v", err)
	}
	if len(h.layer.Stats()) != 0 {
		t.Error("destroyed device still reported")
	}

	info := presentInfo(0)
	if out, res := h.layer.PresentRequested(testQueue, info); res != vk.Success || !samePresent(out, info) {
		t.Error("present on a queue of a destroyed device was not passed through")
	}
	if res := h.layer.SwapchainImagesQueried(testDevice, testSwapchain, 3, testImages); res != vk.Success {
		t.Errorf("image query for unknown device: %d", res)
	}

	// Destroying again is harmless and the id is free for reuse.
	h.layer.DeviceDestroyed(testDevice)
	if id := h.layer.DeviceCreated(testDevice); id != 0 {
		t.Errorf("id after reuse = %d, want 0", id)
	}
}

// Both stamp shaders write an rgba8 image. Every configurable view format is
// either rgba8 itself or gets the red/blue swap bit.
func TestViewFormatsMatchStampShader(t *testing.T) {
	glsl, err := os.ReadFile("../assets/shaders/stamp.comp")
	if err != nil {
		t.Fatal(err)
	}
	for name, src := range map[string]string{
		"stamp.wgsl": assets.StampShaderSource(),
		"stamp.comp": string(glsl),
	} {
		for _, marker := range []string{"rgba8", "& 256u", ".bgra"} {
			if !strings.Contains(src, marker) {
				t.Errorf("%s lacks %q", name, marker)
			}
		}
	}

	for _, name := range []string{"B8G8R8A8_UNORM", "B8G8R8A8_SRGB", "R8G8B8A8_UNORM", "R8G8B8A8_SRGB"} {
		if !config.KnownImageFormat(name) {
			t.Errorf("%s not accepted by config", name)
		}
		format, ok := vulkan.ParseFormat(name)
		if !ok {
			t.Errorf("%s not parsed", name)
			continue
		}
		if got, want := vulkan.SwapsRedBlue(format), strings.HasPrefix(name, "B8G8R8A8"); got != want {
			t.Errorf("%s: SwapsRedBlue = %t, want %t", name, got, want)
		}
	}
	if vulkan.SwapRedBlueBit != 256 {
		t.Errorf("swap bit = %d, shaders test 256", vulkan.SwapRedBlueBit)
	}
}
