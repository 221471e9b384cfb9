package stamp

import (
	"io"
	"testing"
	"time"

	"github.com/spaghettifunk/framestamp/engine/core"
)

type call struct {
	op     string
	handle uint64
}

type submitRecord struct {
	queue  Queue
	submit Submission
	fence  Fence
}

type barrierRecord struct {
	image    Image
	from, to ImageLayout
}

// fakeDevice records every call and hands out unique non-zero handles. A
// submitted fence is signaled again by the next wait, as if the GPU retired
// the work in the meantime.
type fakeDevice struct {
	next  uint64
	calls []call

	created   map[uint64]string
	destroyed map[uint64]int
	signaled  map[Fence]bool

	submits    []submitRecord
	pushes     []uint32
	dispatches [][3]uint32
	barriers   []barrierRecord
	updates    map[DescriptorSet]ImageView
	timeouts   []time.Duration
	poolFamily []uint32

	// fail makes the named operation return the error.
	fail map[string]error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		next:      0x1000,
		created:   make(map[uint64]string),
		destroyed: make(map[uint64]int),
		signaled:  make(map[Fence]bool),
		updates:   make(map[DescriptorSet]ImageView),
		fail:      make(map[string]error),
	}
}

var _ Device = (*fakeDevice)(nil)

func (d *fakeDevice) create(kind string) (uint64, error) {
	if err := d.fail[kind]; err != nil {
		d.calls = append(d.calls, call{op: kind})
		return 0, err
	}
	d.next++
	d.created[d.next] = kind
	d.calls = append(d.calls, call{op: kind, handle: d.next})
	return d.next, nil
}

func (d *fakeDevice) destroy(op string, h uint64) {
	d.destroyed[h]++
	d.calls = append(d.calls, call{op: op, handle: h})
}

func (d *fakeDevice) record(op string, h uint64) {
	d.calls = append(d.calls, call{op: op, handle: h})
}

// count returns how many times op was called.
func (d *fakeDevice) count(op string) int {
	n := 0
	for _, c := range d.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

// indexOf returns the position of the first call matching op and handle at
// or after from, or -1.
func (d *fakeDevice) indexOf(op string, h uint64, from int) int {
	for i := from; i < len(d.calls); i++ {
		if d.calls[i].op == op && (h == 0 || d.calls[i].handle == h) {
			return i
		}
	}
	return -1
}

// liveHandles returns every created handle of a kind that must be released.
func (d *fakeDevice) liveHandles() map[uint64]string {
	out := make(map[uint64]string)
	for h, kind := range d.created {
		switch kind {
		case "CreateShaderModule", "CreateDescriptorPool", "CreateDescriptorSetLayout",
			"CreatePipelineLayout", "CreateComputePipeline", "CreateImageView",
			"CreateCommandPool", "AllocateCommandBuffer", "CreateSemaphore", "CreateFence":
			out[h] = kind
		}
	}
	return out
}

func (d *fakeDevice) CreateShaderModule(code []uint32) (ShaderModule, error) {
	h, err := d.create("CreateShaderModule")
	return ShaderModule(h), err
}

func (d *fakeDevice) CreateDescriptorPool(maxSets uint32) (DescriptorPool, error) {
	h, err := d.create("CreateDescriptorPool")
	return DescriptorPool(h), err
}

func (d *fakeDevice) CreateDescriptorSetLayout() (DescriptorSetLayout, error) {
	h, err := d.create("CreateDescriptorSetLayout")
	return DescriptorSetLayout(h), err
}

func (d *fakeDevice) CreatePipelineLayout(setLayout DescriptorSetLayout, pushConstantSize uint32) (PipelineLayout, error) {
	h, err := d.create("CreatePipelineLayout")
	return PipelineLayout(h), err
}

func (d *fakeDevice) CreateComputePipeline(layout PipelineLayout, module ShaderModule, entryPoint string) (Pipeline, error) {
	h, err := d.create("CreateComputePipeline")
	return Pipeline(h), err
}

func (d *fakeDevice) CreateImageView(image Image) (ImageView, error) {
	h, err := d.create("CreateImageView")
	return ImageView(h), err
}

func (d *fakeDevice) AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error) {
	h, err := d.create("AllocateDescriptorSet")
	return DescriptorSet(h), err
}

func (d *fakeDevice) UpdateDescriptorSet(set DescriptorSet, view ImageView) {
	d.updates[set] = view
	d.record("UpdateDescriptorSet", uint64(set))
}

func (d *fakeDevice) CreateCommandPool(queueFamily uint32) (CommandPool, error) {
	d.poolFamily = append(d.poolFamily, queueFamily)
	h, err := d.create("CreateCommandPool")
	return CommandPool(h), err
}

func (d *fakeDevice) AllocateCommandBuffer(pool CommandPool) (CommandBuffer, error) {
	h, err := d.create("AllocateCommandBuffer")
	return CommandBuffer(h), err
}

func (d *fakeDevice) CreateSemaphore() (Semaphore, error) {
	h, err := d.create("CreateSemaphore")
	return Semaphore(h), err
}

func (d *fakeDevice) CreateFence(signaled bool) (Fence, error) {
	h, err := d.create("CreateFence")
	if err == nil {
		d.signaled[Fence(h)] = signaled
	}
	return Fence(h), err
}

func (d *fakeDevice) WaitForFence(fence Fence, timeout time.Duration) error {
	d.timeouts = append(d.timeouts, timeout)
	d.record("WaitForFence", uint64(fence))
	if err := d.fail["WaitForFence"]; err != nil {
		return err
	}
	d.signaled[fence] = true
	return nil
}

func (d *fakeDevice) ResetFence(fence Fence) error {
	d.record("ResetFence", uint64(fence))
	if err := d.fail["ResetFence"]; err != nil {
		return err
	}
	d.signaled[fence] = false
	return nil
}

func (d *fakeDevice) QueueSubmit(queue Queue, submit Submission, fence Fence) error {
	d.record("QueueSubmit", uint64(fence))
	if err := d.fail["QueueSubmit"]; err != nil {
		return err
	}
	d.submits = append(d.submits, submitRecord{
		queue:  queue,
		submit: Submission{
			WaitSemaphores:   append([]Semaphore(nil), submit.WaitSemaphores...),
			WaitStages:       append([]PipelineStage(nil), submit.WaitStages...),
			CommandBuffers:   append([]CommandBuffer(nil), submit.CommandBuffers...),
			SignalSemaphores: append([]Semaphore(nil), submit.SignalSemaphores...),
		},
		fence: fence,
	})
	return nil
}

func (d *fakeDevice) BeginCommandBuffer(cb CommandBuffer) error {
	d.record("BeginCommandBuffer", uint64(cb))
	return d.fail["BeginCommandBuffer"]
}

func (d *fakeDevice) CmdImageBarrier(cb CommandBuffer, image Image, from, to ImageLayout) {
	d.barriers = append(d.barriers, barrierRecord{image: image, from: from, to: to})
	d.record("CmdImageBarrier", uint64(cb))
}

func (d *fakeDevice) CmdBindComputePipeline(cb CommandBuffer, pipeline Pipeline) {
	d.record("CmdBindComputePipeline", uint64(cb))
}

func (d *fakeDevice) CmdBindDescriptorSet(cb CommandBuffer, layout PipelineLayout, set DescriptorSet) {
	d.record("CmdBindDescriptorSet", uint64(set))
}

func (d *fakeDevice) CmdPushConstant(cb CommandBuffer, layout PipelineLayout, value uint32) {
	d.pushes = append(d.pushes, value)
	d.record("CmdPushConstant", uint64(cb))
}

func (d *fakeDevice) CmdDispatch(cb CommandBuffer, x, y, z uint32) {
	d.dispatches = append(d.dispatches, [3]uint32{x, y, z})
	d.record("CmdDispatch", uint64(cb))
}

func (d *fakeDevice) EndCommandBuffer(cb CommandBuffer) error {
	d.record("EndCommandBuffer", uint64(cb))
	return d.fail["EndCommandBuffer"]
}

func (d *fakeDevice) DestroyFence(fence Fence) { d.destroy("DestroyFence", uint64(fence)) }

func (d *fakeDevice) DestroySemaphore(semaphore Semaphore) {
	d.destroy("DestroySemaphore", uint64(semaphore))
}

func (d *fakeDevice) DestroyImageView(view ImageView) { d.destroy("DestroyImageView", uint64(view)) }

func (d *fakeDevice) DestroyDescriptorPool(pool DescriptorPool) {
	d.destroy("DestroyDescriptorPool", uint64(pool))
}

func (d *fakeDevice) DestroyDescriptorSetLayout(layout DescriptorSetLayout) {
	d.destroy("DestroyDescriptorSetLayout", uint64(layout))
}

func (d *fakeDevice) FreeCommandBuffers(pool CommandPool, buffers []CommandBuffer) {
	for _, cb := range buffers {
		d.destroy("FreeCommandBuffers", uint64(cb))
	}
}

func (d *fakeDevice) DestroyCommandPool(pool CommandPool) {
	d.destroy("DestroyCommandPool", uint64(pool))
}

func (d *fakeDevice) DestroyPipeline(pipeline Pipeline) {
	d.destroy("DestroyPipeline", uint64(pipeline))
}

func (d *fakeDevice) DestroyPipelineLayout(layout PipelineLayout) {
	d.destroy("DestroyPipelineLayout", uint64(layout))
}

func (d *fakeDevice) DestroyShaderModule(module ShaderModule) {
	d.destroy("DestroyShaderModule", uint64(module))
}

const testQueue Queue = 0x5000

var appSemaphores = []Semaphore{0x6001, 0x6002}

func testShader() ([]uint32, error) {
	return []uint32{0x07230203, 0x00010000, 0, 0, 0}, nil
}

// testImages returns n distinct image handles, offset by base so different
// swapchains get different handles.
func testImages(base, n int) []Image {
	images := make([]Image, n)
	for i := range images {
		images[i] = Image(0x9000 + base*0x100 + i)
	}
	return images
}

func newTestContext(t *testing.T, dev *fakeDevice, opts Options) *DeviceContext {
	t.Helper()
	core.SetLogOutput(io.Discard)
	dc := NewDeviceContext(1, dev, testShader, opts)
	dc.QueueObtained(testQueue, 0, 0)
	return dc
}

// bindImages runs the count query followed by the array query, the way a
// swapchain is reported.
func bindImages(t *testing.T, dc *DeviceContext, images []Image) {
	t.Helper()
	if err := dc.SwapchainImagesQueried(uint32(len(images)), nil); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if err := dc.SwapchainImagesQueried(uint32(len(images)), images); err != nil {
		t.Fatalf("image query: %v", err)
	}
}

func present(t *testing.T, dc *DeviceContext, index uint32) PresentResult {
	t.Helper()
	res, err := dc.Present(testQueue, PresentRequest{
		ImageIndices:   []uint32{index},
		WaitSemaphores: appSemaphores,
	})
	if err != nil {
		t.Fatalf("present on %d: %v", index, err)
	}
	if !res.Injected {
		t.Fatalf("present on %d was not stamped", index)
	}
	return res
}
