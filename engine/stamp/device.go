package stamp

import "time"

// Submission describes the single batch the scheduler hands to a queue.
type Submission struct {
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore
}

// Device is the slice of the graphics API the stamp core drives. Every
// creation call returns an error instead of a status code; implementations
// wrap the underlying status so callers can recover it.
type Device interface {
	// Pipeline objects.
	CreateShaderModule(code []uint32) (ShaderModule, error)
	CreateDescriptorPool(maxSets uint32) (DescriptorPool, error)
	CreateDescriptorSetLayout() (DescriptorSetLayout, error)
	CreatePipelineLayout(setLayout DescriptorSetLayout, pushConstantSize uint32) (PipelineLayout, error)
	CreateComputePipeline(layout PipelineLayout, module ShaderModule, entryPoint string) (Pipeline, error)

	// Per-slot binding objects.
	CreateImageView(image Image) (ImageView, error)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSet(set DescriptorSet, view ImageView)

	// Command submission and synchronisation.
	CreateCommandPool(queueFamily uint32) (CommandPool, error)
	AllocateCommandBuffer(pool CommandPool) (CommandBuffer, error)
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)
	// WaitForFence blocks until fence is signaled. A zero timeout waits forever.
	WaitForFence(fence Fence, timeout time.Duration) error
	ResetFence(fence Fence) error
	QueueSubmit(queue Queue, submit Submission, fence Fence) error

	// Recording.
	BeginCommandBuffer(cb CommandBuffer) error
	CmdImageBarrier(cb CommandBuffer, image Image, from, to ImageLayout)
	CmdBindComputePipeline(cb CommandBuffer, pipeline Pipeline)
	CmdBindDescriptorSet(cb CommandBuffer, layout PipelineLayout, set DescriptorSet)
	CmdPushConstant(cb CommandBuffer, layout PipelineLayout, value uint32)
	CmdDispatch(cb CommandBuffer, x, y, z uint32)
	EndCommandBuffer(cb CommandBuffer) error

	// Teardown.
	DestroyFence(fence Fence)
	DestroySemaphore(semaphore Semaphore)
	DestroyImageView(view ImageView)
	DestroyDescriptorPool(pool DescriptorPool)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	FreeCommandBuffers(pool CommandPool, buffers []CommandBuffer)
	DestroyCommandPool(pool CommandPool)
	DestroyPipeline(pipeline Pipeline)
	DestroyPipelineLayout(layout PipelineLayout)
	DestroyShaderModule(module ShaderModule)
}
