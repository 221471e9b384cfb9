package stamp

import (
	"fmt"

	"github.com/spaghettifunk/framestamp/engine/core"
)

// PipelineFactory owns the compute pipeline used to stamp output images.
// It is built at most once per device.
type PipelineFactory struct {
	ShaderModule        ShaderModule
	DescriptorPool      DescriptorPool
	DescriptorSetLayout DescriptorSetLayout
	PipelineLayout      PipelineLayout
	Pipeline            Pipeline
}

// Ready reports whether Ensure completed successfully.
func (pf *PipelineFactory) Ready() bool {
	return pf.Pipeline != 0
}

// Ensure builds the shader module, descriptor pool, set layout, pipeline
// layout and compute pipeline, in that order. Once the pipeline exists the
// call is a no-op. On failure every object created by this call is released
// again and the error is returned; nothing is retried.
func (pf *PipelineFactory) Ensure(dev Device, loadShader ShaderLoader, maxSlots uint32) (err error) {
	if pf.Ready() {
		return nil
	}

	defer func() {
		if err != nil {
			pf.Release(dev)
		}
	}()

	code, err := loadShader()
	if err != nil {
		return fmt.Errorf("load stamp shader: %w", err)
	}
	if pf.ShaderModule, err = dev.CreateShaderModule(code); err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}
	if pf.DescriptorPool, err = dev.CreateDescriptorPool(maxSlots); err != nil {
		return fmt.Errorf("create descriptor pool: %w", err)
	}
	if pf.DescriptorSetLayout, err = dev.CreateDescriptorSetLayout(); err != nil {
		return fmt.Errorf("create descriptor set layout: %w", err)
	}
	if pf.PipelineLayout, err = dev.CreatePipelineLayout(pf.DescriptorSetLayout, PushConstantSize); err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	if pf.Pipeline, err = dev.CreateComputePipeline(pf.PipelineLayout, pf.ShaderModule, EntryPoint); err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}

	core.LogDebug("stamp pipeline created (descriptor capacity %d)", maxSlots)
	return nil
}

// releasePools destroys the descriptor pool and set layout. Descriptor sets
// allocated from the pool go with it.
func (pf *PipelineFactory) releasePools(dev Device) {
	if pf.DescriptorPool != 0 {
		dev.DestroyDescriptorPool(pf.DescriptorPool)
		pf.DescriptorPool = 0
	}
	if pf.DescriptorSetLayout != 0 {
		dev.DestroyDescriptorSetLayout(pf.DescriptorSetLayout)
		pf.DescriptorSetLayout = 0
	}
}

// releasePipeline destroys the pipeline, its layout and the shader module.
func (pf *PipelineFactory) releasePipeline(dev Device) {
	if pf.Pipeline != 0 {
		dev.DestroyPipeline(pf.Pipeline)
		pf.Pipeline = 0
	}
	if pf.PipelineLayout != 0 {
		dev.DestroyPipelineLayout(pf.PipelineLayout)
		pf.PipelineLayout = 0
	}
	if pf.ShaderModule != 0 {
		dev.DestroyShaderModule(pf.ShaderModule)
		pf.ShaderModule = 0
	}
}

// Release destroys everything the factory owns.
func (pf *PipelineFactory) Release(dev Device) {
	pf.releasePools(dev)
	pf.releasePipeline(dev)
}
