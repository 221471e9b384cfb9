package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// createPipelineLayout builds a layout with one descriptor set and, when
// pushConstantSize is non-zero, one compute stage push constant range at
// offset 0.
func createPipelineLayout(device vk.Device, allocator *vk.AllocationCallbacks, setLayout vk.DescriptorSetLayout, pushConstantSize uint32) (vk.PipelineLayout, error) {
	createInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}
	if pushConstantSize > 0 {
		ranges := []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
			Offset:     0,
			Size:       pushConstantSize,
		}}
		createInfo.PushConstantRangeCount = uint32(len(ranges))
		createInfo.PPushConstantRanges = ranges
	}

	var layout vk.PipelineLayout
	if err := resultError("vkCreatePipelineLayout", vk.CreatePipelineLayout(device, &createInfo, allocator, &layout)); err != nil {
		return nil, err
	}
	return layout, nil
}

func createComputePipeline(device vk.Device, allocator *vk.AllocationCallbacks, layout vk.PipelineLayout, module vk.ShaderModule, entryPoint string) (vk.Pipeline, error) {
	createInfo := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: module,
			PName:  VulkanSafeString(entryPoint),
		},
		Layout:             layout,
		BasePipelineHandle: vk.NullPipeline,
		BasePipelineIndex:  -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	result := vk.CreateComputePipelines(device, vk.NullPipelineCache, 1, []vk.ComputePipelineCreateInfo{createInfo}, allocator, pipelines)
	if err := resultError("vkCreateComputePipelines", result); err != nil {
		return nil, err
	}
	if pipelines[0] == vk.NullPipeline {
		return nil, fmt.Errorf("vkCreateComputePipelines returned a null pipeline")
	}
	return pipelines[0], nil
}
