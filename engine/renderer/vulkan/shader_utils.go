package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// createShaderModule wraps a SPIR-V word stream. CodeSize is in bytes.
func createShaderModule(device vk.Device, allocator *vk.AllocationCallbacks, code []uint32) (vk.ShaderModule, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("empty SPIR-V module")
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if err := resultError("vkCreateShaderModule", vk.CreateShaderModule(device, &createInfo, allocator, &module)); err != nil {
		return nil, err
	}
	return module, nil
}
