package vulkan

import vk "github.com/goki/vulkan"

// The stamp pipeline uses one descriptor set with a single storage image at
// binding 0, visible to the compute stage.
const stampImageBinding uint32 = 0

func createDescriptorPool(device vk.Device, allocator *vk.AllocationCallbacks, maxSets uint32) (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{{
		Type:            vk.DescriptorTypeStorageImage,
		DescriptorCount: maxSets,
	}}
	createInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if err := resultError("vkCreateDescriptorPool", vk.CreateDescriptorPool(device, &createInfo, allocator, &pool)); err != nil {
		return nil, err
	}
	return pool, nil
}

func createStorageImageSetLayout(device vk.Device, allocator *vk.AllocationCallbacks) (vk.DescriptorSetLayout, error) {
	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         stampImageBinding,
		DescriptorType:  vk.DescriptorTypeStorageImage,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
	}}
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if err := resultError("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(device, &createInfo, allocator, &layout)); err != nil {
		return nil, err
	}
	return layout, nil
}

func allocateDescriptorSet(device vk.Device, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	if err := resultError("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(device, &allocateInfo, &set)); err != nil {
		return nil, err
	}
	return set, nil
}

// writeStorageImage points the storage image binding of set at view. The
// image is in GENERAL layout while the shader runs.
func writeStorageImage(device vk.Device, set vk.DescriptorSet, view vk.ImageView) {
	writes := []vk.WriteDescriptorSet{{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      stampImageBinding,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageImage,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   view,
			ImageLayout: vk.ImageLayoutGeneral,
		}},
	}}
	vk.UpdateDescriptorSets(device, uint32(len(writes)), writes, 0, nil)
}
