package vulkan

import (
	"strings"

	vk "github.com/goki/vulkan"
)

var formatNames = map[string]vk.Format{
	"B8G8R8A8_UNORM": vk.FormatB8g8r8a8Unorm,
	"B8G8R8A8_SRGB":  vk.FormatB8g8r8a8Srgb,
	"R8G8B8A8_UNORM": vk.FormatR8g8b8a8Unorm,
	"R8G8B8A8_SRGB":  vk.FormatR8g8b8a8Srgb,
}

// ParseFormat maps a format name such as "B8G8R8A8_UNORM" to its Vulkan value.
// The VK_FORMAT_ prefix is optional.
func ParseFormat(name string) (vk.Format, bool) {
	name = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "VK_FORMAT_")
	f, ok := formatNames[name]
	return f, ok
}

// SwapRedBlueBit is set in the pushed stamp word when the view stores blue in
// the first channel. The stamp shader writes an rgba8 image and swizzles its
// palette colour when the bit is set.
const SwapRedBlueBit uint32 = 1 << 8

// SwapsRedBlue reports whether views of format hold blue in the first channel.
func SwapsRedBlue(format vk.Format) bool {
	return format == vk.FormatB8g8r8a8Unorm || format == vk.FormatB8g8r8a8Srgb
}

// stampWord is the push constant value for frame on a view of format.
func stampWord(frame uint32, format vk.Format) uint32 {
	if SwapsRedBlue(format) {
		return frame | SwapRedBlueBit
	}
	return frame
}

var colorSubresourceRange = vk.ImageSubresourceRange{
	AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
	BaseMipLevel:   0,
	LevelCount:     1,
	BaseArrayLayer: 0,
	LayerCount:     1,
}

func createImageView(device vk.Device, allocator *vk.AllocationCallbacks, image vk.Image, format vk.Format) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorSubresourceRange,
	}
	var view vk.ImageView
	if err := resultError("vkCreateImageView", vk.CreateImageView(device, &viewInfo, allocator, &view)); err != nil {
		return nil, err
	}
	return view, nil
}

type layoutTransition struct {
	srcAccess vk.AccessFlagBits
	dstAccess vk.AccessFlagBits
	srcStage  vk.PipelineStageFlagBits
	dstStage  vk.PipelineStageFlagBits
}

type layoutPair struct {
	from, to vk.ImageLayout
}

var layoutTransitions = map[layoutPair]layoutTransition{
	// Ahead of the stamp dispatch. The wait semaphores already order the
	// application's rendering; the barrier only changes the layout.
	{vk.ImageLayoutPresentSrc, vk.ImageLayoutGeneral}: {
		srcAccess: 0,
		dstAccess: vk.AccessShaderWriteBit,
		srcStage:  vk.PipelineStageAllCommandsBit,
		dstStage:  vk.PipelineStageComputeShaderBit,
	},
	{vk.ImageLayoutGeneral, vk.ImageLayoutPresentSrc}: {
		srcAccess: vk.AccessShaderWriteBit,
		dstAccess: 0,
		srcStage:  vk.PipelineStageComputeShaderBit,
		dstStage:  vk.PipelineStageBottomOfPipeBit,
	},
}

// cmdLayoutBarrier records a colour image layout transition. Unknown pairs
// fall back to a full ALL_COMMANDS barrier.
func cmdLayoutBarrier(cb vk.CommandBuffer, image vk.Image, from, to vk.ImageLayout) {
	t, ok := layoutTransitions[layoutPair{from, to}]
	if !ok {
		t = layoutTransition{
			srcAccess: vk.AccessMemoryWriteBit,
			dstAccess: vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit,
			srcStage:  vk.PipelineStageAllCommandsBit,
			dstStage:  vk.PipelineStageAllCommandsBit,
		}
	}
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(t.srcAccess),
		DstAccessMask:       vk.AccessFlags(t.dstAccess),
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    colorSubresourceRange,
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(t.srcStage), vk.PipelineStageFlags(t.dstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}
