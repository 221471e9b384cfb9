package vulkan

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framestamp/engine/core"
	"github.com/spaghettifunk/framestamp/engine/stamp"
)

func TestResultOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want vk.Result
	}{
		{name: "nil", err: nil, want: vk.Success},
		{name: "result error", err: &ResultError{Op: "vkQueueSubmit", Result: vk.ErrorDeviceLost}, want: vk.ErrorDeviceLost},
		{name: "wrapped result error", err: &stamp.SubmitError{Slot: 2, Err: resultError("vkQueueSubmit", vk.ErrorOutOfDeviceMemory)}, want: vk.ErrorOutOfDeviceMemory},
		{name: "fence timeout", err: fmt.Errorf("slot 0: %w", core.ErrFenceTimeout), want: vk.Timeout},
		{name: "destroyed", err: core.ErrDeviceDestroyed, want: vk.ErrorDeviceLost},
		{name: "capacity", err: core.ErrSlotCapacity, want: vk.ErrorOutOfPoolMemory},
		{name: "other", err: errors.New("boom"), want: vk.ErrorUnknown},
	}
	for _, tt := range tests {
		if got := ResultOf(tt.err); got != tt.want {
			t.Errorf("%s: ResultOf = %s, want %s", tt.name, VulkanResultString(got, false), VulkanResultString(tt.want, false))
		}
	}
}

func TestResultError(t *testing.T) {
	if err := resultError("vkCreateFence", vk.Success); err != nil {
		t.Errorf("success mapped to %v", err)
	}

	timeout := resultError("vkWaitForFences", vk.Timeout)
	if !errors.Is(timeout, core.ErrFenceTimeout) {
		t.Error("VK_TIMEOUT does not match ErrFenceTimeout")
	}
	if got := timeout.Error(); got != "vkWaitForFences: VK_TIMEOUT" {
		t.Errorf("Error() = %q", got)
	}
	if errors.Is(resultError("vkWaitForFences", vk.ErrorDeviceLost), core.ErrFenceTimeout) {
		t.Error("device loss matches ErrFenceTimeout")
	}
}

func TestVulkanResultString(t *testing.T) {
	if got := VulkanResultString(vk.ErrorOutOfDate, false); got != "VK_ERROR_OUT_OF_DATE_KHR" {
		t.Errorf("short name = %q", got)
	}
	if got := VulkanResultString(vk.Success, true); got != "VK_SUCCESS Command successfully completed" {
		t.Errorf("extended name = %q", got)
	}
	if got := VulkanResultString(vk.Result(12345), false); got != "VkResult(12345)" {
		t.Errorf("unknown result = %q", got)
	}
	if !VulkanResultIsSuccess(vk.Suboptimal) || VulkanResultIsSuccess(vk.ErrorDeviceLost) {
		t.Error("success classification wrong")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name string
		want vk.Format
		ok   bool
	}{
		{name: "B8G8R8A8_UNORM", want: vk.FormatB8g8r8a8Unorm, ok: true},
		{name: " vk_format_r8g8b8a8_srgb ", want: vk.FormatR8g8b8a8Srgb, ok: true},
		{name: "D32_SFLOAT", ok: false},
	}
	for _, tt := range tests {
		got, ok := ParseFormat(tt.name)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("ParseFormat(%q) = %d, %t", tt.name, got, ok)
		}
	}
}

func TestStampWord(t *testing.T) {
	tests := []struct {
		format vk.Format
		want   uint32
	}{
		{format: vk.FormatB8g8r8a8Unorm, want: 5 | SwapRedBlueBit},
		{format: vk.FormatB8g8r8a8Srgb, want: 5 | SwapRedBlueBit},
		{format: vk.FormatR8g8b8a8Unorm, want: 5},
		{format: vk.FormatR8g8b8a8Srgb, want: 5},
	}
	for _, tt := range tests {
		if got := stampWord(5, tt.format); got != tt.want {
			t.Errorf("stampWord(5, %d) = %#x, want %#x", tt.format, got, tt.want)
		}
	}
	if stampWord(stamp.FrameModulus-1, vk.FormatB8g8r8a8Unorm)&0xff != stamp.FrameModulus-1 {
		t.Error("swap bit overlaps the frame index")
	}
}

func TestComputeFamilies(t *testing.T) {
	families := []vk.QueueFamilyProperties{
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit)},
		{QueueFlags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueComputeBit | vk.QueueTransferBit)},
		{QueueFlags: vk.QueueFlags(vk.QueueTransferBit)},
		{QueueFlags: vk.QueueFlags(vk.QueueComputeBit)},
	}
	want := []bool{false, true, false, true}
	if got := ComputeFamilies(families); !slices.Equal(got, want) {
		t.Errorf("ComputeFamilies = %v, want %v", got, want)
	}
}

func TestTimeoutNanos(t *testing.T) {
	if got := timeoutNanos(0); got != math.MaxUint64 {
		t.Errorf("zero timeout = %d, want unbounded", got)
	}
	if got := timeoutNanos(5 * time.Millisecond); got != 5_000_000 {
		t.Errorf("5ms = %d ns", got)
	}
}

func TestVulkanSafeStrings(t *testing.T) {
	got := VulkanSafeStrings([]string{"VK_KHR_swapchain", "done\x00", ""})
	want := []string{"VK_KHR_swapchain\x00", "done\x00", "\x00"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%d: %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSemaphoreHandlesRoundTrip(t *testing.T) {
	handles := []stamp.Semaphore{0x1_0000_1000, 0x1_0000_2000}
	vks := semaphoresOf(handles)
	back := SemaphoreHandles(vks)
	for i := range handles {
		if back[i] != handles[i] {
			t.Errorf("%d: %#x, want %#x", i, back[i], handles[i])
		}
	}
	if ImageHandles(nil) != nil {
		t.Error("nil image list converted to non-nil")
	}
}
