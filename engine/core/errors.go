package core

import (
	"errors"
)

var (
	ErrPipelineNotReady    = errors.New("stamp pipeline has not been built")
	ErrSlotOutOfRange      = errors.New("image index has no output slot")
	ErrSlotCapacity        = errors.New("swapchain image count exceeds slot capacity")
	ErrSlotDisabled        = errors.New("output slot disabled after a previous failure")
	ErrContextDisabled     = errors.New("injection disabled for this device")
	ErrDeviceDestroyed     = errors.New("device context already destroyed")
	ErrFenceTimeout        = errors.New("fence wait timed out")
	ErrQueueFamilyMismatch = errors.New("present queue family differs from the stamp command pool family")
	ErrUnknownDevice       = errors.New("no context registered for device")
	ErrQueueNoCompute      = errors.New("queue family cannot run compute work")
)
