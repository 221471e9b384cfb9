package stamp

import "time"

const (
	// FrameModulus is the length of the rotating frame-index sequence.
	FrameModulus uint32 = 16
	// WorkgroupSize is the local size of the stamp shader in x and y.
	WorkgroupSize uint32 = 16
	// PushConstantSize is the byte size of the frame-index push constant.
	PushConstantSize uint32 = 4
	// EntryPoint of the stamp shader.
	EntryPoint = "main"

	DefaultMaxSlots     uint32 = 10
	DefaultTargetWidth  uint32 = 128
	DefaultTargetHeight uint32 = 1440
)

// Options tune one device context.
type Options struct {
	// MaxSlots sizes the descriptor pool; swapchains with more images are rejected.
	MaxSlots uint32
	// TargetWidth and TargetHeight give the region covered by the dispatch grid.
	TargetWidth  uint32
	TargetHeight uint32
	// FenceTimeout bounds the per-slot fence wait. Zero waits forever.
	FenceTimeout time.Duration
	// WaitStage is used for every application wait semaphore.
	WaitStage PipelineStage
	// LayoutTransitions wraps the dispatch in PRESENT_SRC <-> GENERAL barriers.
	LayoutTransitions bool
	// MetricsInterval logs present statistics every N presents. Zero disables it.
	MetricsInterval uint64
}

func DefaultOptions() Options {
	return Options{
		MaxSlots:          DefaultMaxSlots,
		TargetWidth:       DefaultTargetWidth,
		TargetHeight:      DefaultTargetHeight,
		FenceTimeout:      0,
		WaitStage:         PipelineStageBottomOfPipe,
		LayoutTransitions: true,
	}
}

// ShaderLoader returns the SPIR-V words of the stamp compute program.
type ShaderLoader func() ([]uint32, error)
