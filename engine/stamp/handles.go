package stamp

// GPU object handles as seen by the stamp core. They carry the raw 64-bit
// handle value of the underlying API object; zero is the null handle.
type (
	Image               uint64
	ImageView           uint64
	DescriptorSet       uint64
	DescriptorPool      uint64
	DescriptorSetLayout uint64
	CommandPool         uint64
	CommandBuffer       uint64
	Semaphore           uint64
	Fence               uint64
	Queue               uint64
	ShaderModule        uint64
	PipelineLayout      uint64
	Pipeline            uint64
)

// ImageLayout names the layouts the stamp pass moves a presentable image through.
type ImageLayout int

const (
	ImageLayoutPresentSrc ImageLayout = iota
	ImageLayoutGeneral
)

func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutPresentSrc:
		return "present_src"
	case ImageLayoutGeneral:
		return "general"
	default:
		return "unknown"
	}
}

// PipelineStage is the destination stage the injected submission uses for
// every application wait semaphore.
type PipelineStage int

const (
	PipelineStageBottomOfPipe PipelineStage = iota
	PipelineStageTopOfPipe
	PipelineStageComputeShader
	PipelineStageAllCommands
)

func (s PipelineStage) String() string {
	switch s {
	case PipelineStageBottomOfPipe:
		return "bottom_of_pipe"
	case PipelineStageTopOfPipe:
		return "top_of_pipe"
	case PipelineStageComputeShader:
		return "compute_shader"
	case PipelineStageAllCommands:
		return "all_commands"
	default:
		return "unknown"
	}
}

// ParsePipelineStage is the inverse of PipelineStage.String.
func ParsePipelineStage(name string) (PipelineStage, bool) {
	for _, s := range []PipelineStage{
		PipelineStageBottomOfPipe,
		PipelineStageTopOfPipe,
		PipelineStageComputeShader,
		PipelineStageAllCommands,
	} {
		if s.String() == name {
			return s, true
		}
	}
	return PipelineStageBottomOfPipe, false
}
