package stamp

import "testing"

func TestFrameCounter(t *testing.T) {
	var fc FrameCounter
	if fc.Current() != 0 {
		t.Fatalf("initial value = %d", fc.Current())
	}
	for i := uint32(1); i <= 40; i++ {
		want := i % FrameModulus
		if got := fc.Next(); got != want {
			t.Fatalf("Next #%d = %d, want %d", i, got, want)
		}
		if fc.Current() != want {
			t.Fatalf("Current after #%d = %d, want %d", i, fc.Current(), want)
		}
	}
}

func TestQueueIndexMap(t *testing.T) {
	m := make(QueueIndexMap)
	m[0x10] = QueueInfo{Family: 2, Index: 1}

	if family, ok := m.Family(0x10); !ok || family != 2 {
		t.Errorf("Family(0x10) = %d, %t", family, ok)
	}
	if family, ok := m.Family(0x20); ok || family != 0 {
		t.Errorf("Family(0x20) = %d, %t", family, ok)
	}
}

func TestFamilySupport(t *testing.T) {
	m := FamilySupport{0: false, 1: true}
	for family, want := range map[uint32]bool{0: false, 1: true, 7: true} {
		if got := m.Compute(family); got != want {
			t.Errorf("Compute(%d) = %t, want %t", family, got, want)
		}
	}
}

func TestDispatchGrid(t *testing.T) {
	tests := []struct {
		width, height uint32
		x, y          uint32
	}{
		{width: 128, height: 1440, x: 8, y: 90},
		{width: 1, height: 1, x: 1, y: 1},
		{width: 16, height: 17, x: 1, y: 2},
		{width: 1920, height: 1080, x: 120, y: 68},
	}
	for _, tt := range tests {
		opts := Options{TargetWidth: tt.width, TargetHeight: tt.height}
		x, y, z := DispatchGrid(opts)
		if x != tt.x || y != tt.y || z != 1 {
			t.Errorf("DispatchGrid(%dx%d) = (%d, %d, %d), want (%d, %d, 1)", tt.width, tt.height, x, y, z, tt.x, tt.y)
		}
	}
}

func TestPipelineStageNames(t *testing.T) {
	for _, s := range []PipelineStage{
		PipelineStageBottomOfPipe,
		PipelineStageTopOfPipe,
		PipelineStageComputeShader,
		PipelineStageAllCommands,
	} {
		got, ok := ParsePipelineStage(s.String())
		if !ok || got != s {
			t.Errorf("ParsePipelineStage(%q) = %v, %t", s.String(), got, ok)
		}
	}
	if _, ok := ParsePipelineStage("fragment_shader"); ok {
		t.Error("unknown stage accepted")
	}
	if got := PipelineStage(42).String(); got != "unknown" {
		t.Errorf("PipelineStage(42) = %q", got)
	}
}

func TestStateNames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{SlotStateUnarmed.String(), "unarmed"},
		{SlotStateIdle.String(), "idle"},
		{SlotStateRecording.String(), "recording"},
		{SlotStateSubmitted.String(), "submitted"},
		{SlotStateDisabled.String(), "disabled"},
		{SlotState(9).String(), "unknown"},
		{ImageLayoutPresentSrc.String(), "present_src"},
		{ImageLayoutGeneral.String(), "general"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.MaxSlots != 10 || opts.TargetWidth != 128 || opts.TargetHeight != 1440 {
		t.Errorf("defaults = %+v", opts)
	}
	if opts.FenceTimeout != 0 || opts.WaitStage != PipelineStageBottomOfPipe || !opts.LayoutTransitions {
		t.Errorf("defaults = %+v", opts)
	}
}
