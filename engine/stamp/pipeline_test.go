package stamp

import (
	"errors"
	"slices"
	"testing"
)

func TestEnsureBuildsPipelineOnceInOrder(t *testing.T) {
	dev := newFakeDevice()
	var pf PipelineFactory
	loads := 0
	loader := func() ([]uint32, error) {
		loads++
		return testShader()
	}

	for i := 0; i < 3; i++ {
		if err := pf.Ensure(dev, loader, 4); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if loads != 1 {
		t.Errorf("shader loaded %d times, want 1", loads)
	}
	if !pf.Ready() {
		t.Fatal("pipeline not ready")
	}

	var got []string
	for _, c := range dev.calls {
		got = append(got, c.op)
	}
	want := []string{"CreateShaderModule", "CreateDescriptorPool", "CreateDescriptorSetLayout",
		"CreatePipelineLayout", "CreateComputePipeline"}
	if !slices.Equal(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestEnsureFailureReleasesPartialObjects(t *testing.T) {
	tests := []struct {
		failing string
		created int
	}{
		{failing: "CreateShaderModule", created: 0},
		{failing: "CreateDescriptorPool", created: 1},
		{failing: "CreateDescriptorSetLayout", created: 2},
		{failing: "CreatePipelineLayout", created: 3},
		{failing: "CreateComputePipeline", created: 4},
	}

	for _, tt := range tests {
		t.Run(tt.failing, func(t *testing.T) {
			dev := newFakeDevice()
			boom := errors.New("boom")
			dev.fail[tt.failing] = boom

			var pf PipelineFactory
			err := pf.Ensure(dev, testShader, 4)
			if !errors.Is(err, boom) {
				t.Fatalf("error = %v, want %v", err, boom)
			}
			if pf.Ready() {
				t.Error("pipeline ready after a failure")
			}
			if len(dev.created) != tt.created {
				t.Errorf("%d objects created, want %d", len(dev.created), tt.created)
			}
			for h, kind := range dev.created {
				if dev.destroyed[h] != 1 {
					t.Errorf("%s %#x released %d times", kind, h, dev.destroyed[h])
				}
			}
			if pf != (PipelineFactory{}) {
				t.Errorf("factory keeps handles after a failure: %+v", pf)
			}
		})
	}
}

func TestEnsureShaderLoadFailure(t *testing.T) {
	dev := newFakeDevice()
	missing := errors.New("missing file")

	var pf PipelineFactory
	err := pf.Ensure(dev, func() ([]uint32, error) { return nil, missing }, 4)
	if !errors.Is(err, missing) {
		t.Fatalf("error = %v, want %v", err, missing)
	}
	if len(dev.calls) != 0 {
		t.Errorf("device touched: %v", dev.calls)
	}
}
