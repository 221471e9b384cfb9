package core

import (
	"time"

	"github.com/spaghettifunk/framestamp/engine/containers"
)

const AVG_COUNT int = 30

// PresentMetrics tracks host-side present cadence for one device. It is not
// safe for concurrent use; the owning context serialises access.
type PresentMetrics struct {
	clock     *Clock
	intervals *containers.RingQueue[float64]

	Presents uint64
	Injected uint64
	Skipped  uint64

	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64
}

func NewPresentMetrics(clock *Clock) *PresentMetrics {
	return &PresentMetrics{
		clock:     clock,
		intervals: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

// Present records one present call. injected tells whether the stamp pass
// ran for it.
func (m *PresentMetrics) Present(injected bool) {
	m.Presents++
	if injected {
		m.Injected++
	} else {
		m.Skipped++
	}

	if !m.clock.Started() {
		m.clock.Start()
		return
	}
	m.clock.Update()
	m.update(m.clock.Elapsed())
	m.clock.Start()
}

func (m *PresentMetrics) update(interval time.Duration) {
	frameMS := float64(interval) / float64(time.Millisecond)

	// Rolling average over the last AVG_COUNT intervals.
	m.intervals.Push(frameMS)
	sum := 0.0
	m.intervals.Each(func(v float64) { sum += v })
	m.MSavg = sum / float64(m.intervals.Len())

	// Presents per second.
	m.AccumulatedFrameMS += frameMS
	m.Frames++
	if m.AccumulatedFrameMS > 1000 {
		m.FPS = float64(m.Frames)
		m.AccumulatedFrameMS -= 1000
		m.Frames = 0
	}
}

func (m *PresentMetrics) FrameTime() float64 {
	return m.MSavg
}

func (m *PresentMetrics) Frame() (float64, float64) {
	return m.FPS, m.MSavg
}
