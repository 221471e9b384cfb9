package testbed

import (
	"sort"
	"time"

	"github.com/spaghettifunk/framestamp/engine"
	"github.com/spaghettifunk/framestamp/engine/core"
)

const statsInterval = 2 * time.Second

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	sinceStats time.Duration
}

func NewTestGame(configPath string, debug bool) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartPosX:   100,
				StartPosY:   100,
				StartWidth:  1280,
				StartHeight: 720,
				Name:        "framestamp testbed",
				ConfigPath:  configPath,
				Debug:       debug,
			},
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogInfo("testbed initialized, stamping presents through the layer")
	return nil
}

// Update logs the layer counters every statsInterval.
func (g *TestGame) Update(deltaTime float64) error {
	s := g.state()
	s.sinceStats += time.Duration(deltaTime * float64(time.Second))
	if s.sinceStats < statsInterval {
		return nil
	}
	s.sinceStats = 0
	g.logStats()
	return nil
}

func (g *TestGame) OnResize(width, height uint32) error {
	s := g.state()
	s.width = width
	s.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	g.logStats()
	return nil
}

func (g *TestGame) logStats() {
	if g.Layer == nil {
		return
	}
	stats := g.Layer.Stats()
	ids := make([]uint32, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		st := stats[id]
		core.LogInfo("device %d: %d presents, %d stamped, %d skipped, frame %d, %d slots, %.2f ms, %.0f presents/s, disabled=%t",
			id, st.Presents, st.Injected, st.Skipped, st.Frame, st.Slots, st.AvgInterval, st.FPS, st.Disabled)
	}
}
