// Package narration consumes the audio player's busy/idle signal and turns
// it into the gate the action engine honors. Only the signal is modeled
// here; playback itself lives outside the core.
package narration

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Gate tracks whether narration audio is playing. While it reports busy,
// the orchestrator sits in Blocked and no intent reaches the sync bridge.
type Gate struct {
	mu      sync.Mutex
	playing bool
	clipID  string
	updates chan bool
}

// NewGate creates an idle gate.
func NewGate() *Gate {
	return &Gate{updates: make(chan bool, 16)}
}

// Updates is the busy/idle stream for the session loop.
func (g *Gate) Updates() <-chan bool { return g.updates }

// Playing reports the current signal.
func (g *Gate) Playing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playing
}

// Started marks a narration clip as playing.
func (g *Gate) Started(clipID string) {
	g.set(true, clipID)
	log.Debug().Str("clip_id", clipID).Msg("narration started")
}

// Finished marks the clip as done.
func (g *Gate) Finished(clipID string) {
	g.set(false, clipID)
	log.Debug().Str("clip_id", clipID).Msg("narration finished")
}

// LoadFailed records a clip that could not be loaded. The failure is
// non-fatal: the gate reports idle so play is never permanently blocked.
func (g *Gate) LoadFailed(clipID string, err error) {
	log.Warn().Err(err).Str("clip_id", clipID).Msg("narration load failed, treating gate as idle")
	g.set(false, clipID)
}

func (g *Gate) set(playing bool, clipID string) {
	g.mu.Lock()
	changed := g.playing != playing
	g.playing = playing
	g.clipID = clipID
	g.mu.Unlock()
	if !changed {
		return
	}
	select {
	case g.updates <- playing:
	default:
		log.Warn().Msg("narration update channel full, dropping signal")
	}
}
