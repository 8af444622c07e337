// Package visualizer animates the bar display shown while recording.
package visualizer

import (
	"math/rand/v2"
	"strings"
	"sync"
)

const (
	// Floor is the resting bar height.
	Floor = 0.05
	ease  = 0.35
	decay = 0.8
)

var blocks = []rune(" ▁▂▃▄▅▆▇█")

// Bars holds N bar heights in [Floor,1]. It is safe for concurrent use.
type Bars struct {
	mu      sync.Mutex
	heights []float64
	targets []float64
	level   float64
	rng     *rand.Rand
}

// New returns n bars at the floor. A nil rng uses a time-seeded source.
func New(n int, rng *rand.Rand) *Bars {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	b := &Bars{
		heights: make([]float64, n),
		targets: make([]float64, n),
		rng:     rng,
	}
	for i := range b.heights {
		b.heights[i] = Floor
		b.targets[i] = Floor
	}
	return b
}

// Feed sets the current input level in [0,1]; it scales the random targets
// picked on the next Step.
func (b *Bars) Feed(level float64) {
	b.mu.Lock()
	b.level = min(max(level, 0), 1)
	b.mu.Unlock()
}

// Step advances the animation one frame. Recording moves each bar toward a
// fresh random target, paused freezes, idle decays toward the floor.
func (b *Bars) Step(recording, paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case recording && paused:
		return
	case recording:
		// Without a level feed the bars still move.
		scale := 0.3 + 0.7*max(b.level, 0.4)
		for i := range b.heights {
			b.targets[i] = Floor + (1-Floor)*b.rng.Float64()*scale
			b.heights[i] += (b.targets[i] - b.heights[i]) * ease
		}
	default:
		b.level = 0
		for i := range b.heights {
			b.heights[i] = Floor + (b.heights[i]-Floor)*decay
			b.targets[i] = Floor
		}
	}
}

// Heights returns a copy of the bar heights.
func (b *Bars) Heights() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float64, len(b.heights))
	copy(out, b.heights)
	return out
}

// String renders the bars as a single row of block characters.
func (b *Bars) String() string {
	var sb strings.Builder
	for _, h := range b.Heights() {
		i := int(h * float64(len(blocks)-1))
		sb.WriteRune(blocks[min(max(i, 0), len(blocks)-1)])
	}
	return sb.String()
}
