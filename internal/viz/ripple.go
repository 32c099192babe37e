package viz

// SilenceThreshold is the loudness floor below which no ripples spawn.
const SilenceThreshold = 0.05

const (
	baseSpeed  = 1.0
	speedScale = 4.0
	// A ripple counts as still expanding until it clears this radius;
	// the next one waits for it.
	spawnSpacing = 14.0
)

// Ripple is a single expanding ring in the call visualizer.
type Ripple struct {
	Radius float64
	Speed  float64
	Alpha  float64
}

// RippleEngine turns per-tick loudness into a set of concentric ripples.
// All state is per-call and discarded when the engine is dropped.
type RippleEngine struct {
	maxRadius float64
	ripples   []Ripple
}

func NewRippleEngine(maxRadius float64) *RippleEngine {
	return &RippleEngine{maxRadius: maxRadius}
}

// Intensity reduces a byte-frequency snapshot to a loudness in [0, 1].
func Intensity(frequency []byte) float64 {
	if len(frequency) == 0 {
		return 0
	}
	var sum int
	for _, v := range frequency {
		sum += int(v)
	}
	return float64(sum) / float64(len(frequency)) / 255.0
}

// Advance moves every ripple outward by one tick and spawns a new one when
// the intensity is above the silence threshold and no ripple is still
// expanding near the center. Ripples past the maximum radius are retired.
func (e *RippleEngine) Advance(intensity float64) {
	for i := range e.ripples {
		speed := e.ripples[i].Speed * (1 + intensity*speedScale)
		e.ripples[i].Radius += speed
		e.ripples[i].Alpha = 1 - e.ripples[i].Radius/e.maxRadius
	}

	kept := e.ripples[:0]
	for _, r := range e.ripples {
		if r.Radius < e.maxRadius {
			kept = append(kept, r)
		}
	}
	e.ripples = kept

	if intensity >= SilenceThreshold && !e.expanding() {
		e.ripples = append(e.ripples, Ripple{
			Radius: 0,
			Speed:  baseSpeed + intensity*speedScale,
			Alpha:  1,
		})
	}
}

func (e *RippleEngine) expanding() bool {
	for _, r := range e.ripples {
		if r.Radius < spawnSpacing {
			return true
		}
	}
	return false
}

// Ripples returns the live rings, innermost last.
func (e *RippleEngine) Ripples() []Ripple {
	out := make([]Ripple, len(e.ripples))
	copy(out, e.ripples)
	return out
}
