package vad

import "time"

// Sensitivity sets both detection thresholds together. The pairs are fixed;
// thresholds are never tuned independently.
type Sensitivity int

const (
	SensitivityLow Sensitivity = iota
	SensitivityMedium
	SensitivityHigh
)

// Paired talk/silence thresholds in dBFS per preset.
func (s Sensitivity) thresholds() (talk, silence float64) {
	switch s {
	case SensitivityLow:
		return -40, -48
	case SensitivityHigh:
		return -30, -42
	default:
		return -34, -44
	}
}

func ParseSensitivity(s string) Sensitivity {
	switch s {
	case "low":
		return SensitivityLow
	case "high":
		return SensitivityHigh
	default:
		return SensitivityMedium
	}
}

// DefaultSilenceHold is how long the level must stay below the silence
// threshold before a Talking -> Silent transition fires.
const DefaultSilenceHold = 500 * time.Millisecond

// Detector is the dual-threshold hysteresis state machine. Silent -> Talking
// fires the moment the level exceeds the talk threshold; Talking -> Silent
// only after the level has stayed below the (lower) silence threshold for the
// full hold duration. Levels between the two thresholds change nothing.
type Detector struct {
	talkThreshold    float64
	silenceThreshold float64
	hold             time.Duration

	talking    bool
	belowSince time.Time
}

func NewDetector(s Sensitivity, hold time.Duration) *Detector {
	if hold <= 0 {
		hold = DefaultSilenceHold
	}
	d := &Detector{hold: hold}
	d.SetSensitivity(s)
	return d
}

func (d *Detector) SetSensitivity(s Sensitivity) {
	d.talkThreshold, d.silenceThreshold = s.thresholds()
}

func (d *Detector) Talking() bool { return d.talking }

// Process feeds one level sample. It returns whether a transition fired and
// the current state.
func (d *Detector) Process(levelDb float64, now time.Time) (changed bool, talking bool) {
	switch {
	case levelDb > d.talkThreshold:
		d.belowSince = time.Time{}
		if !d.talking {
			d.talking = true
			return true, true
		}
	case levelDb < d.silenceThreshold:
		if !d.talking {
			d.belowSince = time.Time{}
			break
		}
		if d.belowSince.IsZero() {
			d.belowSince = now
			break
		}
		if now.Sub(d.belowSince) >= d.hold {
			d.talking = false
			d.belowSince = time.Time{}
			return true, false
		}
	default:
		// Between the thresholds: no transition either way, and the
		// continuous-silence clock resets.
		d.belowSince = time.Time{}
	}
	return false, d.talking
}
