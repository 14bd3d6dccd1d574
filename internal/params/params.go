// Package params owns the two parallel parameter sets described in
// spec.md §3: the defaults established at startup, and the current set
// mutated by control requests and restored by RESET.
//
// Grounded on _examples/original_source/src/cwdaemon.c's file-scope
// current_* / default_* globals (e.g. current_speed, default_speed,
// current_tone, ...); Design Notes §9 asks the rewrite to encapsulate
// these globals in a single owned value instead, which is what Set does.
package params

import "fmt"

// SoundSystem is the sound backend tag from spec.md §3.
type SoundSystem byte

const (
	SoundNone SoundSystem = 'n'
	SoundConsole SoundSystem = 'c'
	SoundOSS SoundSystem = 'o'
	SoundALSA SoundSystem = 'a'
	SoundPulseAudio SoundSystem = 'p'
	SoundAutoselect SoundSystem = 's'
)

func ParseSoundSystem(b byte) (SoundSystem, bool) {
	switch SoundSystem(b) {
	case SoundNone, SoundConsole, SoundOSS, SoundALSA, SoundPulseAudio, SoundAutoselect:
		return SoundSystem(b), true
	default:
		return 0, false
	}
}

// Library-accepted ranges, matching CWDAEMON_MORSE_SPEED_MIN/MAX and
// friends in _examples/original_source/src/cwdaemon.h.
const (
	SpeedMin = 4
	SpeedMax = 60

	ToneMin = 0
	ToneMax = 4000

	VolumeMin = 0
	VolumeMax = 100

	// User-facing weighting range is -50..50 (spec.md §3); the library
	// takes 20..80. WeightingUserMin/Max bound the request operand
	// (strictly between -51 and 51, per spec.md §4.1 WEIGHTING).
	WeightingUserMin = -50
	WeightingUserMax = 50
	weightingLibMin  = 20
	weightingLibMax  = 80

	PTTDelayMinUs = 0
	PTTDelayMaxUs = 50_000

	SpeedStepWPM = 2 // step used by the '+'/'-' inline markers (spec.md §4.2)
)

// Set is one complete parameter set: either "defaults" or "current".
type Set struct {
	SpeedWPM    int
	ToneHz      int
	VolumePct   int
	WeightingUser int // user units, -50..50
	PTTDelayUs  int
	Sound       SoundSystem
}

// DefaultSet returns the conservative factory defaults used when no CLI
// flag overrides them, matching cwdaemon.c's compiled-in defaults.
func DefaultSet() Set {
	return Set{
		SpeedWPM:      24,
		ToneHz:        800,
		VolumePct:     70,
		WeightingUser: 0,
		PTTDelayUs:    0,
		Sound:         SoundConsole,
	}
}

// WeightingToLibrary linearly maps the user-facing -50..50 range onto the
// library's 20..80 range, per spec.md §3.
func WeightingToLibrary(userUnits int) int {
	// -50 -> 20, 0 -> 50, 50 -> 80: a straight 1:0.6 + 50 affine map.
	return weightingLibMin + (userUnits-WeightingUserMin)*(weightingLibMax-weightingLibMin)/(WeightingUserMax-WeightingUserMin)
}

// Params bundles the defaults (fixed after startup) with the current,
// mutable set. It is owned by a single goroutine (the Event Loop); no
// internal locking is provided by design (see Design Notes §9: the
// rewrite marshals callback work back onto the owning goroutine rather
// than sharing this value across threads).
type Params struct {
	Defaults Set
	Current  Set
}

// New builds a Params whose Current starts out equal to Defaults.
func New(defaults Set) *Params {
	return &Params{Defaults: defaults, Current: defaults}
}

// Reset restores Current to Defaults, implementing the RESET request
// (spec.md §4.1 code '0') and testable property 5 (spec.md §8).
func (p *Params) Reset() {
	p.Current = p.Defaults
}

// SetSpeed applies a SPEED request if wpm is within range, matching
// spec.md §4.1 code '2'. Returns whether it was applied.
func (p *Params) SetSpeed(wpm int) bool {
	if wpm < SpeedMin || wpm > SpeedMax {
		return false
	}
	p.Current.SpeedWPM = wpm
	return true
}

// AdjustSpeed applies the repeated '+'/'-' inline markers (spec.md §4.2):
// steps is positive for '+', negative for '-'; the result is clamped to
// the library's accepted range.
func (p *Params) AdjustSpeed(steps int) {
	wpm := p.Current.SpeedWPM + steps*SpeedStepWPM
	if wpm < SpeedMin {
		wpm = SpeedMin
	}
	if wpm > SpeedMax {
		wpm = SpeedMax
	}
	p.Current.SpeedWPM = wpm
}

// SetTone applies a TONE request (spec.md §4.1 code '3'). hz == 0 silences
// the sidetone (sets volume to 0); otherwise, if in range, updates the
// tone and restores the default volume — the "surprising coupling" noted
// in Design Notes §9, preserved per DESIGN.md's Open Question decision.
func (p *Params) SetTone(hz int) bool {
	if hz == 0 {
		p.Current.VolumePct = 0
		return true
	}
	if hz < ToneMin || hz > ToneMax {
		return false
	}
	p.Current.ToneHz = hz
	p.Current.VolumePct = p.Defaults.VolumePct
	return true
}

// SetVolume applies a VOLUME request (spec.md §4.1 code 'g').
func (p *Params) SetVolume(pct int) bool {
	if pct < VolumeMin || pct > VolumeMax {
		return false
	}
	p.Current.VolumePct = pct
	return true
}

// SetWeighting applies a WEIGHTING request (spec.md §4.1 code '7'); the
// operand must be strictly between -51 and 51.
func (p *Params) SetWeighting(userUnits int) bool {
	if userUnits <= -51 || userUnits >= 51 {
		return false
	}
	p.Current.WeightingUser = userUnits
	return true
}

// SetPTTDelay applies a TX_DELAY request (spec.md §4.1 code 'd'). Values
// outside 0..50ms clamp to 50ms, matching the error taxonomy in §7
// ("Clamped request").
func (p *Params) SetPTTDelay(ms int) (applied int, clamped bool) {
	us := ms * 1000
	if us < PTTDelayMinUs || us > PTTDelayMaxUs {
		p.Current.PTTDelayUs = PTTDelayMaxUs
		return PTTDelayMaxUs, true
	}
	p.Current.PTTDelayUs = us
	return us, false
}

// SetSoundSystem applies a SOUND_SYSTEM request (spec.md §4.1 code 'f').
func (p *Params) SetSoundSystem(tag byte) error {
	s, ok := ParseSoundSystem(tag)
	if !ok {
		return fmt.Errorf("unknown sound system tag %q", tag)
	}
	p.Current.Sound = s
	return nil
}
