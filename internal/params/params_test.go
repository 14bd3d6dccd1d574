package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestResetRestoresDefaults(t *testing.T) {
	p := New(DefaultSet())
	require.True(t, p.SetSpeed(40))
	require.True(t, p.SetTone(600))
	require.True(t, p.SetVolume(10))

	p.Reset()

	assert.Equal(t, p.Defaults, p.Current, "RESET must restore every current parameter to its startup value")
}

func TestResetIsIdempotent(t *testing.T) {
	p := New(DefaultSet())
	p.SetSpeed(55)
	p.Reset()
	first := p.Current
	p.Reset()
	assert.Equal(t, first, p.Current)
}

func TestSetSpeedLastWriterWins(t *testing.T) {
	p := New(DefaultSet())
	require.True(t, p.SetSpeed(20))
	require.True(t, p.SetSpeed(35))
	assert.Equal(t, 35, p.Current.SpeedWPM)
}

func TestSetSpeedRejectsOutOfRange(t *testing.T) {
	p := New(DefaultSet())
	before := p.Current.SpeedWPM
	assert.False(t, p.SetSpeed(SpeedMax+1))
	assert.Equal(t, before, p.Current.SpeedWPM, "out-of-range SPEED must be ignored")
}

func TestSetToneZeroSilencesSidetone(t *testing.T) {
	p := New(DefaultSet())
	require.True(t, p.SetTone(0))
	assert.Equal(t, 0, p.Current.VolumePct)
}

func TestSetToneRestoresDefaultVolume(t *testing.T) {
	p := New(DefaultSet())
	p.Current.VolumePct = 5
	require.True(t, p.SetTone(900))
	assert.Equal(t, p.Defaults.VolumePct, p.Current.VolumePct)
}

func TestSetWeightingRejectsBoundary(t *testing.T) {
	p := New(DefaultSet())
	assert.False(t, p.SetWeighting(51))
	assert.False(t, p.SetWeighting(-51))
	assert.True(t, p.SetWeighting(50))
	assert.True(t, p.SetWeighting(-50))
}

func TestWeightingToLibraryMapsRange(t *testing.T) {
	assert.Equal(t, weightingLibMin, WeightingToLibrary(WeightingUserMin))
	assert.Equal(t, weightingLibMax, WeightingToLibrary(WeightingUserMax))
	assert.Equal(t, 50, WeightingToLibrary(0))
}

func TestSetPTTDelayClampsOutOfRange(t *testing.T) {
	p := New(DefaultSet())
	applied, clamped := p.SetPTTDelay(1000)
	assert.True(t, clamped)
	assert.Equal(t, PTTDelayMaxUs, applied)
	assert.Equal(t, PTTDelayMaxUs, p.Current.PTTDelayUs)
}

func TestAdjustSpeedClampsAtLibraryBounds(t *testing.T) {
	p := New(DefaultSet())
	p.Current.SpeedWPM = SpeedMax - 1
	p.AdjustSpeed(+1)
	p.AdjustSpeed(+1)
	assert.Equal(t, SpeedMax, p.Current.SpeedWPM)
}

// TestRepeatedIdenticalSetIsNoopAfterFirst exercises the round-trip
// property from spec.md §8: repeatedly applying the same SPEED/TONE/
// VOLUME/WEIGHTING leaves state unchanged after the first application.
func TestRepeatedIdenticalSetIsNoopAfterFirst(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := New(DefaultSet())
		wpm := rapid.IntRange(SpeedMin, SpeedMax).Draw(rt, "wpm")

		require.True(rt, p.SetSpeed(wpm))
		afterFirst := p.Current

		require.True(rt, p.SetSpeed(wpm))
		assert.Equal(rt, afterFirst, p.Current)
	})
}
