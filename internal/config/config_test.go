package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acerion/cwdaemon-go/internal/device/serial"
)

func TestParseAppliesDefaultsWhenNoFlagsGiven(t *testing.T) {
	cfg, help, version, err := Parse(nil)
	require.NoError(t, err)
	assert.False(t, help)
	assert.False(t, version)
	assert.Equal(t, 6789, cfg.Port)
	assert.Equal(t, 24, cfg.Defaults.SpeedWPM)
}

func TestParseOverridesDefaultsFromFlags(t *testing.T) {
	cfg, _, _, err := Parse([]string{"--port", "7000", "--wpm", "30", "--tone", "600"})
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 30, cfg.Defaults.SpeedWPM)
	assert.Equal(t, 600, cfg.Defaults.ToneHz)
}

func TestParseRejectsOutOfRangePort(t *testing.T) {
	_, _, _, err := Parse([]string{"--port", "80"})
	assert.Error(t, err)
}

func TestParseHelpShortCircuits(t *testing.T) {
	_, help, _, err := Parse([]string{"--help"})
	require.NoError(t, err)
	assert.True(t, help)
}

func TestParseVersionShortCircuits(t *testing.T) {
	_, _, version, err := Parse([]string{"-V"})
	require.NoError(t, err)
	assert.True(t, version)
}

func TestIncrementVerbosityShorthandBumpsFromDefault(t *testing.T) {
	cfg, _, _, err := Parse([]string{"-i"})
	require.NoError(t, err)
	assert.Equal(t, "e", cfg.Verbosity)
}

func TestIncrementVerbosityShorthandStacksOnExplicitLevel(t *testing.T) {
	cfg, _, _, err := Parse([]string{"--verbosity", "w", "-i"})
	require.NoError(t, err)
	assert.Equal(t, "i", cfg.Verbosity)
}

func TestIncrementVerbosityStacksAcrossRepeatedFlags(t *testing.T) {
	cfg, _, _, err := Parse([]string{"-iii"})
	require.NoError(t, err)
	assert.Equal(t, "i", cfg.Verbosity)
}

func TestSerialOptionsParsesKeyAndPttAssignment(t *testing.T) {
	cfg := Config{Options: []string{"key=rts", "ptt=dtr"}}
	opts, err := cfg.SerialOptions()
	require.NoError(t, err)
	assert.Equal(t, serial.PinRTS, opts.KeyPin)
	assert.Equal(t, serial.PinDTR, opts.PTTPin)
}

func TestSerialOptionsRejectsSamePinTwice(t *testing.T) {
	cfg := Config{Options: []string{"key=dtr", "ptt=dtr"}}
	_, err := cfg.SerialOptions()
	assert.Error(t, err)
}

func TestParseAnnounceFlagDefaultsOff(t *testing.T) {
	cfg, _, _, err := Parse(nil)
	require.NoError(t, err)
	assert.False(t, cfg.Announce)
}

func TestParseAnnounceFlagAndName(t *testing.T) {
	cfg, _, _, err := Parse([]string{"--announce", "--announce-name", "shack"})
	require.NoError(t, err)
	assert.True(t, cfg.Announce)
	assert.Equal(t, "shack", cfg.AnnounceName)
}

func TestSerialOptionsDefaultWhenNoneGiven(t *testing.T) {
	cfg := Config{}
	opts, err := cfg.SerialOptions()
	require.NoError(t, err)
	assert.Equal(t, serial.DefaultOptions(), opts)
}
