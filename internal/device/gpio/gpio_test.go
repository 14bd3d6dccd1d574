package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acerion/cwdaemon-go/internal/device"
)

// mockLine is a test double for gpioLine, matching the shape of
// doismellburning-samoyed's mockGPIODLine in src/ptt_test.go.
type mockLine struct {
	value  int
	closed bool
}

func (m *mockLine) SetValue(v int) error {
	m.value = v
	return nil
}

func (m *mockLine) Close() error {
	m.closed = true
	return nil
}

func newTestDevice() (*Device, *mockLine, *mockLine, [BandLineCount]*mockLine) {
	cw := new(mockLine)
	p := new(mockLine)
	var band [BandLineCount]*mockLine
	d := &Device{cw: cw, ptt: p}
	for i := range band {
		band[i] = new(mockLine)
		d.band[i] = band[i]
	}
	return d, cw, p, band
}

func TestCWAndPTTDriveLines(t *testing.T) {
	d, cw, p, _ := newTestDevice()

	require.NoError(t, d.CW(true))
	assert.Equal(t, 1, cw.value)

	require.NoError(t, d.PTT(true))
	assert.Equal(t, 1, p.value)

	require.NoError(t, d.CW(false))
	assert.Equal(t, 0, cw.value)
}

func TestBandSwitchDrivesLowFourBits(t *testing.T) {
	d, _, _, band := newTestDevice()

	require.NoError(t, d.BandSwitch(0b0101))

	assert.Equal(t, 1, band[0].value)
	assert.Equal(t, 0, band[1].value)
	assert.Equal(t, 1, band[2].value)
	assert.Equal(t, 0, band[3].value)
}

func TestResetDrivesEverythingLow(t *testing.T) {
	d, cw, p, band := newTestDevice()
	require.NoError(t, d.CW(true))
	require.NoError(t, d.PTT(true))
	require.NoError(t, d.BandSwitch(0b1111))

	require.NoError(t, d.Reset())

	assert.Equal(t, 0, cw.value)
	assert.Equal(t, 0, p.value)
	for _, b := range band {
		assert.Equal(t, 0, b.value)
	}
}

func TestFootswitchReadWithoutALineReturnsErrUnsupported(t *testing.T) {
	d, _, _, _ := newTestDevice()
	_, err := d.FootswitchRead()
	assert.True(t, errors.Is(err, device.ErrUnsupported))
}

func TestCloseClosesAllConfiguredLines(t *testing.T) {
	d, cw, p, band := newTestDevice()

	require.NoError(t, d.Close())

	assert.True(t, cw.closed)
	assert.True(t, p.closed)
	for _, b := range band {
		assert.True(t, b.closed)
	}
}
