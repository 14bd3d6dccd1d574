package ptt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLine is a test double for Line that records calls without
// requiring any real keying hardware, matching the style of
// doismellburning-samoyed's mockGPIODLine in src/ptt_test.go.
type mockLine struct {
	asserted bool
	calls    int
	failNext bool
}

func (m *mockLine) PTT(on bool) error {
	m.calls++
	if m.failNext {
		m.failNext = false
		return assert.AnError
	}
	m.asserted = on
	return nil
}

func TestBeginAutoBurstRaisesAndSetsAuto(t *testing.T) {
	line := new(mockLine)
	c := New(line)

	require.NoError(t, c.BeginAutoBurst())

	assert.True(t, line.asserted, "line should be high once an auto burst begins")
	assert.True(t, c.HasAuto())
	assert.True(t, c.Asserted())
}

func TestBeginAutoBurstIsIdempotentWhenAlreadyAuto(t *testing.T) {
	line := new(mockLine)
	c := New(line)

	require.NoError(t, c.BeginAutoBurst())
	calls := line.calls
	require.NoError(t, c.BeginAutoBurst())

	assert.Equal(t, calls, line.calls, "a second burst while AUTO already set must not re-toggle the line")
}

func TestManualOnRaisesUnconditionally(t *testing.T) {
	line := new(mockLine)
	c := New(line)

	require.NoError(t, c.ManualOn())

	assert.True(t, line.asserted)
	assert.NotZero(t, c.Flags()&FlagManual)
}

func TestManualOffDropsWhenNothingElseHoldsPTT(t *testing.T) {
	line := new(mockLine)
	c := New(line)
	require.NoError(t, c.ManualOn())

	require.NoError(t, c.ManualOff(true, 0))

	assert.False(t, line.asserted, "PTT should drop once MANUAL clears with nothing else holding it")
	assert.Equal(t, Flag(0), c.Flags())
}

func TestManualOffPromotesToAutoWhenStillSending(t *testing.T) {
	line := new(mockLine)
	c := New(line)
	require.NoError(t, c.ManualOn())

	require.NoError(t, c.ManualOff(false, 3))

	assert.True(t, line.asserted, "PTT must stay asserted while text is still pending")
	assert.True(t, c.HasAuto(), "release while still sending promotes MANUAL to AUTO")
}

func TestQueueLowDropsOnlyWhenAutoAloneAndDrained(t *testing.T) {
	line := new(mockLine)
	c := New(line)
	require.NoError(t, c.BeginAutoBurst())

	require.NoError(t, c.QueueLow(false, 0))
	assert.True(t, line.asserted, "must not drop while pending text remains")

	require.NoError(t, c.QueueLow(true, 2))
	assert.True(t, line.asserted, "must not drop while queue length is above the watermark")

	require.NoError(t, c.QueueLow(true, 1))
	assert.False(t, line.asserted, "queue length <= 1 at the watermark must drop AUTO PTT")
	assert.False(t, c.HasAuto())
}

func TestQueueLowLeavesManualOrEchoAlone(t *testing.T) {
	line := new(mockLine)
	c := New(line)
	require.NoError(t, c.ManualOn())
	c.ArmEcho()

	require.NoError(t, c.QueueLow(true, 0))

	assert.True(t, line.asserted, "MANUAL/ECHO bits must keep PTT asserted regardless of queue state")
}

func TestAbortClearsEverythingAndDrops(t *testing.T) {
	line := new(mockLine)
	c := New(line)
	require.NoError(t, c.ManualOn())
	c.ArmEcho()

	require.NoError(t, c.Abort())

	assert.Equal(t, Flag(0), c.Flags())
	assert.False(t, line.asserted)
}

// TestInvariantAssertedImpliesFlagSet is the §8 testable property:
// whenever the device PTT is asserted, at least one PTT bit is set.
func TestInvariantAssertedImpliesFlagSet(t *testing.T) {
	line := new(mockLine)
	c := New(line)

	steps := []func() error{
		c.BeginAutoBurst,
		c.ManualOn,
		func() error { return c.ManualOff(true, 0) },
	}
	for _, step := range steps {
		require.NoError(t, step())
		if c.Asserted() {
			assert.NotZero(t, c.Flags(), "PTT asserted but no bit set")
		} else {
			assert.Zero(t, c.Flags(), "all bits clear but PTT still asserted")
		}
	}
}

func TestArmAndDisarmEcho(t *testing.T) {
	c := New(new(mockLine))
	assert.False(t, c.HasEcho())
	c.ArmEcho()
	assert.True(t, c.HasEcho())
	c.DisarmEcho()
	assert.False(t, c.HasEcho())
}
