package textqueue

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acerion/cwdaemon-go/internal/cwlib"
	"github.com/acerion/cwdaemon-go/internal/params"
	"github.com/acerion/cwdaemon-go/internal/ptt"
	"github.com/acerion/cwdaemon-go/internal/reply"
)

// fakeGen is an in-memory stand-in for cwlib.Generator that records
// every enqueued character and raw tone instead of actually playing
// anything, so Player's marker logic can be tested without a real
// audio backend.
type fakeGen struct {
	speedWPM int
	gap      float64
	chars    []byte
	tones    []time.Duration
	flushed  int
}

func (f *fakeGen) Reopen(byte) error                                       { return nil }
func (f *fakeGen) SetSpeedWPM(wpm int)                                     { f.speedWPM = wpm }
func (f *fakeGen) SetToneHz(int)                                          {}
func (f *fakeGen) SetVolumePct(int)                                       {}
func (f *fakeGen) SetWeightingLib(int)                                    {}
func (f *fakeGen) SetGap(dotTimes float64)                                { f.gap = dotTimes }
func (f *fakeGen) EnqueueChar(c byte) error                               { f.chars = append(f.chars, c); return nil }
func (f *fakeGen) EnqueueTone(d time.Duration, _ int) error               { f.tones = append(f.tones, d); return nil }
func (f *fakeGen) Flush()                                                 { f.flushed++ }
func (f *fakeGen) WaitForEmpty()                                          {}
func (f *fakeGen) QueueLength() int                                       { return 0 }
func (f *fakeGen) RegisterKeyingCallback(cwlib.KeyingCallback)            {}
func (f *fakeGen) RegisterQueueLowCallback(cwlib.QueueLowCallback, int)   {}
func (f *fakeGen) Close() error                                           { return nil }

type fakeLine struct{ asserted bool }

func (l *fakeLine) PTT(on bool) error { l.asserted = on; return nil }

type fakeSender struct {
	sent []byte
	addr *net.UDPAddr
}

func (s *fakeSender) WriteToUDP(b []byte, addr *net.UDPAddr) (int, error) {
	s.sent = append([]byte(nil), b...)
	s.addr = addr
	return len(b), nil
}

func newPlayer() (*Player, *fakeGen, *ptt.Controller, *reply.Slot) {
	gen := &fakeGen{}
	pttCtl := ptt.New(&fakeLine{})
	p := params.New(params.DefaultSet())
	var rep reply.Slot
	return New(gen, pttCtl, p, &rep), gen, pttCtl, &rep
}

func TestAppendKeysPlainCharacters(t *testing.T) {
	pl, gen, pttCtl, _ := newPlayer()
	require.NoError(t, pl.Append([]byte("paris"), nil))

	assert.Equal(t, []byte("paris"), gen.chars)
	assert.True(t, pttCtl.HasAuto(), "first character of a burst must raise AUTO PTT")
}

func TestAppendEmptyIsNoop(t *testing.T) {
	pl, gen, _, _ := newPlayer()
	require.NoError(t, pl.Append(nil, nil))
	assert.Empty(t, gen.chars)
}

func TestAppendOversizeDropsWhole(t *testing.T) {
	pl, gen, _, _ := newPlayer()
	big := make([]byte, MaxBufferBytes+1)
	for i := range big {
		big[i] = 'a'
	}
	require.NoError(t, pl.Append(big, nil))
	assert.Empty(t, gen.chars, "oversize append must be dropped whole")
}

func TestStarIsRewrittenToPlus(t *testing.T) {
	pl, gen, _, _ := newPlayer()
	require.NoError(t, pl.Append([]byte("a*b"), nil))
	assert.Equal(t, []byte("a+b"), gen.chars, "'*' is keyed as '+'")
}

func TestPlusMinusAdjustSpeedAndAreNotKeyed(t *testing.T) {
	pl, gen, _, _ := newPlayer()
	before := pl.params.Current.SpeedWPM

	require.NoError(t, pl.Append([]byte("++x"), nil))

	assert.Equal(t, before+2*params.SpeedStepWPM, pl.params.Current.SpeedWPM)
	assert.Equal(t, []byte("x"), gen.chars, "'+' markers are consumed, not keyed")
	assert.Equal(t, pl.params.Current.SpeedWPM, gen.speedWPM)
}

func TestCaretArmsReplyAndDiscardsTail(t *testing.T) {
	pl, gen, pttCtl, rep := newPlayer()
	peer := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7000}

	require.NoError(t, pl.Append([]byte("Fun^Joy^"), peer))

	assert.Equal(t, []byte("Fun"), gen.chars, "text after '^' must be discarded")
	assert.True(t, pttCtl.HasEcho())
	assert.True(t, rep.Armed())

	sender := &fakeSender{}
	require.NoError(t, rep.Deliver(sender))
	assert.Equal(t, []byte("Fun\r\n"), sender.sent)
}

func TestTildeAppliesGapOnlyToNextCharacter(t *testing.T) {
	pl, gen, _, _ := newPlayer()
	require.NoError(t, pl.Append([]byte("~ab"), nil))

	assert.Equal(t, []byte("ab"), gen.chars)
	assert.False(t, pl.gapNext, "gap marker must be consumed by the next real character")
}

func TestAbortOutsideWordModeSendsBreakWhenEchoArmed(t *testing.T) {
	pl, gen, pttCtl, rep := newPlayer()
	rep.ArmFromCaret([]byte("pending"), &net.UDPAddr{Port: 1})
	pttCtl.ArmEcho()
	require.NoError(t, pttCtl.ManualOn())

	sender := &fakeSender{}
	require.NoError(t, pl.Abort(sender))

	assert.Equal(t, []byte("break\r\n"), sender.sent)
	assert.Equal(t, ptt.Flag(0), pttCtl.Flags())
	assert.False(t, rep.Armed())
	assert.Equal(t, 1, gen.flushed)
}
