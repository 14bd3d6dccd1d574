// Package textqueue implements the Text Queue & Player (spec.md §4.2):
// the pending-text buffer, its inline markers, and pacing of character
// emission to the CW Library Adapter.
//
// Grounded on _examples/original_source/src/cwdaemon.c's
// cwdaemon_play_request (marker handling) and the
// request_queue/cwdaemon_receive interplay (append-then-drive). The
// original enqueues every character to libcw synchronously and lets
// libcw's own thread pace the actual audio asynchronously; this
// implementation does the same against cwlib.Generator.EnqueueChar,
// which is itself non-blocking (internal/cwlib.Scheduler queues and
// plays from its own goroutine) — so there is no need to replicate the
// original's blocking poll loop (spec.md §4.2: "in the original
// implementation it polls").
package textqueue

import (
	"net"
	"time"

	"github.com/acerion/cwdaemon-go/internal/cwlib"
	"github.com/acerion/cwdaemon-go/internal/params"
	"github.com/acerion/cwdaemon-go/internal/ptt"
	"github.com/acerion/cwdaemon-go/internal/reply"
)

// MaxBufferBytes is the pending-text buffer's fixed capacity (spec.md
// §3: "~4000 characters").
const MaxBufferBytes = 4000

// Player owns the pending-text buffer and the inline-marker state
// machine. Not safe for concurrent use (spec.md §5: owned by the single
// cooperative main goroutine).
type Player struct {
	gen    cwlib.Generator
	pttCtl *ptt.Controller
	params *params.Params
	reply  *reply.Slot

	wordMode bool
	gapNext  bool // '~' marker: temporary gap for the next real character
	pending  int  // bytes currently mid-Append; always 0 between calls
}

// New builds a Player driving gen, pttCtl, params and reply together,
// matching the dependency direction of spec.md §2 ("Text Queue ->
// CW Library Adapter + PTT Controller").
func New(gen cwlib.Generator, pttCtl *ptt.Controller, p *params.Params, rep *reply.Slot) *Player {
	return &Player{gen: gen, pttCtl: pttCtl, params: p, reply: rep}
}

// SetGenerator swaps the Generator this Player drives, used when a
// SOUND_SYSTEM request crosses backend families and the dispatcher
// replaces its Generator outright rather than reopening the existing
// one in place.
func (pl *Player) SetGenerator(gen cwlib.Generator) { pl.gen = gen }

// PendingEmpty reports whether the buffer currently holds no unconsumed
// text, used by the PTT Controller's ManualOff/QueueLow decisions
// (spec.md §4.3).
func (pl *Player) PendingEmpty() bool { return pl.pending == 0 }

// SetWordMode switches to uninterruptible mode for the remaining
// session (spec.md §4.1 code '6'); there is no way back.
func (pl *Player) SetWordMode() { pl.wordMode = true }

// WordMode reports whether ABORT should be ignored (spec.md §4.2).
func (pl *Player) WordMode() bool { return pl.wordMode }

// Append processes a plain-text datagram (spec.md §4.1, §4.2): oversize
// appends are dropped whole; otherwise every byte is interpreted as an
// inline marker or a character to key, in order. peer is the sender of
// this datagram, snapshotted if a caret arms the reply slot.
func (pl *Player) Append(text []byte, peer *net.UDPAddr) error {
	if len(text) == 0 {
		return nil // spec.md §8: enqueuing empty plain text is a no-op
	}
	if len(text) > MaxBufferBytes {
		return nil // spec.md §3/§7: oversize appends dropped whole
	}

	pl.pending = len(text)
	defer func() { pl.pending = 0 }()

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '+', '-':
			steps := 0
			for i < len(text) && (text[i] == '+' || text[i] == '-') {
				if text[i] == '+' {
					steps++
				} else {
					steps--
				}
				i++
			}
			i-- // outer loop will i++ again
			pl.params.AdjustSpeed(steps)
			pl.gen.SetSpeedWPM(pl.params.Current.SpeedWPM)

		case '~':
			pl.gapNext = true

		case '^':
			pl.reply.ArmFromCaret(text[:i], peer)
			pl.pttCtl.ArmEcho()
			return nil // everything after '^' is discarded (spec.md §4.2)

		default:
			ch := c
			if ch == '*' {
				ch = '+' // rewritten to '+' before enqueuing (spec.md §4.2)
			}

			if err := pl.beginAutoBurstIfNeeded(); err != nil {
				return err
			}

			if pl.gapNext {
				pl.gen.SetGap(2)
				pl.gapNext = false
				if err := pl.gen.EnqueueChar(ch); err != nil {
					return err
				}
				pl.gen.SetGap(0)
			} else {
				if err := pl.gen.EnqueueChar(ch); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// beginAutoBurstIfNeeded implements the Auto-activation transition of
// spec.md §4.3 at the first character of a burst: raise PTT, pad with a
// silent tone of delay*20us (falling back to a synchronous sleep if the
// library rejects a zero-frequency enqueue), then mark AUTO active.
func (pl *Player) beginAutoBurstIfNeeded() error {
	if pl.pttCtl.HasAuto() {
		return nil
	}

	delayUs := pl.params.Current.PTTDelayUs
	if err := pl.pttCtl.BeginAutoBurst(); err != nil {
		return err
	}
	if delayUs > 0 {
		padding := time.Duration(delayUs) * 20 * time.Microsecond
		if err := pl.gen.EnqueueTone(padding, 0); err != nil {
			time.Sleep(time.Duration(delayUs) * time.Microsecond)
		}
	}
	return nil
}

// Abort implements the non-word-mode half of the ABORT request (spec.md
// §4.1 code '4'): if ECHO is armed, send the literal "break\r\n" reply;
// truncate pending text; flush the tone queue and wait for it; drop PTT
// entirely. Word-mode suppression is the caller's responsibility
// (check WordMode() first), matching spec.md §4.2's "word-mode disables
// one specific behaviour: the ABORT request has no effect during play."
func (pl *Player) Abort(sender reply.Sender) error {
	if pl.pttCtl.HasEcho() {
		if err := pl.reply.SendInterrupt(sender); err != nil {
			return err
		}
	} else {
		pl.reply.Clear()
	}

	pl.pending = 0
	pl.gapNext = false

	pl.gen.Flush()
	pl.gen.WaitForEmpty()

	return pl.pttCtl.Abort()
}
