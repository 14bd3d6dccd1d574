// Package ptt implements the PTT Controller (spec.md §4.3): a bitset of
// three independent flags (AUTO, MANUAL, ECHO) plus the decisions that
// assert or drop the device's physical PTT line.
//
// Grounded on _examples/original_source/src/cwdaemon.c
// (cwdaemon_set_ptt_on/off, cwdaemon_tone_queue_low_callback) for the
// transition table, and on
// _examples/doismellburning-samoyed/src/ptt_test.go for the test style
// (a narrow mock satisfying a two-method device interface, t.Cleanup,
// testify assertions).
package ptt

// Flag is one of the three independent bits of spec.md §3's PTT flag.
type Flag uint8

const (
	FlagAuto Flag = 1 << iota
	FlagManual
	FlagEcho
)

// Line is the minimal device capability the PTT Controller drives: the
// physical PTT output (spec.md §6.3's ptt(bool) op).
type Line interface {
	PTT(on bool) error
}

// Controller owns the PTT bitset and the single device Line it drives.
// Not safe for concurrent use; spec.md §5 requires all three pieces of
// shared state (PTT flag among them) to be owned by one goroutine, with
// library callbacks marshalled back onto it rather than mutating
// directly from another thread.
type Controller struct {
	flag Flag
	line Line

	// asserted mirrors the last state written to the device line, so
	// Drop/Raise are idempotent with respect to physical toggling.
	asserted bool
}

// New builds a Controller driving the given device line.
func New(line Line) *Controller {
	return &Controller{line: line}
}

// Flags reports the current bitset, for tests and diagnostics.
func (c *Controller) Flags() Flag { return c.flag }

func (c *Controller) has(f Flag) bool { return c.flag&f != 0 }

func (c *Controller) set(f Flag)   { c.flag |= f }
func (c *Controller) clear(f Flag) { c.flag &^= f }

// raise asserts the device PTT line if it is not already asserted.
func (c *Controller) raise() error {
	if c.asserted {
		return nil
	}
	if err := c.line.PTT(true); err != nil {
		return err
	}
	c.asserted = true
	return nil
}

// drop de-asserts the device PTT line if it is currently asserted.
func (c *Controller) drop() error {
	if !c.asserted {
		return nil
	}
	if err := c.line.PTT(false); err != nil {
		return err
	}
	c.asserted = false
	return nil
}

// Asserted reports whether the device PTT line is currently raised.
// Invariant (spec.md §4.3): Asserted() == true implies Flags() != 0.
func (c *Controller) Asserted() bool { return c.asserted }

// BeginAutoBurst is the "Auto activation" transition: called by the
// Player at the first character of a burst (spec.md §4.3). Raises PTT if
// AUTO was not already set and sets the AUTO bit. The enqueued silent
// delay tone itself is the caller's (Player's) responsibility, since it
// is an ordinary tone-queue entry, not PTT Controller state.
func (c *Controller) BeginAutoBurst() error {
	if c.has(FlagAuto) {
		return nil
	}
	if err := c.raise(); err != nil {
		return err
	}
	c.set(FlagAuto)
	return nil
}

// ManualOn is "Manual activation": PTT_STATE=1 (spec.md §4.3). Raises PTT
// unconditionally and sets MANUAL.
func (c *Controller) ManualOn() error {
	if err := c.raise(); err != nil {
		return err
	}
	c.set(FlagManual)
	return nil
}

// ManualOff is "Manual release": PTT_STATE=0 (spec.md §4.3). Clears
// MANUAL. If nothing else holds PTT (no AUTO, no ECHO, no pending text,
// queue length <= 1) it drops PTT and clears the flag entirely; otherwise it
// promotes to AUTO so the queue-low callback eventually drops it.
//
// The original C guards this with the expression
// `!(ptt_flag & !PTT_ACTIVE_AUTO)`, flagged by spec.md §9 as suspicious.
// This implements the stated intent ("no other PTT modifier is active"),
// not the literal bitwise expression, per DESIGN.md's Open Question
// decision.
func (c *Controller) ManualOff(pendingTextEmpty bool, queueLength int) error {
	c.clear(FlagManual)

	othersHoldPTT := c.has(FlagAuto) || c.has(FlagEcho) || !pendingTextEmpty || queueLength > 1
	if !othersHoldPTT {
		c.flag = 0
		return c.drop()
	}

	c.set(FlagAuto)
	return nil
}

// QueueLow is the single point that drops AUTO-PTT, invoked from the
// queue-low callback (spec.md §4.3, §4.4): if the flag is exactly AUTO,
// the pending-text buffer is empty, and queue length <= 1, it drops PTT
// and clears AUTO. The <= 1 (not == 0) comparison is preserved verbatim
// from cwdaemon_tone_queue_low_callback per DESIGN.md's Open Question
// decision (spec.md §9 flags it as a deliberate library quirk).
func (c *Controller) QueueLow(pendingTextEmpty bool, queueLength int) error {
	if c.flag == FlagAuto && pendingTextEmpty && queueLength <= 1 {
		c.clear(FlagAuto)
		return c.drop()
	}
	return nil
}

// Abort clears all three bits and drops PTT unconditionally (spec.md
// §4.1 code '4').
func (c *Controller) Abort() error {
	c.flag = 0
	return c.drop()
}

// ArmEcho sets the ECHO bit (a REPLY request or caret marker armed the
// reply slot; spec.md §4.6). It does not touch the device line.
func (c *Controller) ArmEcho() { c.set(FlagEcho) }

// DisarmEcho clears the ECHO bit after the reply has been delivered.
func (c *Controller) DisarmEcho() { c.clear(FlagEcho) }

// HasEcho reports whether a reply is currently armed.
func (c *Controller) HasEcho() bool { return c.has(FlagEcho) }

// HasAuto reports whether AUTO-PTT is currently asserted.
func (c *Controller) HasAuto() bool { return c.has(FlagAuto) }
