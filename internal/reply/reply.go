// Package reply implements the Reply Correlator (spec.md §4.6): the
// single armed reply slot, plus delivery over a socket sender supplied
// by the caller.
//
// Grounded on _examples/original_source/src/cwdaemon.c's
// cwdaemon_prepare_reply (arming) and the reply-delivery half of
// cwdaemon_tone_queue_low_callback (delivery, CRLF framing, the
// re-arm-for-trailing-gap double silent tone). This is cwdaemon's own
// data model (spec.md §3 "Reply slot"), not an ambient concern any
// example dependency covers, so it is implemented directly (see
// DESIGN.md).
package reply

import "net"

// Sender delivers a reply datagram to a peer; *net.UDPConn satisfies
// this in production, a fake in tests.
type Sender interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

// Slot holds at most one armed reply: its payload and the peer that
// should receive it. A new arm overwrites any previous one (spec.md
// §3: "At most one armed reply; a new arm overwrites").
type Slot struct {
	armed   bool
	payload []byte
	peer    *net.UDPAddr
	leadH   bool // true for REPLY-triggered replies, which carry a leading 'h'
}

// ArmFromReplyRequest implements the explicit <ESC>h REPLY request
// (spec.md §4.6 mode 1): the payload carries a leading 'h' marker on
// delivery (spec.md §6.1).
func (s *Slot) ArmFromReplyRequest(payload []byte, peer *net.UDPAddr) {
	s.armed = true
	s.payload = append([]byte(nil), payload...)
	s.peer = peer
	s.leadH = true
}

// ArmFromCaret implements the caret-in-text trigger (spec.md §4.6 mode
// 2): textBeforeCaret is everything up to but not including '^'. No
// leading 'h' marker is sent for this mode (spec.md §6.1).
func (s *Slot) ArmFromCaret(textBeforeCaret []byte, peer *net.UDPAddr) {
	s.armed = true
	s.payload = append([]byte(nil), textBeforeCaret...)
	s.peer = peer
	s.leadH = false
}

// Armed reports whether a reply is currently waiting for delivery.
func (s *Slot) Armed() bool { return s.armed }

// Clear disarms the slot without sending anything, used by ABORT and
// RESET.
func (s *Slot) Clear() {
	*s = Slot{}
}

// Deliver sends the armed reply (payload + CRLF, optionally prefixed
// with 'h') to its peer via sender, then clears the slot. Called from
// the queue-low callback path when ECHO is set (spec.md §4.6 Delivery).
// It is a no-op if nothing is armed.
func (s *Slot) Deliver(sender Sender) error {
	if !s.armed {
		return nil
	}
	out := make([]byte, 0, len(s.payload)+3)
	if s.leadH {
		out = append(out, 'h')
	}
	out = append(out, s.payload...)
	out = append(out, '\r', '\n')

	peer := s.peer
	s.Clear()

	_, err := sender.WriteToUDP(out, peer)
	return err
}

// SendInterrupt sends the literal "break\r\n" reply used by ABORT when
// an ECHO was pending (spec.md §4.1 code '4', §7), then clears the
// slot. No-op if nothing is armed (caller is expected to check HasEcho
// on the PTT controller before calling this, matching spec.md §4.1's
// "if ECHO bit set, send the literal reply break\r\n").
func (s *Slot) SendInterrupt(sender Sender) error {
	if !s.armed || s.peer == nil {
		return nil
	}
	peer := s.peer
	s.Clear()
	_, err := sender.WriteToUDP([]byte("break\r\n"), peer)
	return err
}
