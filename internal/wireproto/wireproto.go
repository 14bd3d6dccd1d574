// Package wireproto implements the UDP wire framing of spec.md §6.1:
// splitting a raw datagram into a plain-text or control request, after
// trimming trailing CR/LF.
//
// Grounded on _examples/original_source/src/cwdaemon.c's
// cwdaemon_recvfrom (CR/LF stripping) and cwdaemon_receive (ESC-prefix
// classification). This is pure wire-format logic private to cwdaemon's
// own protocol, not an ambient concern any example repo's dependency
// covers, so it is implemented directly against the standard library
// (see DESIGN.md).
package wireproto

const (
	// Esc is the byte that marks a datagram as a control request
	// (spec.md §4.1).
	Esc byte = 0x1B

	// MaxDatagram is the largest UDP datagram the daemon accepts
	// (spec.md §6.1); larger inbound datagrams are truncated by the
	// receive buffer before reaching this package.
	MaxDatagram = 256
)

// Kind classifies a trimmed datagram.
type Kind int

const (
	KindPlainText Kind = iota
	KindControl
)

// Request is a parsed-at-the-framing-level datagram: either plain text
// to key, or a control request with its one-byte code and operand.
type Request struct {
	Kind    Kind
	Text    []byte // valid when Kind == KindPlainText
	Code    byte   // valid when Kind == KindControl
	Operand []byte // valid when Kind == KindControl
}

// trimCRLF strips trailing CR and/or LF bytes, matching
// cwdaemon_recvfrom's behavior.
func trimCRLF(b []byte) []byte {
	end := len(b)
	for end > 0 && (b[end-1] == '\r' || b[end-1] == '\n') {
		end--
	}
	return b[:end]
}

// Parse classifies and frames one datagram. An empty datagram (after
// trimming) yields a KindPlainText Request with empty Text: enqueuing
// empty plain text is defined as a no-op by the caller (spec.md §8).
func Parse(datagram []byte) Request {
	b := trimCRLF(datagram)
	if len(b) == 0 || b[0] != Esc {
		return Request{Kind: KindPlainText, Text: b}
	}

	req := Request{Kind: KindControl}
	if len(b) >= 2 {
		req.Code = b[1]
	}
	if len(b) > 2 {
		req.Operand = b[2:]
	}
	return req
}
