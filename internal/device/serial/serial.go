// Package serial implements device.Device over a TTY's DTR/RTS modem
// control lines, matching _examples/original_source/src/ttys.c
// (ttys_cw, ttys_ptt, ttys_optparse, ttys_optvalidate) and spec.md §6.3's
// "for the serial driver, cw and ptt pins are configurable to DTR, RTS,
// or none".
//
// Opening and configuring the tty (raw mode, baud) reuses the teacher's
// own github.com/pkg/term, matching
// _examples/doismellburning-samoyed/src/serial_port.go's
// term.Open(path, term.RawMode) shape. Toggling individual modem control
// lines is done with golang.org/x/sys/unix ioctls (TIOCMBIS/TIOCMBIC),
// matching ttys.c's raw ioctl() calls exactly; pkg/term alone
// exposes no modem-line API, and golang.org/x/sys is already one of the
// teacher's own dependencies, so no new dependency is introduced for
// this concern (see DESIGN.md).
package serial

import (
	"fmt"
	"strings"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"
)

// Pin identifies which modem control line (if any) a logical signal
// (cw or ptt) is assigned to.
type Pin int

const (
	PinNone Pin = 0
	PinDTR  Pin = unix.TIOCM_DTR
	PinRTS  Pin = unix.TIOCM_RTS
)

// ParsePin accepts the -o key=... / -o ptt=... values of spec.md §6.2.
func ParsePin(value string) (Pin, error) {
	switch strings.ToLower(value) {
	case "dtr":
		return PinDTR, nil
	case "rts":
		return PinRTS, nil
	case "none":
		return PinNone, nil
	default:
		return 0, fmt.Errorf("invalid pin %q, expected dtr|rts|none", value)
	}
}

// Options configures which pin drives cw and which drives ptt. Defaults
// match spec.md §6.3: cw -> DTR, ptt -> RTS.
type Options struct {
	KeyPin Pin
	PTTPin Pin
}

func DefaultOptions() Options {
	return Options{KeyPin: PinDTR, PTTPin: PinRTS}
}

// Validate rejects assigning both signals to the same pin, matching
// ttys_optvalidate in _examples/original_source/src/ttys.c.
func (o Options) Validate() error {
	if o.KeyPin != PinNone && o.PTTPin != PinNone && o.KeyPin == o.PTTPin {
		return fmt.Errorf("key pin and ptt pin must not both be %v", o.KeyPin)
	}
	return nil
}

// Device drives CW and PTT by toggling DTR/RTS on an open tty.
type Device struct {
	tty  *term.Term
	opts Options
}

// Open opens path at baud and returns a Device using opts for pin
// assignment. Matches tty_get_file_descriptor's character-device check
// implicitly via term.Open's own error handling.
func Open(path string, baud int, opts Options) (*Device, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	tty, err := term.Open(path, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("opening serial device %q: %w", path, err)
	}
	d := &Device{tty: tty, opts: opts}
	if err := d.Reset(); err != nil {
		_ = tty.Close()
		return nil, err
	}
	return d, nil
}

func (d *Device) fd() uintptr { return d.tty.Fd() }

func (d *Device) setPin(pin Pin, on bool) error {
	if pin == PinNone {
		return nil
	}
	req := uint(unix.TIOCMBIC)
	if on {
		req = uint(unix.TIOCMBIS)
	}
	// TIOCMBIS/TIOCMBIC take a pointer-to-int bitmask, as in ttys.c's
	// ioctl(fd, TIOCMBIS, &flags); IoctlSetInt passes by value and would
	// fault.
	if err := unix.IoctlSetPointerInt(int(d.fd()), req, int(pin)); err != nil {
		return fmt.Errorf("ioctl on serial device: %w", err)
	}
	return nil
}

// CW toggles the pin assigned to the keying line.
func (d *Device) CW(on bool) error { return d.setPin(d.opts.KeyPin, on) }

// PTT toggles the pin assigned to the push-to-talk line.
func (d *Device) PTT(on bool) error { return d.setPin(d.opts.PTTPin, on) }

// Reset drops both configured pins to their inactive state, matching
// ttys_reset_pins_state.
func (d *Device) Reset() error {
	if err := d.CW(false); err != nil {
		return err
	}
	return d.PTT(false)
}

// Close drops both pins and closes the tty, matching ttys_free.
func (d *Device) Close() error {
	_ = d.Reset()
	return d.tty.Close()
}
