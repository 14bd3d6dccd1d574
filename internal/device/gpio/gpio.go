// Package gpio implements device.Device over GPIO output/input lines,
// substituting for the original's legacy parallel (LPT) port backend
// (_examples/original_source/src/lp.c: pin 2 keys CW, pin 7 drives PTT,
// pins 7/8/9 plus the base also carry the BAND_SWITCH nibble). Modern
// hosts rarely expose a usable /dev/parport0, so the rewrite targets
// GPIO lines on a Linux GPIO character device instead, selectable at
// startup the same way the original selects its parallel device.
//
// Grounded on github.com/warthog618/go-gpiocdev, listed in the teacher's
// go.mod but unused in teacher code, and directly modeled on
// _examples/doismellburning-samoyed/src/ptt_test.go's mockGPIODLine
// test double: a *gpiocdev.Line satisfies the same two-method shape
// (SetValue(int) error, Close() error) as that mock, so gpioLine below
// is defined narrowly enough for both the real line and a test double
// to implement it.
package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/acerion/cwdaemon-go/internal/device"
)

// gpioLine is the minimal shape this package depends on, matching
// *gpiocdev.Line and doismellburning-samoyed's mockGPIODLine.
type gpioLine interface {
	SetValue(v int) error
	Close() error
}

// BandLineCount is the number of band-select output lines, matching the
// original's 4-bit BAND_SWITCH nibble (spec.md §4.1 code 'e').
const BandLineCount = 4

// Device drives CW, PTT, an optional footswitch input, and the 4-bit
// band-switch nibble over GPIO character-device lines.
type Device struct {
	cw          gpioLine
	ptt         gpioLine
	footswitch  gpioLine // nil if not configured
	band        [BandLineCount]gpioLine
	invertFoot  bool
}

// Lines names the chip offsets used for each signal. Offsets of -1 mean
// "not wired" for optional signals.
type Lines struct {
	Chip           string
	CWOffset       int
	PTTOffset      int
	FootswitchOffset int // -1 if unused
	BandOffsets    [BandLineCount]int
	InvertFootswitch bool
}

// Open requests the configured lines from the named gpiochip.
func Open(lines Lines) (*Device, error) {
	cw, err := gpiocdev.RequestLine(lines.Chip, lines.CWOffset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("requesting cw gpio line: %w", err)
	}
	ptt, err := gpiocdev.RequestLine(lines.Chip, lines.PTTOffset, gpiocdev.AsOutput(0))
	if err != nil {
		_ = cw.Close()
		return nil, fmt.Errorf("requesting ptt gpio line: %w", err)
	}

	d := &Device{cw: cw, ptt: ptt, invertFoot: lines.InvertFootswitch}

	if lines.FootswitchOffset >= 0 {
		fs, err := gpiocdev.RequestLine(lines.Chip, lines.FootswitchOffset, gpiocdev.AsInput)
		if err != nil {
			_ = cw.Close()
			_ = ptt.Close()
			return nil, fmt.Errorf("requesting footswitch gpio line: %w", err)
		}
		d.footswitch = fs
	}

	for i, off := range lines.BandOffsets {
		if off < 0 {
			continue
		}
		line, err := gpiocdev.RequestLine(lines.Chip, off, gpiocdev.AsOutput(0))
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("requesting band-switch gpio line %d: %w", i, err)
		}
		d.band[i] = line
	}

	return d, nil
}

func setBool(line gpioLine, on bool) error {
	if line == nil {
		return nil
	}
	v := 0
	if on {
		v = 1
	}
	return line.SetValue(v)
}

func (d *Device) CW(on bool) error  { return setBool(d.cw, on) }
func (d *Device) PTT(on bool) error { return setBool(d.ptt, on) }

func (d *Device) Reset() error {
	if err := d.CW(false); err != nil {
		return err
	}
	if err := d.PTT(false); err != nil {
		return err
	}
	return d.BandSwitch(0)
}

// BandSwitch drives the four band-select lines from the low 4 bits of
// nibble, matching spec.md §4.1 code 'e' (BAND_SWITCH).
func (d *Device) BandSwitch(nibble uint8) error {
	for i := 0; i < BandLineCount; i++ {
		bit := nibble&(1<<uint(i)) != 0
		if err := setBool(d.band[i], bit); err != nil {
			return fmt.Errorf("driving band-switch line %d: %w", i, err)
		}
	}
	return nil
}

// FootswitchRead reports whether the footswitch is depressed, applying
// the configured inversion. Returns device.ErrUnsupported when no
// footswitch line was requested, so callers that probe for the
// capability via a type assertion still need to treat a per-call
// failure as "not wired" rather than a hardware fault.
func (d *Device) FootswitchRead() (bool, error) {
	if d.footswitch == nil {
		return false, fmt.Errorf("footswitch not configured: %w", device.ErrUnsupported)
	}
	line, ok := d.footswitch.(interface{ Value() (int, error) })
	if !ok {
		return false, fmt.Errorf("footswitch line does not support reading")
	}
	v, err := line.Value()
	if err != nil {
		return false, err
	}
	depressed := v != 0
	if d.invertFoot {
		depressed = !depressed
	}
	return depressed, nil
}

func (d *Device) Close() error {
	_ = d.Reset()
	var firstErr error
	for _, line := range append([]gpioLine{d.cw, d.ptt, d.footswitch}, d.band[:]...) {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
