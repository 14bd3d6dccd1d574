// Package hamlib implements device.Device's PTT and SSB-route
// capabilities through a rig-control daemon instead of raw serial/GPIO
// pins, for radios whose PTT is already rig-control-managed.
//
// Grounded on github.com/xylo04/goHamlib, listed in the teacher's
// go.mod but unused in teacher code; wired here as an additional
// CWDEVICE backend beyond the serial/GPIO/null trio spec.md §2
// enumerates (SPEC_FULL.md §11.1). CW keying is unsupported:
// hamlib/rigctld does not key CW directly, so this backend's CW method
// returns an error wrapping device.ErrUnsupported.
package hamlib

import (
	"fmt"

	"github.com/xylo04/goHamlib"

	"github.com/acerion/cwdaemon-go/internal/device"
)

// Device drives PTT (and optionally SSB audio routing) through an open
// hamlib rig handle.
type Device struct {
	rig *goHamlib.Rig
}

// Open initializes a hamlib rig of the given model number against port
// (e.g. "localhost:4532" for rigctld, or a serial device path for a
// direct CI-V/CAT connection).
func Open(model int, port string) (*Device, error) {
	rig := goHamlib.RigInit(model)
	if rig == nil {
		return nil, fmt.Errorf("hamlib: unknown rig model %d", model)
	}
	rig.SetConf("rig_pathname", port)
	if err := rig.Open(); err != nil {
		return nil, fmt.Errorf("hamlib: opening rig on %q: %w", port, err)
	}
	return &Device{rig: rig}, nil
}

func (d *Device) PTT(on bool) error {
	state := goHamlib.RIG_PTT_OFF
	if on {
		state = goHamlib.RIG_PTT_ON
	}
	if err := d.rig.SetPTT(goHamlib.RIG_VFO_CURR, state); err != nil {
		return fmt.Errorf("hamlib: set PTT: %w", err)
	}
	return nil
}

// CW is unimplemented: hamlib does not key CW directly on most rigs.
// Reported as an error rather than silently no-op'd, so a caller that
// mistakenly selects this backend for keying finds out immediately
// instead of transmitting silence.
func (d *Device) CW(bool) error {
	return fmt.Errorf("hamlib backend does not support CW keying: %w", device.ErrUnsupported)
}

func (d *Device) Reset() error {
	return d.PTT(false)
}

// SSBRoute implements device.SSBRouter where the rig exposes a
// monitor/data-source control.
func (d *Device) SSBRoute(route device.SSBRoute) error {
	src := goHamlib.RIG_MOD_SRC_MIC
	if route == device.RouteSoundcard {
		src = goHamlib.RIG_MOD_SRC_DATA
	}
	if err := d.rig.SetConf("mod_source", fmt.Sprint(src)); err != nil {
		return fmt.Errorf("hamlib: set modulation source: %w", err)
	}
	return nil
}

func (d *Device) Close() error {
	_ = d.PTT(false)
	return d.rig.Close()
}
