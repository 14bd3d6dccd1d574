// Package device defines the keying-device capability interface
// (spec.md §6.3) and hosts concrete backends in its subpackages (serial,
// gpio, hamlib, null).
package device

import "errors"

// ErrUnsupported is returned by an optional capability a backend does
// not implement (ssb_route, band_switch, footswitch_read).
var ErrUnsupported = errors.New("device: capability not supported by this backend")

// SSBRoute selects whether audio is routed through the soundcard or the
// microphone input, per spec.md §4.1 code 'b' (SSB_WAY).
type SSBRoute int

const (
	RouteMic SSBRoute = iota
	RouteSoundcard
)

// Device is the mandatory capability bundle every backend implements
// (spec.md §6.3): init is implicit in construction, release is Close.
type Device interface {
	// Reset drives all outputs to a safe baseline (spec.md §6.3 reset()).
	Reset() error

	// CW drives the keying line.
	CW(on bool) error

	// PTT drives the push-to-talk line.
	PTT(on bool) error

	// Close releases the device (spec.md §6.3 release()).
	Close() error
}

// SSBRouter is an optional capability: devices that can switch the audio
// path between microphone and soundcard implement it.
type SSBRouter interface {
	SSBRoute(route SSBRoute) error
}

// BandSwitcher is an optional capability: devices with four band-select
// pins implement it (spec.md §4.1 code 'e', BAND_SWITCH).
type BandSwitcher interface {
	BandSwitch(nibble uint8) error
}

// FootswitchReader is an optional capability: devices wired to a
// footswitch implement it; true means depressed.
type FootswitchReader interface {
	FootswitchRead() (bool, error)
}
