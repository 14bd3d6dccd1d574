// Package null implements device.Device as a no-op, matching
// _examples/original_source/src/null.c: "these do, well, nothing,
// except for provide a convenient placeholder." Selected by the device
// name "null" (the startup default) or an empty name; it is not used as
// a fallback for names that fail to open.
package null

type Device struct{}

func New() *Device { return &Device{} }

func (d *Device) Reset() error    { return nil }
func (d *Device) CW(bool) error   { return nil }
func (d *Device) PTT(bool) error  { return nil }
func (d *Device) Close() error    { return nil }

// Name reports the CWDEVICE probe name this backend matches, mirroring
// dev_is_null() in _examples/original_source/src/null.c.
const Name = "null"
