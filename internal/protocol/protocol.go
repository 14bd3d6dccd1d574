// Package protocol implements the Request Parser & Dispatcher (spec.md
// §4.1): it takes a parsed wireproto.Request and a handle on every other
// component, and carries out the control-request semantics or hands
// plain text to the Text Queue & Player.
//
// Grounded on _examples/original_source/src/cwdaemon.c's
// cwdaemon_receive (top-level plain-text/escape split) and
// cwdaemon_handle_escaped_request (the big per-code switch). Each case
// below cites the corresponding C case by its single-byte code.
package protocol

import (
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/acerion/cwdaemon-go/internal/cwlib"
	"github.com/acerion/cwdaemon-go/internal/device"
	"github.com/acerion/cwdaemon-go/internal/params"
	"github.com/acerion/cwdaemon-go/internal/ptt"
	"github.com/acerion/cwdaemon-go/internal/reply"
	"github.com/acerion/cwdaemon-go/internal/textqueue"
	"github.com/acerion/cwdaemon-go/internal/wireproto"
)

// maxTuneSeconds bounds the TUNE request (spec.md §4.1 code 'c'), matching
// the original's "if (lv <= 10) cwdaemon_tune(lv);" guard.
const maxTuneSeconds = 10

// OpenDevice constructs a new keying device for the name carried by a
// CWDEVICE request (spec.md §4.1 code '8'); the Dispatcher owner wires
// this to its device-name convention (null, /dev/... serial, gpio:...,
// hamlib:...).
type OpenDevice func(name string) (device.Device, error)

// OpenGenerator constructs a new sound generator for the backend tag
// carried by a SOUND_SYSTEM request, used as a fallback when the
// current generator's Reopen cannot switch families in place (e.g.
// null -> portaudio); the Dispatcher owner wires this to its backend
// selection and re-registers the keying/queue-low callbacks on the
// result before returning it.
type OpenGenerator func(tag byte) (cwlib.Generator, error)

// Dispatcher wires every already-constructed component together and
// carries out one parsed request at a time. Not safe for concurrent use;
// it is driven exclusively by the Event Loop's single goroutine (spec.md
// §5).
type Dispatcher struct {
	Params  *params.Params
	PTT     *ptt.Controller
	Player  *textqueue.Player
	Reply   *reply.Slot
	Gen     cwlib.Generator
	Dev     device.Device
	Sender  reply.Sender
	Open    OpenDevice
	OpenGen OpenGenerator
	Log     *log.Logger
}

// Handle carries out req, received from peer. It returns exit == true
// when the caller should terminate the process (spec.md §4.1 code '5').
func (d *Dispatcher) Handle(req wireproto.Request, peer *net.UDPAddr) (exit bool, err error) {
	if req.Kind == wireproto.KindPlainText {
		return false, d.Player.Append(req.Text, peer)
	}
	return d.handleControl(req, peer)
}

func (d *Dispatcher) handleControl(req wireproto.Request, peer *net.UDPAddr) (bool, error) {
	switch req.Code {
	case '0': // RESET
		d.Params.Reset()
		d.Reply.Clear()
		if err := d.PTT.Abort(); err != nil {
			return false, err
		}
		d.Gen.SetSpeedWPM(d.Params.Current.SpeedWPM)
		d.Gen.SetToneHz(d.Params.Current.ToneHz)
		d.Gen.SetVolumePct(d.Params.Current.VolumePct)
		d.Gen.SetWeightingLib(params.WeightingToLibrary(d.Params.Current.WeightingUser))
		d.debug("Reset")

	case '2': // SPEED, wpm
		lv, ok := parseOperand(req.Operand)
		if !ok {
			return false, nil
		}
		if d.Params.SetSpeed(lv) {
			d.Gen.SetSpeedWPM(d.Params.Current.SpeedWPM)
			d.debug("Speed: %d wpm", d.Params.Current.SpeedWPM)
		}

	case '3': // TONE, Hz
		lv, ok := parseOperand(req.Operand)
		if !ok {
			return false, nil
		}
		if d.Params.SetTone(lv) {
			d.Gen.SetToneHz(d.Params.Current.ToneHz)
			d.Gen.SetVolumePct(d.Params.Current.VolumePct)
			if lv == 0 {
				d.debug("Volume off")
			} else {
				d.debug("Tone: %d Hz, volume %d%%", lv, d.Params.Current.VolumePct)
			}
		}

	case '4': // ABORT
		if d.Player.WordMode() {
			d.debug("Ignoring Message abort request")
			break
		}
		d.debug("Message abort")
		if err := d.Player.Abort(d.Sender); err != nil {
			return false, err
		}

	case '5': // EXIT
		d.debug("Sender has told me to end the connection")
		return true, nil

	case '6': // WORD_MODE
		d.Player.SetWordMode()
		d.debug("Wordmode set")

	case '7': // WEIGHTING
		lv, ok := parseOperand(req.Operand)
		if !ok {
			return false, nil
		}
		if d.Params.SetWeighting(lv) {
			d.Gen.SetWeightingLib(params.WeightingToLibrary(d.Params.Current.WeightingUser))
			d.debug("Weight: %d", lv)
		}

	case '8': // CWDEVICE, name
		name := string(req.Operand)
		d.debug("Device: %s", name)
		if d.Open == nil {
			d.debug("Unknown device")
			break
		}
		dev, err := d.Open(name)
		if err != nil {
			d.debug("Unknown device")
			break
		}
		if d.Dev != nil {
			_ = d.Dev.Close()
		}
		d.Dev = dev

	case '9': // obsolete, documented no-op
		d.debug("Obsolete control data '9'")

	case 'a': // PTT_STATE, 0|1
		lv, ok := parseOperand(req.Operand)
		if !ok {
			return false, nil
		}
		if lv != 0 {
			if d.Params.Current.PTTDelayUs != 0 {
				// A configured delay makes this raise participate in the
				// same auto-style delay padding as an ordinary text burst
				// (cwdaemon_set_ptt_on), so Manual and Auto both end up
				// set; ManualOff below still demotes cleanly through Auto.
				if err := d.beginAutoPTTIfNeeded(); err != nil {
					return false, err
				}
				d.debug("PTT (manual, delay) on")
			} else {
				d.debug("PTT (manual, immediate) on")
			}
			if err := d.PTT.ManualOn(); err != nil {
				return false, err
			}
		} else {
			if err := d.PTT.ManualOff(d.Player.PendingEmpty(), d.Gen.QueueLength()); err != nil {
				return false, err
			}
			d.debug("PTT (manual, immediate) off")
		}

	case 'b': // SSB_WAY, 0|1
		lv, ok := parseOperand(req.Operand)
		if !ok {
			return false, nil
		}
		router, isRouter := d.Dev.(device.SSBRouter)
		if !isRouter {
			d.debug("SSB way unimplemented")
			break
		}
		route := device.RouteMic
		if lv != 0 {
			route = device.RouteSoundcard
		}
		if err := router.SSBRoute(route); err != nil {
			return false, err
		}

	case 'c': // TUNE, seconds
		lv, ok := parseOperand(req.Operand)
		if !ok {
			return false, nil
		}
		if lv <= maxTuneSeconds {
			if err := d.tune(lv); err != nil {
				return false, err
			}
		}

	case 'd': // TX_DELAY, ms
		applied, clamped := d.Params.SetPTTDelay(mustAtoi(req.Operand))
		if clamped {
			d.debug("PTT delay(TOD) clamped to %d ms", applied/1000)
		} else {
			d.debug("PTT delay(TOD): %d ms", applied/1000)
		}
		if d.Params.Current.PTTDelayUs == 0 {
			if err := d.PTT.ManualOff(true, 0); err != nil {
				return false, err
			}
		}

	case 'e': // BAND_SWITCH, nibble
		lv, ok := parseOperand(req.Operand)
		if !ok || lv < 0 || lv > 15 {
			break
		}
		switcher, isSwitcher := d.Dev.(device.BandSwitcher)
		if !isSwitcher {
			d.debug("Band switch unavailable")
			break
		}
		if err := switcher.BandSwitch(uint8(lv)); err != nil {
			return false, err
		}

	case 'f': // SOUND_SYSTEM, single-letter tag
		if len(req.Operand) == 0 {
			break
		}
		if err := d.Params.SetSoundSystem(req.Operand[0]); err != nil {
			d.debug("Invalid sound system: %s", req.Operand)
			break
		}
		d.debug("Sound device: %s", req.Operand)
		if err := d.Gen.Reopen(req.Operand[0]); err != nil {
			// Reopen only switches within its own backend family (e.g.
			// 'n'<->'c'); crossing families (null <-> portaudio) needs a
			// fresh Generator, matching how CWDEVICE ('8' above) swaps
			// d.Dev via d.Open.
			if d.OpenGen == nil {
				return false, err
			}
			newGen, gerr := d.OpenGen(req.Operand[0])
			if gerr != nil {
				return false, gerr
			}
			old := d.Gen
			d.Gen = newGen
			d.Player.SetGenerator(newGen)
			_ = old.Close()
			d.Gen.SetSpeedWPM(d.Params.Current.SpeedWPM)
			d.Gen.SetToneHz(d.Params.Current.ToneHz)
			d.Gen.SetVolumePct(d.Params.Current.VolumePct)
			d.Gen.SetWeightingLib(params.WeightingToLibrary(d.Params.Current.WeightingUser))
		}

	case 'g': // VOLUME, percent
		lv, ok := parseOperand(req.Operand)
		if !ok {
			return false, nil
		}
		if d.Params.SetVolume(lv) {
			d.Gen.SetVolumePct(d.Params.Current.VolumePct)
		}

	case 'h': // REPLY, text
		d.Reply.ArmFromReplyRequest(req.Operand, peer)
		d.PTT.ArmEcho()

	default:
		d.debug("Unknown escaped request %q", req.Code)
	}

	return false, nil
}

// tune implements the TUNE request (spec.md §4.5), matching
// cwdaemon_tune: flush the tone queue first, then queue one second of
// continuous tone at a time for the requested duration (so the request
// remains interruptible the same way ordinary CW text is), and finally
// append a minimal 'e' character to return the generator to its normal
// flow once tuning ends.
func (d *Dispatcher) tune(seconds int) error {
	if seconds <= 0 {
		return nil
	}
	d.Gen.Flush()
	if err := d.PTT.BeginAutoBurst(); err != nil {
		return err
	}
	for i := 0; i < seconds; i++ {
		if err := d.Gen.EnqueueTone(time.Second, d.Params.Current.ToneHz); err != nil {
			return err
		}
	}
	return d.Gen.EnqueueChar('e')
}

// beginAutoPTTIfNeeded mirrors cwdaemon_set_ptt_on: when a TX delay is
// configured and Auto-PTT isn't already asserted, it raises PTT the
// auto way and enqueues the delay*20us padding tone (falling back to a
// blocking sleep if the tone queue rejects it), the same participation
// a plain text burst gets from textqueue.beginAutoBurstIfNeeded.
func (d *Dispatcher) beginAutoPTTIfNeeded() error {
	if d.PTT.HasAuto() {
		return nil
	}
	delayUs := d.Params.Current.PTTDelayUs
	if err := d.PTT.BeginAutoBurst(); err != nil {
		return err
	}
	if delayUs > 0 {
		padding := time.Duration(delayUs) * 20 * time.Microsecond
		if err := d.Gen.EnqueueTone(padding, 0); err != nil {
			time.Sleep(time.Duration(delayUs) * time.Microsecond)
		}
	}
	return nil
}

func (d *Dispatcher) debug(format string, args ...any) {
	if d.Log == nil {
		return
	}
	d.Log.Debugf(format, args...)
}

// parseOperand parses a decimal integer operand, matching the original's
// get_long (spec.md §7: a malformed numeric operand leaves state
// unchanged rather than erroring the connection).
func parseOperand(operand []byte) (int, bool) {
	if len(operand) == 0 {
		return 0, false
	}
	lv, err := strconv.Atoi(string(operand))
	if err != nil {
		return 0, false
	}
	return lv, true
}

// mustAtoi is used by requests whose original C handler applies its
// clamp unconditionally to whatever get_long produced, treating a
// malformed operand the same as 0 (TX_DELAY, spec.md §4.1 code 'd').
func mustAtoi(operand []byte) int {
	lv, _ := parseOperand(operand)
	return lv
}

