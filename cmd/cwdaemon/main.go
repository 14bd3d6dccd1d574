// Command cwdaemon is a UDP-controlled CW keying daemon for amateur
// radio (spec.md §1): it listens for plain text and control requests on
// a UDP port and keys a device (serial pins, GPIO lines, a rig-control
// daemon, or a sound-only null device) accordingly.
//
// Grounded on _examples/doismellburning-samoyed/cmd/samoyed-appserver's
// main-package shape (parse flags, build a logger, construct the
// long-lived service, run it until signalled) and on
// _examples/original_source/src/cwdaemon.c's main() (option parsing,
// device open, libcw init, daemonize, register signal handlers, enter
// main loop).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"

	"github.com/acerion/cwdaemon-go/internal/announce"
	"github.com/acerion/cwdaemon-go/internal/config"
	"github.com/acerion/cwdaemon-go/internal/cwlib"
	cwlibnull "github.com/acerion/cwdaemon-go/internal/cwlib/null"
	cwlibportaudio "github.com/acerion/cwdaemon-go/internal/cwlib/portaudio"
	"github.com/acerion/cwdaemon-go/internal/daemon"
	"github.com/acerion/cwdaemon-go/internal/device"
	"github.com/acerion/cwdaemon-go/internal/device/gpio"
	"github.com/acerion/cwdaemon-go/internal/device/hamlib"
	devicenull "github.com/acerion/cwdaemon-go/internal/device/null"
	"github.com/acerion/cwdaemon-go/internal/device/serial"
	"github.com/acerion/cwdaemon-go/internal/logging"
	"github.com/acerion/cwdaemon-go/internal/params"
	"github.com/acerion/cwdaemon-go/internal/protocol"
	"github.com/acerion/cwdaemon-go/internal/ptt"
	"github.com/acerion/cwdaemon-go/internal/reply"
	"github.com/acerion/cwdaemon-go/internal/textqueue"
)

// serialBaud matches the original's fixed ttyS0 line speed; the serial
// CWDEVICE backend keys over modem control lines, not the UART's data
// path, so the actual baud rate carried on the wire is irrelevant as
// long as the port opens.
const serialBaud = 1200

func main() {
	cfg, showHelp, showVersion, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if showHelp {
		fmt.Printf("cwdaemon - a UDP-controlled CW keying daemon\n\nUsage: cwdaemon [OPTIONS]\n")
		os.Exit(0)
	}
	if showVersion {
		fmt.Println(config.Version)
		os.Exit(0)
	}

	verbosity, err := logging.ParseVerbosity(cfg.Verbosity)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, closer, err := logging.New(verbosity, cfg.DebugFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := run(cfg, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(cfg config.Config, logger *log.Logger) error {
	if err := daemon.SetPriority(cfg.Priority); err != nil {
		logger.Warnf("setting priority: %v", err)
	}
	if !cfg.NoFork {
		if err := daemon.Daemonize(); err != nil {
			return fmt.Errorf("daemonizing: %w", err)
		}
	}

	usePortAudio := needsPortAudio(cfg.Defaults.Sound)
	portAudioReady := false
	if usePortAudio {
		if err := portaudio.Initialize(); err != nil {
			logger.Warnf("portaudio init failed, falling back to the null sound backend: %v", err)
			usePortAudio = false
		} else {
			portAudioReady = true
		}
	}
	defer func() {
		if portAudioReady {
			portaudio.Terminate()
		}
	}()

	gen, err := newGenerator(cfg.Defaults.Sound, usePortAudio)
	if err != nil {
		return fmt.Errorf("opening sound backend: %w", err)
	}

	openDevice := func(name string) (device.Device, error) { return probeDevice(name, cfg) }

	dev, err := openDevice(cfg.CWDevice)
	if err != nil {
		return fmt.Errorf("opening keying device %q: %w", cfg.CWDevice, err)
	}

	p := params.New(cfg.Defaults)
	pttCtl := ptt.New(dev)
	var replySlot reply.Slot
	player := textqueue.New(gen, pttCtl, p, &replySlot)

	dispatcher := &protocol.Dispatcher{
		Params: p,
		PTT:    pttCtl,
		Player: player,
		Reply:  &replySlot,
		Gen:    gen,
		Dev:    dev,
		Open:   openDevice,
		Log:    logger,
	}
	defer func() { _ = dispatcher.Gen.Close() }()
	defer func() { _ = dispatcher.Dev.Close() }()

	loop, err := daemon.New(cfg.Port, dispatcher, logger)
	if err != nil {
		return fmt.Errorf("binding UDP port %d: %w", cfg.Port, err)
	}

	// The generator's own goroutine (internal/cwlib.Scheduler.run) fires
	// these callbacks; marshal the actual work back onto the loop
	// goroutine instead of touching dev/pttCtl/replySlot from there
	// directly (spec.md §5, §9). The keying callback drives the
	// transmitter's actual CW line, independent of the sidetone the
	// generator itself plays (spec.md §6.4 on_keying_edge); the
	// queue-low callback delivers any armed reply, clears ECHO, and
	// applies the QueueLow PTT transition (spec.md §4.3, §4.6).
	//
	// registerGenCallbacks is reapplied to any Generator dispatcher.OpenGen
	// builds when a SOUND_SYSTEM request crosses backend families
	// (case 'f' in internal/protocol), since cwlib.Scheduler callbacks are
	// per-instance; the bodies act on dispatcher.Gen rather than closing
	// over a particular instance, so they keep following the swap.
	registerGenCallbacks := func(g cwlib.Generator) {
		g.RegisterKeyingCallback(func(closed bool) {
			loop.PostEvent(func() {
				if err := dispatcher.Dev.CW(closed); err != nil {
					logger.Errorf("keying device: %v", err)
				}
			})
		})
		g.RegisterQueueLowCallback(func() {
			loop.PostEvent(func() {
				if replySlot.Armed() {
					if err := replySlot.Deliver(dispatcher.Sender); err != nil {
						logger.Errorf("delivering reply: %v", err)
					}
					pttCtl.DisarmEcho()
					if pttCtl.HasAuto() {
						// Re-arm a future queue-low event instead of dropping
						// AUTO-PTT on this same callback invocation, matching
						// cwdaemon_tone_queue_low_callback's two cw_queue_tone(1,0)
						// calls after clearing PTT_ACTIVE_ECHO.
						if err := dispatcher.Gen.EnqueueTone(time.Microsecond, 0); err != nil {
							logger.Errorf("re-arming queue-low event: %v", err)
						}
						if err := dispatcher.Gen.EnqueueTone(time.Microsecond, 0); err != nil {
							logger.Errorf("re-arming queue-low event: %v", err)
						}
						return
					}
				}
				if err := pttCtl.QueueLow(player.PendingEmpty(), dispatcher.Gen.QueueLength()); err != nil {
					logger.Errorf("queue-low PTT transition: %v", err)
				}
			})
		}, 1)
	}
	registerGenCallbacks(gen)

	// OpenGen lets a SOUND_SYSTEM request (protocol.go case 'f') cross
	// backend families at runtime (null <-> portaudio), which Reopen
	// alone cannot do since each family is its own concrete backend.
	// PortAudio is initialized lazily on the first crossing into it and
	// then left initialized for the rest of the process, mirroring the
	// upfront portAudioReady latch above.
	dispatcher.OpenGen = func(tag byte) (cwlib.Generator, error) {
		sound, ok := params.ParseSoundSystem(tag)
		if !ok {
			return nil, fmt.Errorf("invalid sound system %q", tag)
		}
		wantsPortAudio := needsPortAudio(sound)
		if wantsPortAudio && !portAudioReady {
			if err := portaudio.Initialize(); err != nil {
				return nil, fmt.Errorf("portaudio init: %w", err)
			}
			portAudioReady = true
		}
		newGen, err := newGenerator(sound, wantsPortAudio)
		if err != nil {
			return nil, err
		}
		registerGenCallbacks(newGen)
		return newGen, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Announce {
		stopAnnounce, err := announce.Start(ctx, logger, cfg.AnnounceName, cfg.Port)
		if err != nil {
			logger.Warnf("DNS-SD announce failed, continuing without it: %v", err)
		} else {
			defer stopAnnounce()
		}
	}

	logger.Infof("listening on UDP port %d, keying device %q", cfg.Port, cfg.CWDevice)
	return loop.Run(ctx)
}

// needsPortAudio reports whether sound names one of the tags the
// portaudio backend implements ('a', 'p', 's', 'o'); 'n' and 'c' are
// handled by the dependency-free null backend instead (spec.md §3).
func needsPortAudio(sound params.SoundSystem) bool {
	switch sound {
	case params.SoundALSA, params.SoundPulseAudio, params.SoundAutoselect, params.SoundOSS:
		return true
	default:
		return false
	}
}

// newGenerator builds the Generator backing sound: the null backend for
// 'n'/'c' (or whenever portaudio could not be initialized), PortAudio
// otherwise (spec.md §4.4, §6.4).
func newGenerator(sound params.SoundSystem, usePortAudio bool) (cwlib.Generator, error) {
	if !usePortAudio {
		gen := cwlibnull.New(os.Stderr)
		tag := byte('n')
		if sound == params.SoundConsole {
			tag = 'c'
		}
		_ = gen.Reopen(tag)
		return gen, nil
	}
	return cwlibportaudio.New()
}

// probeDevice implements the CWDEVICE naming convention spec.md §6.3
// leaves open-ended beyond "a keying device name": "null" selects the
// sound-only backend; a "/dev/..." path selects the serial backend with
// -o-configured pin assignments; "gpio:chip=...,cw=N,ptt=N[,fs=N]
// [,invertfs=1][,band=N+N+N+N]" selects a GPIO chip; "hamlib:model,port"
// selects a rig-control backend. Anything else is rejected with an
// error rather than falling back to null, since dev_is_tty/dev_is_parport
// in the original are declared but never defined for the filtered
// original_source/ tree this rewrite was distilled from (see DESIGN.md).
func probeDevice(name string, cfg config.Config) (device.Device, error) {
	switch {
	case name == "" || name == "null":
		return devicenull.New(), nil

	case strings.HasPrefix(name, "/dev/"):
		opts, err := cfg.SerialOptions()
		if err != nil {
			return nil, err
		}
		return serial.Open(name, serialBaud, opts)

	case strings.HasPrefix(name, "gpio:"):
		lines, err := parseGPIOSpec(strings.TrimPrefix(name, "gpio:"))
		if err != nil {
			return nil, err
		}
		return gpio.Open(lines)

	case strings.HasPrefix(name, "hamlib:"):
		model, port, err := parseHamlibSpec(strings.TrimPrefix(name, "hamlib:"))
		if err != nil {
			return nil, err
		}
		return hamlib.Open(model, port)

	default:
		return nil, fmt.Errorf("unrecognized keying device %q; expected null, a /dev/... path, gpio:..., or hamlib:...", name)
	}
}

// parseGPIOSpec parses the comma-separated key=value body of a
// "gpio:..." CWDEVICE name into a gpio.Lines value. Unset optional
// offsets default to -1 (unused), matching gpio.Lines' own convention.
func parseGPIOSpec(body string) (gpio.Lines, error) {
	lines := gpio.Lines{FootswitchOffset: -1}
	for i := range lines.BandOffsets {
		lines.BandOffsets[i] = -1
	}

	for _, field := range strings.Split(body, ",") {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			return gpio.Lines{}, fmt.Errorf("invalid gpio device field %q, expected key=value", field)
		}
		switch key {
		case "chip":
			lines.Chip = val
		case "cw":
			n, err := strconv.Atoi(val)
			if err != nil {
				return gpio.Lines{}, fmt.Errorf("invalid gpio cw offset %q: %w", val, err)
			}
			lines.CWOffset = n
		case "ptt":
			n, err := strconv.Atoi(val)
			if err != nil {
				return gpio.Lines{}, fmt.Errorf("invalid gpio ptt offset %q: %w", val, err)
			}
			lines.PTTOffset = n
		case "fs":
			n, err := strconv.Atoi(val)
			if err != nil {
				return gpio.Lines{}, fmt.Errorf("invalid gpio footswitch offset %q: %w", val, err)
			}
			lines.FootswitchOffset = n
		case "invertfs":
			lines.InvertFootswitch = val == "1" || strings.EqualFold(val, "true")
		case "band":
			offsets := strings.Split(val, "+")
			for i, off := range offsets {
				if i >= len(lines.BandOffsets) {
					break
				}
				n, err := strconv.Atoi(off)
				if err != nil {
					return gpio.Lines{}, fmt.Errorf("invalid gpio band offset %q: %w", off, err)
				}
				lines.BandOffsets[i] = n
			}
		default:
			return gpio.Lines{}, fmt.Errorf("unknown gpio device field %q", key)
		}
	}
	if lines.Chip == "" {
		return gpio.Lines{}, fmt.Errorf("gpio device name missing chip=...")
	}
	return lines, nil
}

// parseHamlibSpec parses "model,port" from a "hamlib:..." CWDEVICE name.
func parseHamlibSpec(body string) (model int, port string, err error) {
	modelStr, port, ok := strings.Cut(body, ",")
	if !ok {
		return 0, "", fmt.Errorf("invalid hamlib device %q, expected \"model,port\"", body)
	}
	model, err = strconv.Atoi(modelStr)
	if err != nil {
		return 0, "", fmt.Errorf("invalid hamlib model %q: %w", modelStr, err)
	}
	return model, port, nil
}
