// Package portaudio implements cwlib.Generator with a real synthesized
// sidetone over the host's soundcard, backing the 'o' (OSS), 'a' (ALSA),
// 'p' (PulseAudio) and 's' (autoselect soundcard) sound-system tags of
// spec.md §3.
//
// Grounded on github.com/gordonklaus/portaudio, listed in the teacher's
// go.mod (doismellburning-samoyed uses it in cmd/gen_tone and
// src/gen_tone.go via cgo for its own sidetone generation) but not
// wired as a pure-Go callback-driven stream anywhere in the teacher
// source; wired here as the one real audio-producing implementation of
// the adapter interface that spec.md §4.4/§6.4 otherwise leaves
// abstract.
package portaudio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/acerion/cwdaemon-go/internal/cwlib"
)

const sampleRate = 44100

// ossRetries and ossRetryDelay match cwdaemon_open_libcw_output in
// _examples/original_source/src/cwdaemon.c: OSS devices can stay briefly
// busy right after a prior close, so reopening retries a handful of
// times with a multi-second sleep rather than failing immediately.
const (
	ossRetries    = 5
	ossRetryDelay = 4 * time.Second
)

// Backend drives a single portaudio output stream, writing a
// continuously-running sine wave whose amplitude is gated on/off and
// whose frequency is set by Sound. Keeping the stream open across marks
// (instead of opening/closing per mark) avoids audible clicks and
// matches how a real sidetone generator behaves.
type Backend struct {
	*cwlib.Scheduler

	mu       sync.Mutex
	stream   *portaudio.Stream
	phase    float64
	freqHz   float64
	volume   float64
	gateOpen bool
}

// New opens the default output device. The caller must have called
// portaudio.Initialize() once at process startup and portaudio.
// Terminate() at shutdown (cmd/cwdaemon does this).
func New() (*Backend, error) {
	b := &Backend{}
	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, 0, b.fill)
	if err != nil {
		return nil, fmt.Errorf("opening portaudio stream: %w", err)
	}
	b.stream = stream
	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("starting portaudio stream: %w", err)
	}
	b.Scheduler = cwlib.NewScheduler(b)
	return b, nil
}

func (b *Backend) fill(out []float32) {
	b.mu.Lock()
	freq, vol, open := b.freqHz, b.volume, b.gateOpen
	phase := b.phase
	b.mu.Unlock()

	if !open || freq <= 0 {
		for i := range out {
			out[i] = 0
		}
		return
	}

	step := 2 * math.Pi * freq / sampleRate
	for i := range out {
		out[i] = float32(vol * math.Sin(phase))
		phase += step
		if phase > 2*math.Pi {
			phase -= 2 * math.Pi
		}
	}

	b.mu.Lock()
	b.phase = phase
	b.mu.Unlock()
}

// Sound implements cwlib.Sounder: gates the oscillator on/off at freqHz
// and volumePct.
func (b *Backend) Sound(on bool, freqHz int, volumePct int) error {
	b.mu.Lock()
	b.gateOpen = on
	if on {
		b.freqHz = float64(freqHz)
		b.volume = float64(volumePct) / 100.0
	}
	b.mu.Unlock()
	return nil
}

// Reopen tears down and recreates the underlying stream, matching the
// "delete any existing generator before creating a new one" contract of
// spec.md §4.4. Only 'o', 'a', 'p', 's' are accepted; for 'o' the open is
// retried up to ossRetries times. Other tags are handled by the null
// backend and are rejected here with an error.
func (b *Backend) Reopen(backend byte) error {
	switch backend {
	case 'a', 'p', 's', 'o':
	default:
		return fmt.Errorf("portaudio backend does not support sound system %q", backend)
	}

	b.mu.Lock()
	old := b.stream
	b.mu.Unlock()
	if old != nil {
		_ = old.Stop()
		_ = old.Close()
	}

	retries := 1
	if backend == 'o' {
		retries = ossRetries
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			time.Sleep(ossRetryDelay)
		}
		stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, 0, b.fill)
		if err != nil {
			lastErr = err
			continue
		}
		if err := stream.Start(); err != nil {
			lastErr = err
			continue
		}
		b.mu.Lock()
		b.stream = stream
		b.mu.Unlock()
		return nil
	}
	return fmt.Errorf("reopening audio stream for sound system %q after %d attempt(s): %w", backend, retries, lastErr)
}

// Close stops the stream and the scheduler goroutine.
func (b *Backend) Close() error {
	_ = b.Scheduler.Close()
	b.mu.Lock()
	stream := b.stream
	b.mu.Unlock()
	if stream == nil {
		return nil
	}
	if err := stream.Stop(); err != nil {
		return err
	}
	return stream.Close()
}
