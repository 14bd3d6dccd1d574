// Package null implements the cwlib.Generator interface without opening
// any audio device. It backs the 'n' (none) and 'c' (console-buzzer)
// sound-system tags (spec.md §3): 'n' is silent, 'c' rings the terminal
// bell on every mark, the closest dependency-free equivalent of the
// original's CW_AUDIO_CONSOLE PC-speaker backend
// (_examples/original_source/src/cwdaemon.c references SOUND_SYSTEM 'c').
package null

import (
	"fmt"
	"io"

	"github.com/acerion/cwdaemon-go/internal/cwlib"
)

// Backend is a dependency-free cwlib.Generator: either fully silent or
// ringing the terminal bell, selected by Reopen's backend tag.
type Backend struct {
	*cwlib.Scheduler
	out     io.Writer
	console bool
}

// New builds a Backend that writes its console bell (if any) to out.
func New(out io.Writer) *Backend {
	b := &Backend{out: out}
	b.Scheduler = cwlib.NewScheduler(b)
	return b
}

// Sound implements cwlib.Sounder.
func (b *Backend) Sound(on bool, _ int, _ int) error {
	if on && b.console {
		fmt.Fprint(b.out, "\a")
	}
	return nil
}

// Reopen switches between silent ('n') and console-buzzer ('c') modes.
func (b *Backend) Reopen(backend byte) error {
	switch backend {
	case 'n':
		b.console = false
	case 'c':
		b.console = true
	default:
		return fmt.Errorf("null backend does not support sound system %q", backend)
	}
	return nil
}
