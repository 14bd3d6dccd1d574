// Package cwlib defines the narrow interface the core uses to drive the
// external CW tone-generation library (spec.md §4.4, §6.4). The library
// itself is explicitly out of scope (spec.md §1); this package only
// specifies the contract and hosts concrete backends in its
// subpackages (null, portaudio).
package cwlib

import "time"

// KeyingCallback fires on every key edge the library generates (spec.md
// §6.4 on_keying_edge). closed == true means the key is down (tone on).
type KeyingCallback func(closed bool)

// QueueLowCallback fires when the library's tone queue has drained to
// its registered watermark (spec.md §6.4 on_queue_low).
type QueueLowCallback func()

// Generator is the CW Library Adapter interface (spec.md §4.4):
//
//	reopen(backend), set_speed/tone/volume/weighting/gap,
//	enqueue_char(c), enqueue_tone(duration, freq), flush(),
//	wait_for_empty(), queue_length(), register_keying_callback(fn),
//	register_queue_low_callback(fn, watermark=1)
//
// Implementations must deliver key-edge callbacks in the same order as
// enqueued tones, and must deliver the queue-low callback only after all
// key-edges of already-enqueued material (spec.md §5 ordering
// guarantees).
type Generator interface {
	// Reopen deletes any existing generator before creating a new one
	// for the named sound backend tag ('n','c','o','a','p','s').
	Reopen(backend byte) error

	SetSpeedWPM(wpm int)
	SetToneHz(hz int)
	SetVolumePct(pct int)
	SetWeightingLib(libUnits int) // 20..80, see params.WeightingToLibrary
	SetGap(dotTimes float64)

	// EnqueueChar enqueues one Morse character for keying.
	EnqueueChar(c byte) error

	// EnqueueTone enqueues a raw tone or silence (freqHz == 0) of the
	// given duration. Used for TX-delay padding (spec.md §4.3) and TUNE
	// (spec.md §4.5).
	EnqueueTone(duration time.Duration, freqHz int) error

	Flush()
	WaitForEmpty()
	QueueLength() int

	RegisterKeyingCallback(fn KeyingCallback)
	RegisterQueueLowCallback(fn QueueLowCallback, watermark int)

	Close() error
}
