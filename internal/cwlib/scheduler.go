package cwlib

import (
	"sync"
	"time"
)

// Sounder is the low-level tone-emission primitive a concrete backend
// supplies: turn the sidetone on or off, at a given frequency and
// volume. Scheduler calls it from its own goroutine, modeling the
// library's own "audio thread" described in spec.md §5.
type Sounder interface {
	Sound(on bool, freqHz int, volumePct int) error
}

type queueItem struct {
	char     byte // 0 if this item is a raw tone rather than a character
	duration time.Duration
	freqHz   int
}

// Scheduler implements the bulk of the Generator interface (spec.md
// §4.4) against an injected Sounder, so concrete backends (null,
// portaudio) only need to supply tone emission, not queue bookkeeping.
// It runs its own goroutine to play queued items, mirroring the
// external library's own audio thread (spec.md §5) and delivering
// key-edge and queue-low callbacks from that goroutine, in enqueued
// order, with the queue-low callback only after all key-edges of
// already-enqueued material (spec.md §5 ordering guarantees).
type Scheduler struct {
	sound Sounder

	mu        sync.Mutex
	queue     []queueItem
	speedWPM  int
	toneHz    int
	volumePct int
	weighting int // library units, 20..80
	gapDots   float64

	keyingCB    KeyingCallback
	queueLowCB  QueueLowCallback
	watermark   int

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

// NewScheduler starts the background player goroutine for sound.
func NewScheduler(sound Sounder) *Scheduler {
	s := &Scheduler{
		sound:     sound,
		speedWPM:  20,
		toneHz:    800,
		volumePct: 70,
		weighting: 50,
		watermark: 1,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Scheduler) SetSpeedWPM(wpm int) {
	s.mu.Lock()
	s.speedWPM = wpm
	s.mu.Unlock()
}

func (s *Scheduler) SetToneHz(hz int) {
	s.mu.Lock()
	s.toneHz = hz
	s.mu.Unlock()
}

func (s *Scheduler) SetVolumePct(pct int) {
	s.mu.Lock()
	s.volumePct = pct
	s.mu.Unlock()
}

func (s *Scheduler) SetWeightingLib(libUnits int) {
	s.mu.Lock()
	s.weighting = libUnits
	s.mu.Unlock()
}

func (s *Scheduler) SetGap(dotTimes float64) {
	s.mu.Lock()
	s.gapDots = dotTimes
	s.mu.Unlock()
}

func (s *Scheduler) RegisterKeyingCallback(fn KeyingCallback) {
	s.mu.Lock()
	s.keyingCB = fn
	s.mu.Unlock()
}

func (s *Scheduler) RegisterQueueLowCallback(fn QueueLowCallback, watermark int) {
	s.mu.Lock()
	s.queueLowCB = fn
	s.watermark = watermark
	s.mu.Unlock()
}

func (s *Scheduler) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) Flush() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
}

// WaitForEmpty blocks (with a short poll) until the queue has drained.
// A real library would block on a condition variable signalled by its
// audio thread; polling here keeps the scheduler lock-free across the
// package boundary and is adequate since queues are tiny (single
// characters' worth of tone).
func (s *Scheduler) WaitForEmpty() {
	for s.QueueLength() > 0 {
		time.Sleep(time.Millisecond)
	}
}

// EnqueueChar converts c into its Morse elements at the current speed
// and weighting and appends them to the queue.
func (s *Scheduler) EnqueueChar(c byte) error {
	pattern, ok := Morse[toLowerASCII(c)]
	s.mu.Lock()
	wpm := s.speedWPM
	weighting := s.weighting
	gapDots := s.gapDots
	toneHz := s.toneHz
	s.mu.Unlock()

	dit := time.Duration(DitDurationMs(wpm) * float64(time.Millisecond))
	// weighting 50 is neutral; each unit above/below lengthens/shortens
	// the mark relative to the space by a small fraction of a dot.
	markBias := time.Duration(float64(dit) * float64(weighting-50) / 100.0)

	if !ok || pattern == "" {
		// Unknown or space: treat as a word gap.
		s.enqueue(queueItem{duration: 7 * dit, freqHz: 0})
		return nil
	}

	var items []queueItem
	extraGap := time.Duration(gapDots * float64(dit))
	for i, el := range pattern {
		var mark time.Duration
		switch el {
		case '.':
			mark = dit + markBias
		case '-':
			mark = 3*dit + markBias
		}
		if mark < time.Microsecond {
			mark = time.Microsecond
		}
		items = append(items, queueItem{char: c, duration: mark, freqHz: toneHz})
		if i != len(pattern)-1 {
			items = append(items, queueItem{duration: dit - markBias, freqHz: 0})
		}
	}
	items = append(items, queueItem{duration: 3*dit + extraGap, freqHz: 0})

	s.mu.Lock()
	s.queue = append(s.queue, items...)
	s.mu.Unlock()
	s.notify()
	return nil
}

// EnqueueTone appends a raw tone or silence item, used for TX-delay
// padding (spec.md §4.3) and TUNE (spec.md §4.5).
func (s *Scheduler) EnqueueTone(duration time.Duration, freqHz int) error {
	s.enqueue(queueItem{duration: duration, freqHz: freqHz})
	return nil
}

func (s *Scheduler) enqueue(item queueItem) {
	s.mu.Lock()
	s.queue = append(s.queue, item)
	s.mu.Unlock()
	s.notify()
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Close() error {
	close(s.quit)
	<-s.done
	return nil
}

func (s *Scheduler) run() {
	defer close(s.done)
	for {
		item, ok := s.pop()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.quit:
				return
			}
		}

		freq := item.freqHz
		on := freq != 0
		if on {
			s.mu.Lock()
			cb := s.keyingCB
			vol := s.volumePct
			s.mu.Unlock()
			_ = s.sound.Sound(true, freq, vol)
			if cb != nil {
				cb(true)
			}
		}

		select {
		case <-time.After(item.duration):
		case <-s.quit:
			return
		}

		if on {
			s.mu.Lock()
			cb := s.keyingCB
			s.mu.Unlock()
			_ = s.sound.Sound(false, 0, 0)
			if cb != nil {
				cb(false)
			}
		}

		s.maybeFireQueueLow()
	}
}

func (s *Scheduler) pop() (queueItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return queueItem{}, false
	}
	item := s.queue[0]
	s.queue = s.queue[1:]
	return item, true
}

func (s *Scheduler) maybeFireQueueLow() {
	s.mu.Lock()
	length := len(s.queue)
	watermark := s.watermark
	cb := s.queueLowCB
	s.mu.Unlock()

	if cb != nil && length <= watermark {
		cb()
	}
}

func toLowerASCII(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
