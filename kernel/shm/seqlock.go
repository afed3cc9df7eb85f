package shm

import (
	"fmt"
	"math"
	"runtime"
	"time"
)

// The frame counter word at OFFSET_FRAME_COUNTER holds the number of
// committed writes. While a write is in progress its top bit is set, so a
// reader that sees the same clear value before and after copying a block
// knows no write overlapped the copy. A peer that only adds one after its
// payload (no in-progress bit) still produces a valid count, and readers
// still reject copies that straddle its increment.
//
// Writers of different blocks serialize on the counter: a write begins by
// moving the word from clear to in-progress with a compare-and-swap, waiting
// while another writer holds it. Readers never hold the counter, so writers
// never wait on readers.
const frameInProgress uint64 = 1 << 63

func frameOf(word uint64) uint64 {
	return word &^ frameInProgress
}

func (s *Segment) loadSeq() uint64 {
	v, _ := s.mem.AtomicLoad64(OFFSET_FRAME_COUNTER)
	return v
}

// beginWrite claims the counter and returns the committed frame it held.
func (s *Segment) beginWrite(b Block) (uint64, error) {
	var deadline time.Time
	for {
		word, err := s.mem.AtomicLoad64(OFFSET_FRAME_COUNTER)
		if err != nil {
			return 0, fmt.Errorf("begin write %s: %w", b.Type, err)
		}
		if word&frameInProgress == 0 {
			ok, err := s.mem.AtomicCompareAndSwap64(OFFSET_FRAME_COUNTER, word, word|frameInProgress)
			if err != nil {
				return 0, fmt.Errorf("begin write %s: %w", b.Type, err)
			}
			if ok {
				return word, nil
			}
			continue
		}

		if deadline.IsZero() {
			WriterWaits.Inc()
			deadline = time.Now().Add(s.writeWait)
		} else if time.Now().After(deadline) {
			return 0, fmt.Errorf("%w: %s after %v", ErrWriterBusy, b.Type, s.writeWait)
		}
		runtime.Gosched()
	}
}

// writeBlock runs the write side of the protocol for one block.
func (s *Segment) writeBlock(b Block, values []float64) error {
	frame, err := s.beginWrite(b)
	if err != nil {
		return err
	}
	for i, v := range values {
		if err := s.mem.AtomicStore64(b.Offset+uint32(i)*VALUE_SIZE, math.Float64bits(v)); err != nil {
			// Release the counter without committing a frame.
			_ = s.mem.AtomicStore64(OFFSET_FRAME_COUNTER, frame)
			return fmt.Errorf("write %s[%d]: %w", b.Type, i, err)
		}
	}
	next := frameOf(frame + 1)
	if err := s.mem.AtomicStore64(OFFSET_FRAME_COUNTER, next); err != nil {
		return fmt.Errorf("commit write %s: %w", b.Type, err)
	}
	s.frame.Set(float64(next))
	s.writes[b.Type].Inc()
	return nil
}

// readBlock runs the read side of the protocol into dst, which must hold
// b.Length values.
func (s *Segment) readBlock(b Block, dst []float64) error {
	for attempt := 0; attempt < s.readRetries; attempt++ {
		if attempt > 0 {
			ReadRetries.Inc()
			runtime.Gosched()
		}
		f0 := s.loadSeq()
		if f0&frameInProgress != 0 {
			continue
		}
		for i := range dst {
			bits, err := s.mem.AtomicLoad64(b.Offset + uint32(i)*VALUE_SIZE)
			if err != nil {
				return fmt.Errorf("read %s[%d]: %w", b.Type, i, err)
			}
			dst[i] = math.Float64frombits(bits)
		}
		if f1 := s.loadSeq(); f0 == f1 {
			s.frame.Set(float64(f0))
			s.reads[b.Type].Inc()
			return nil
		}
	}
	TornReads.Inc()
	return fmt.Errorf("%w: %s after %d attempts", ErrTornRead, b.Type, s.readRetries)
}

// frameValue returns the committed frame count.
func (s *Segment) frameValue() uint64 {
	return frameOf(s.loadSeq())
}
