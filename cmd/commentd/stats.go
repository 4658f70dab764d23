package main

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/commentdeck/commentdeck/internal/buffer"
	"github.com/commentdeck/commentdeck/internal/securelog"
)

const statsInterval = 10 * time.Second

type pipelineStats struct {
	spoken  atomic.Uint64
	skipped atomic.Uint64

	last buffer.Stats

	// undecoded counts wire records the decoder threw away.
	undecoded     func() uint64
	lastUndecoded uint64
}

func newPipelineStats() *pipelineStats {
	return &pipelineStats{undecoded: securelog.Dropped, lastUndecoded: securelog.Dropped()}
}

func (s *pipelineStats) RecordSpoken() {
	if s == nil {
		return
	}
	s.spoken.Add(1)
}

func (s *pipelineStats) RecordSkip() {
	if s == nil {
		return
	}
	s.skipped.Add(1)
}

// LogLoop logs per-interval counters. source is read once per tick.
func (s *pipelineStats) LogLoop(ctx context.Context, source func() buffer.Stats) {
	if s == nil || source == nil {
		return
	}
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Print(s.line(source()))
		}
	}
}

func (s *pipelineStats) line(now buffer.Stats) string {
	received := now.Received - s.last.Received
	committed := now.Committed - s.last.Committed
	dropped := now.Dropped - s.last.Dropped
	s.last = now
	var undecoded uint64
	if s.undecoded != nil {
		total := s.undecoded()
		undecoded = total - s.lastUndecoded
		s.lastUndecoded = total
	}
	return fmt.Sprintf("comment stats: received=%d committed=%d dropped=%d undecoded=%d spoken=%d skipped=%d",
		received, committed, dropped, undecoded, s.spoken.Swap(0), s.skipped.Swap(0))
}
