//go:build !linux

package audio

import (
	"context"
	"fmt"
)

type Playback struct{}

func StartPlayback(context.Context) (*Playback, error) {
	return nil, fmt.Errorf("audio playback is supported on linux only")
}

func (p *Playback) Write([]int16) {}

func (p *Playback) Flush() {}

func (p *Playback) Pending() int { return 0 }

func (p *Playback) Close() error {
	return nil
}
