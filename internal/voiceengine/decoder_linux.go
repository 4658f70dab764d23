//go:build linux

package voiceengine

import (
	"github.com/hraban/opus"

	"github.com/commentdeck/commentdeck/internal/audio"
)

func newOpusDecoder() (Decoder, error) {
	d, err := opus.NewDecoder(audio.SampleRate, audio.Channels)
	if err != nil {
		return nil, err
	}
	return d, nil
}
