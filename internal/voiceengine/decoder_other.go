//go:build !linux

package voiceengine

import "errors"

func newOpusDecoder() (Decoder, error) {
	return nil, errors.New("opus decoding is supported on linux only")
}
