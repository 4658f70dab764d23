package audio

import "time"

const (
	SampleRate = 48000
	Channels   = 1
)

// Sink receives decoded PCM. Pending reports samples not yet handed to the
// device; Flush drops them.
type Sink interface {
	Write(samples []int16)
	Flush()
	Pending() int
}

// Duration is how long n mono samples take to play.
func Duration(n int) time.Duration {
	return time.Duration(n) * time.Second / SampleRate
}
