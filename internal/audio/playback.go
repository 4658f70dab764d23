//go:build linux

package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Utterances are written whole, so the buffer holds a long one.
const maxPlaybackBufferSeconds = 60

var (
	malgoInitContext         = malgo.InitContext
	malgoDefaultDeviceConfig = malgo.DefaultDeviceConfig
	malgoInitDevice          = malgo.InitDevice
	malgoContextUninit       = (*malgo.AllocatedContext).Uninit
	malgoDeviceStart         = (*malgo.Device).Start
	malgoDeviceUninit        = (*malgo.Device).Uninit
)

// Playback feeds the default output device from an in-memory queue of
// samples.
type Playback struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu        sync.Mutex
	buf       []int16
	maxBuf    int
	closeOnce sync.Once
}

func StartPlayback(ctx context.Context) (*Playback, error) {
	malgoCtx, err := malgoInitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init malgo context: %w", err)
	}

	deviceConfig := malgoDefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = Channels
	deviceConfig.SampleRate = SampleRate

	player := &Playback{
		ctx:    malgoCtx,
		maxBuf: SampleRate * maxPlaybackBufferSeconds,
	}
	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, _ uint32) {
			player.fillOutput(output)
		},
	}

	device, err := malgoInitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoContextUninit(malgoCtx)
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	if err := malgoDeviceStart(device); err != nil {
		malgoDeviceUninit(device)
		malgoContextUninit(malgoCtx)
		return nil, fmt.Errorf("start playback: %w", err)
	}
	player.device = device

	go func() {
		<-ctx.Done()
		_ = player.Close()
	}()
	return player, nil
}

// Write queues samples. When the queue is full the oldest samples go.
func (p *Playback) Write(samples []int16) {
	if p == nil || len(samples) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxBuf <= 0 {
		p.maxBuf = SampleRate * maxPlaybackBufferSeconds
	}
	if over := len(p.buf) + len(samples) - p.maxBuf; over > 0 {
		if over >= len(p.buf) {
			p.buf = p.buf[:0]
		} else {
			p.buf = p.buf[over:]
		}
	}
	p.buf = append(p.buf, samples...)
}

func (p *Playback) Flush() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.buf = p.buf[:0]
	p.mu.Unlock()
}

func (p *Playback) Pending() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

func (p *Playback) fillOutput(output []byte) {
	if p == nil || len(output) == 0 {
		return
	}
	want := len(output) / 2
	p.mu.Lock()
	use := min(want, len(p.buf))
	for i := 0; i < use; i++ {
		binary.LittleEndian.PutUint16(output[i*2:], uint16(p.buf[i]))
	}
	for i := use; i < want; i++ {
		binary.LittleEndian.PutUint16(output[i*2:], 0)
	}
	if use > 0 {
		n := copy(p.buf, p.buf[use:])
		p.buf = p.buf[:n]
	}
	p.mu.Unlock()
}

func (p *Playback) Close() error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		if p.device != nil {
			malgoDeviceUninit(p.device)
			p.device = nil
		}
		if p.ctx != nil {
			malgoContextUninit(p.ctx)
			p.ctx = nil
		}
	})
	return nil
}
