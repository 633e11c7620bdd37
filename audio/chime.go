// Package audio plays the short chime that accompanies notifications.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

const sampleRate = 16000

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

// chimePCM is a rising two-note cue.
var chimePCM = synthesizeCue([]toneSpec{
	{frequencyHz: 784, duration: 60 * time.Millisecond, volume: 0.2},
	{frequencyHz: 1047, duration: 90 * time.Millisecond, volume: 0.2},
})

// Chime plays the notification cue on the default output device.
type Chime struct {
	malgoCtx *malgo.AllocatedContext
	samples  []int16

	// One cue at a time; overlapping requests are dropped.
	playing sync.Mutex
}

// NewChime initializes the audio backend.
func NewChime() (*Chime, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	return &Chime{malgoCtx: ctx, samples: chimePCM}, nil
}

// Play renders the cue and returns once it has finished.
func (c *Chime) Play() error {
	if !c.playing.TryLock() {
		return nil
	}
	defer c.playing.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	src := &pcmReader{samples: c.samples, done: make(chan struct{})}
	device, err := malgo.InitDevice(c.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(pOutputSample, _ []byte, _ uint32) {
			src.fill(pOutputSample)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	select {
	case <-src.done:
		// Let the last buffer drain.
		time.Sleep(50 * time.Millisecond)
	case <-time.After(cueDuration(c.samples) + time.Second):
	}
	device.Stop()
	return nil
}

// Close releases the audio backend.
func (c *Chime) Close() error {
	c.playing.Lock()
	defer c.playing.Unlock()

	if c.malgoCtx != nil {
		_ = c.malgoCtx.Uninit()
		c.malgoCtx.Free()
		c.malgoCtx = nil
	}
	return nil
}

// pcmReader feeds mono S16 samples to the device callback.
type pcmReader struct {
	mu      sync.Mutex
	samples []int16
	cursor  int
	done    chan struct{}
	closed  bool
}

func (r *pcmReader) fill(out []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(out) / 2
	for i := 0; i < n; i++ {
		var s int16
		if r.cursor < len(r.samples) {
			s = r.samples[r.cursor]
			r.cursor++
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}

	if r.cursor >= len(r.samples) && !r.closed {
		r.closed = true
		close(r.done)
	}
}

func cueDuration(samples []int16) time.Duration {
	return time.Duration(len(samples)) * time.Second / sampleRate
}

func synthesizeCue(parts []toneSpec) []int16 {
	if len(parts) == 0 {
		return nil
	}
	gapSamples := samplesForDuration(20 * time.Millisecond)

	var pcm []int16
	for i, part := range parts {
		pcm = append(pcm, synthesizeTone(part)...)
		if i < len(parts)-1 {
			pcm = append(pcm, make([]int16, gapSamples)...)
		}
	}
	return pcm
}

// synthesizeTone renders a sine with a short linear attack and release so
// the cue does not click.
func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}

	ramp := min(n/10, sampleRate/200)
	ramp = max(ramp, 1)

	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = math.Min(envelope, float64(tail)/float64(ramp))
		}
		t := float64(i) / sampleRate
		pcm[i] = int16(math.Round(math.Sin(2*math.Pi*spec.frequencyHz*t) * spec.volume * envelope * 32767))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * sampleRate))
}
