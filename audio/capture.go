package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// StartError reports that the input device or its format converter could
// not be brought up. The session is dead but a later Start may succeed
// (device unplugged, permissions fixed, etc).
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("starting capture: %v", e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// Capture bridges a live input device to the fixed 16 kHz mono float
// format the rest of the pipeline assumes. Every block delivered by the
// device callback is independently downmixed and resampled, then appended
// to the shared RingBuffer. Conversion happens on the device's callback
// goroutine; nothing downstream ever blocks it.
type Capture struct {
	device CaptureDevice
	ring   *RingBuffer

	deviceRate     int
	deviceChannels int

	// RawTap, when set before Start, receives each raw S16LE block as
	// delivered by the device. Used for the live VAD monitor.
	RawTap func(data []byte)

	running atomic.Bool
	level   atomic.Uint64 // float64 bits of the last block's RMS

	mu sync.Mutex // serializes Start/Stop
}

// NewCapture wires a capture device to ring. deviceRate and deviceChannels
// describe the format the device actually delivers; when they already match
// the pipeline format conversion reduces to an int16-to-float copy.
func NewCapture(device CaptureDevice, ring *RingBuffer, deviceRate, deviceChannels int) *Capture {
	if deviceRate <= 0 {
		deviceRate = SampleRate
	}
	if deviceChannels <= 0 {
		deviceChannels = Channels
	}
	return &Capture{
		device:         device,
		ring:           ring,
		deviceRate:     deviceRate,
		deviceChannels: deviceChannels,
	}
}

// Ring returns the buffer this capture writes into.
func (c *Capture) Ring() *RingBuffer { return c.ring }

// Level returns the RMS of the most recently converted block, in [0, 1].
// Diagnostic only; it is never used to gate audio.
func (c *Capture) Level() float64 {
	return math.Float64frombits(c.level.Load())
}

// Running reports whether a session is active.
func (c *Capture) Running() bool { return c.running.Load() }

// DeviceName returns the backing device's display name.
func (c *Capture) DeviceName() string { return c.device.DeviceName() }

// Start installs the conversion callback and opens the input stream. It
// returns a *StartError when the device cannot be started. Starting an
// already-running capture is an error; only one session may be active.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		return &StartError{Err: fmt.Errorf("capture already running")}
	}

	c.device.SetCallback(func(data []byte, _ uint32) {
		if tap := c.RawTap; tap != nil && len(data) > 0 {
			tap(data)
		}
		samples, err := convertBlock(data, c.deviceChannels, c.deviceRate)
		if err != nil || len(samples) == 0 {
			// A malformed block is dropped; the capture loop survives.
			return
		}
		c.level.Store(math.Float64bits(rmsOf(samples)))
		c.ring.Append(samples)
	})

	if err := c.device.Start(); err != nil {
		c.device.ClearCallback()
		return &StartError{Err: err}
	}
	c.running.Store(true)
	return nil
}

// Stop detaches the callback and halts the stream. Calling Stop when not
// running is a no-op.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running.Load() {
		return
	}
	c.device.Stop()
	c.device.ClearCallback()
	c.running.Store(false)
	c.level.Store(0)
}

// convertBlock turns one raw S16LE device block into 16 kHz mono float32
// samples. Each block is converted independently; no resampler state is
// carried between blocks.
func convertBlock(data []byte, channels, rate int) ([]float32, error) {
	if len(data) < 2 {
		return nil, nil
	}
	if channels <= 0 || rate <= 0 {
		return nil, fmt.Errorf("invalid block format: %d ch @ %d Hz", channels, rate)
	}
	mono := pcmToFloat32Mono(data, channels)
	if rate == SampleRate {
		return mono, nil
	}
	return resampleLinear(mono, rate, SampleRate), nil
}

// pcmToFloat32Mono decodes 16-bit signed little-endian PCM and downmixes
// to mono by averaging channels per frame. Samples are normalized to
// [-1, 1]. A trailing odd byte is ignored.
func pcmToFloat32Mono(data []byte, channels int) []float32 {
	if channels <= 1 {
		n := len(data) / 2
		out := make([]float32, n)
		for i := 0; i < n; i++ {
			s := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
			out[i] = float32(s) / 32768.0
		}
		return out
	}
	frames := len(data) / (2 * channels)
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			idx := (i*channels + ch) * 2
			s := int16(binary.LittleEndian.Uint16(data[idx : idx+2]))
			sum += float32(s) / 32768.0
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// resampleLinear converts in from rate `from` to rate `to` by linear
// interpolation. Quality is adequate for speech; whisper models are fairly
// tolerant of interpolation artifacts at these rates.
func resampleLinear(in []float32, from, to int) []float32 {
	if from == to || len(in) == 0 {
		return in
	}
	n := int(float64(len(in)) * float64(to) / float64(from))
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}

func rmsOf(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}
