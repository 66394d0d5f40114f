// SPDX-License-Identifier: MIT
// Package recorder writes converted PDM buffers to WAV files. Unsigned8
// output maps onto 8-bit WAV (unsigned, 128 is silence) and the 16-bit
// sizes onto signed 16-bit WAV, so samples are stored exactly as the
// driver delivered them.
package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	applog "pdmcap/internal/log"
	"pdmcap/internal/pdm"
)

var logger = applog.For("recorder")

var (
	ErrClosed       = errors.New("recorder: closed")
	ErrLimitReached = errors.New("recorder: maximum duration reached")
)

// Recorder is a WAV sink. It is safe for use from one writer and one
// closer.
type Recorder struct {
	mu        sync.Mutex
	path      string
	format    pdm.Format
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer // Reusable buffer for format conversion
	frames    int64
	maxFrames int64 // 0 for unlimited
}

// Create opens path for writing, creating parent directories. maxDuration
// of zero records without limit.
func Create(path string, f pdm.Format, maxDuration time.Duration) (*Recorder, error) {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return nil, fmt.Errorf("recorder: invalid format %+v", f)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("recorder: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}

	r := &Recorder{
		path:    path,
		format:  f,
		file:    file,
		encoder: wav.NewEncoder(file, f.SampleRate, f.Size.BitDepth(), f.Channels, 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: f.Channels,
				SampleRate:  f.SampleRate,
			},
			SourceBitDepth: f.Size.BitDepth(),
		},
		maxFrames: int64(maxDuration.Seconds() * float64(f.SampleRate)),
	}
	logger.Infof("recording to %s (%d Hz, %d ch, %d-bit)", path, f.SampleRate, f.Channels, f.Size.BitDepth())
	return r, nil
}

// DefaultFileName returns recording-MM-DD-YYYY-HHMMSS.wav in dir.
func DefaultFileName(dir string, now time.Time) string {
	return filepath.Join(dir, "recording-"+now.UTC().Format("01-02-2006-150405")+".wav")
}

func (r *Recorder) Path() string { return r.path }

// Frames returns the frames written so far.
func (r *Recorder) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Duration returns the recorded length.
func (r *Recorder) Duration() time.Duration {
	return time.Duration(r.Frames()) * time.Second / time.Duration(r.format.SampleRate)
}

// Write appends numSamples converted samples. Once the duration limit is
// reached the buffer is truncated and ErrLimitReached returned.
func (r *Recorder) Write(samples []byte, numSamples int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return ErrClosed
	}

	limited := false
	if r.maxFrames > 0 {
		remaining := (r.maxFrames - r.frames) * int64(r.format.Channels)
		if remaining <= 0 {
			return ErrLimitReached
		}
		if int64(numSamples) >= remaining {
			numSamples = int(remaining)
			limited = true
		}
	}

	if cap(r.sampleBuf.Data) < numSamples {
		r.sampleBuf.Data = make([]int, numSamples)
	}
	data := r.sampleBuf.Data[:numSamples]
	for i := range data {
		data[i] = r.format.Size.Sample(samples, i)
	}
	r.sampleBuf.Data = data

	if err := r.encoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	r.frames += int64(numSamples / r.format.Channels)
	if limited {
		return ErrLimitReached
	}
	return nil
}

// Close finalizes the WAV header and closes the file. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return nil
	}
	err := r.encoder.Close()
	r.encoder = nil
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("recorder: %w", err)
	}
	logger.Infof("saved %s (%d frames)", r.path, r.frames)
	return nil
}
