// SPDX-License-Identifier: MIT
package recorder

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"pdmcap/internal/pdm"
)

func signed16Bytes(v ...int16) []byte {
	b := make([]byte, 2*len(v))
	for i, s := range v {
		binary.NativeEndian.PutUint16(b[2*i:], uint16(s))
	}
	return b
}

func decode(t *testing.T, path string) *wav.Decoder {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	d := wav.NewDecoder(f)
	d.ReadInfo()
	if err := d.Err(); err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	return d
}

func TestRecordSigned16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mic.wav")
	r, err := Create(path, pdm.Format{SampleRate: 16000, Channels: 1, Size: pdm.Signed16}, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := r.Write(signed16Bytes(-32767, 0, 1600), 3); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := r.Write(signed16Bytes(32767), 1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if err := r.Write(signed16Bytes(1), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v", err)
	}

	d := decode(t, path)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer: %v", err)
	}
	if d.SampleRate != 16000 || d.NumChans != 1 || d.BitDepth != 16 {
		t.Errorf("header: %d Hz, %d ch, %d bit", d.SampleRate, d.NumChans, d.BitDepth)
	}
	want := []int{-32767, 0, 1600, 32767}
	if len(buf.Data) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(want))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], want[i])
		}
	}
	if r.Frames() != 4 {
		t.Errorf("Frames = %d", r.Frames())
	}
}

func TestRecordUnsigned8Stereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u8.wav")
	r, err := Create(path, pdm.Format{SampleRate: 8000, Channels: 2, Size: pdm.Unsigned8}, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Write([]byte{0, 255, 128, 129}, 4); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	d := decode(t, path)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if d.BitDepth != 8 || d.NumChans != 2 {
		t.Errorf("header: %d ch, %d bit", d.NumChans, d.BitDepth)
	}
	for i, want := range []int{0, 255, 128, 129} {
		if buf.Data[i] != want {
			t.Errorf("sample %d = %d, want %d", i, buf.Data[i], want)
		}
	}
	if r.Frames() != 2 {
		t.Errorf("Frames = %d, want 2", r.Frames())
	}
}

func TestRecordDurationLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limit.wav")
	// 1 ms at 8 kHz is 8 frames.
	r, err := Create(path, pdm.Format{SampleRate: 8000, Channels: 1, Size: pdm.RawSigned16}, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if err := r.Write(signed16Bytes(make([]int16, 5)...), 5); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := r.Write(signed16Bytes(make([]int16, 5)...), 5); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("second Write = %v, want ErrLimitReached", err)
	}
	if r.Frames() != 8 {
		t.Errorf("Frames = %d, want 8", r.Frames())
	}
	if err := r.Write(signed16Bytes(1), 1); !errors.Is(err, ErrLimitReached) {
		t.Errorf("Write past limit = %v", err)
	}
	if r.Duration() != time.Millisecond {
		t.Errorf("Duration = %v", r.Duration())
	}
}

func TestCreateInvalidFormat(t *testing.T) {
	if _, err := Create(filepath.Join(t.TempDir(), "x.wav"), pdm.Format{}, 0); err == nil {
		t.Error("expected error for empty format")
	}
}

func TestDefaultFileName(t *testing.T) {
	now := time.Date(2025, 3, 9, 14, 5, 7, 0, time.UTC)
	got := DefaultFileName("recordings", now)
	want := filepath.Join("recordings", "recording-03-09-2025-140507.wav")
	if got != want {
		t.Errorf("DefaultFileName = %q, want %q", got, want)
	}
}
