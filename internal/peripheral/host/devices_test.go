// SPDX-License-Identifier: MIT
package host

import (
	"bytes"
	"strings"
	"testing"
)

func TestDeviceKind(t *testing.T) {
	tests := []struct {
		name    string
		in, out int
		want    string
	}{
		{"Microphone", 1, 0, "Input"},
		{"Speakers", 0, 2, "Output"},
		{"Headset", 1, 2, "Input/Output"},
		{"Null", 0, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Device{MaxInputChannels: tt.in, MaxOutputChannels: tt.out}
			if got := d.Kind(); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintDevices(t *testing.T) {
	devices := []Device{
		{ID: 0, Name: "Built-in Microphone", MaxInputChannels: 1, DefaultSampleRate: 48000, LowLatencyMs: 2.5, HighLatencyMs: 10},
		{ID: 1, Name: "USB Headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 16000},
	}

	var buf bytes.Buffer
	PrintDevices(&buf, devices)
	out := buf.String()

	for _, want := range []string{
		"[0] Built-in Microphone (Input)",
		"Default sample rate: 48000 Hz",
		"Latency: Low=2.50ms, High=10.00ms",
		"[1] USB Headset (Input/Output)",
		"Input channels: 1, Output channels: 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
