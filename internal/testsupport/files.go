package testsupport

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// WriteSilentWAV writes a 16-bit mono PCM WAV file of the given duration.
// Stages that probe or cut audio through faked tools only need the file to
// exist, but a valid header keeps it usable with real ffmpeg too.
func WriteSilentWAV(t testing.TB, path string, seconds float64, sampleRate int) {
	t.Helper()

	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if seconds < 0 {
		seconds = 0
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const bytesPerSample = 2
	dataSize := uint32(seconds*float64(sampleRate)) * bytesPerSample
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36 + dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(1),
		uint32(sampleRate),
		uint32(sampleRate * bytesPerSample),
		uint16(bytesPerSample),
		uint16(16),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}
	for _, field := range header {
		if err := binary.Write(f, binary.LittleEndian, field); err != nil {
			t.Fatalf("write header %s: %v", path, err)
		}
	}
	if err := f.Truncate(int64(44 + dataSize)); err != nil {
		t.Fatalf("pad %s: %v", path, err)
	}
}
