package testsupport

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// WAVBytes builds a minimal mono 16-bit PCM WAV payload of the given duration
// containing a quiet sine tone. Deterministic for a given argument set.
func WAVBytes(t testing.TB, sampleRate int, seconds float64) []byte {
	t.Helper()

	sampleCount := int(float64(sampleRate) * seconds)
	dataSize := sampleCount * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize)) //nolint:errcheck
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))              //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint16(1))               //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint16(1))               //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))      //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))    //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint16(2))               //nolint:errcheck
	binary.Write(&buf, binary.LittleEndian, uint16(16))              //nolint:errcheck
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize)) //nolint:errcheck

	for i := 0; i < sampleCount; i++ {
		sample := int16(2000 * math.Sin(2*math.Pi*220*float64(i)/float64(sampleRate)))
		binary.Write(&buf, binary.LittleEndian, sample) //nolint:errcheck
	}
	return buf.Bytes()
}

// WriteWAV writes a generated WAV file into dir and returns its path.
func WriteWAV(t testing.TB, dir string, name string, sampleRate int, seconds float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, WAVBytes(t, sampleRate, seconds), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}
