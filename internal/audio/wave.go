package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// waveInfo describes the PCM layout of a WAV payload.
type waveInfo struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataBytes     int
}

// Duration returns the play time in seconds of a PCM WAV payload.
func Duration(wav []byte) (float64, error) {
	info, err := parseWave(wav)
	if err != nil {
		return 0, err
	}
	bytesPerSecond := info.SampleRate * info.Channels * info.BitsPerSample / 8
	if bytesPerSecond == 0 {
		return 0, errors.New("wav: zero byte rate")
	}
	return float64(info.DataBytes) / float64(bytesPerSecond), nil
}

func parseWave(wav []byte) (waveInfo, error) {
	var info waveInfo
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return info, errors.New("wav: missing RIFF/WAVE header")
	}

	offset := 12
	haveFmt := false
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := offset + 8
		switch chunkID {
		case "fmt ":
			if body+16 > len(wav) {
				return info, errors.New("wav: truncated fmt chunk")
			}
			info.Channels = int(binary.LittleEndian.Uint16(wav[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(wav[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(wav[body+14 : body+16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return info, errors.New("wav: data chunk before fmt chunk")
			}
			if body+chunkSize > len(wav) {
				chunkSize = len(wav) - body
			}
			info.DataBytes = chunkSize
			if info.Channels == 0 || info.SampleRate == 0 || info.BitsPerSample == 0 {
				return info, fmt.Errorf("wav: invalid format (channels=%d rate=%d bits=%d)",
					info.Channels, info.SampleRate, info.BitsPerSample)
			}
			return info, nil
		}
		// Chunks are word-aligned.
		offset = body + chunkSize + chunkSize%2
	}
	return info, errors.New("wav: no data chunk")
}
