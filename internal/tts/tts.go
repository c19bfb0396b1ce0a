package tts

import (
	"context"
	"strings"
)

// Client synthesizes speech audio from plain text.
type Client interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ContentType maps an output_format value (mp3_44100_128, pcm_16000,
// ulaw_8000, opus_48000_64) to the MIME type of the audio it produces.
// Unknown or empty formats fall back to audio/mpeg, the provider default.
func ContentType(outputFormat string) string {
	codec, _, _ := strings.Cut(outputFormat, "_")
	switch codec {
	case "pcm":
		return "audio/L16"
	case "ulaw", "alaw":
		return "audio/basic"
	case "opus":
		return "audio/opus"
	default:
		return "audio/mpeg"
	}
}
