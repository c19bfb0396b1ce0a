// Package audio normalizes uploaded audio to the canonical format the
// pipeline transcribes: mono 16-bit PCM WAV at the configured sample rate.
// Decoding is delegated to ffmpeg; the package also knows enough of the WAV
// container to measure duration without external tools.
package audio
