// Package tts converts answer text into speech audio through the ElevenLabs
// HTTP API.
package tts
