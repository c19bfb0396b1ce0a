package config

import "strings"

// normalize expands paths and trims string fields so validation and consumers
// see canonical values regardless of how the file was written.
func (c *Config) normalize() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(strings.TrimSpace(c.Paths.LibraryDir)); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return err
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)

	c.Audio.FFmpegBinary = strings.TrimSpace(c.Audio.FFmpegBinary)
	if c.Audio.FFmpegBinary == "" {
		c.Audio.FFmpegBinary = defaultFFmpegBinary
	}

	c.ASR.APIKey = strings.TrimSpace(c.ASR.APIKey)
	c.ASR.BaseURL = strings.TrimSpace(c.ASR.BaseURL)
	c.ASR.Model = strings.TrimSpace(c.ASR.Model)

	c.Generation.APIKey = strings.TrimSpace(c.Generation.APIKey)
	c.Generation.BaseURL = strings.TrimSpace(c.Generation.BaseURL)
	c.Generation.Model = strings.TrimSpace(c.Generation.Model)

	c.TTS.APIKey = strings.TrimSpace(c.TTS.APIKey)
	c.TTS.BaseURL = strings.TrimSpace(c.TTS.BaseURL)
	c.TTS.VoiceID = strings.TrimSpace(c.TTS.VoiceID)
	c.TTS.Model = strings.TrimSpace(c.TTS.Model)
	c.TTS.OutputFormat = strings.TrimSpace(c.TTS.OutputFormat)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
