package config

const (
	defaultLibraryDir          = "~/.local/share/echopod"
	defaultLogDir              = "~/.local/share/echopod/logs"
	defaultAPIBind             = "127.0.0.1:7823"
	defaultTargetSampleRate    = 16000
	defaultMaxUploadMiB        = 50
	defaultMaxDurationMinutes  = 240
	defaultFFmpegBinary        = "ffmpeg"
	defaultASRModel            = "whisper-1"
	defaultASRTimeoutSeconds   = 600
	defaultGenerationModel     = "gpt-4o-mini"
	defaultGenTimeoutSeconds   = 60
	defaultTTSBaseURL          = "https://api.elevenlabs.io"
	defaultTTSModel            = "eleven_monolingual_v1"
	defaultTTSOutputFormat     = "mp3_44100_128"
	defaultTTSTimeoutSeconds   = 60
	defaultIndexWindowSeconds  = 45
	defaultIndexWindowOverlap  = 2
	defaultIndexMinScore       = 0.1
	defaultIndexTopK           = 5
	defaultIndexMinTokenLength = 3
	defaultResponseBudgetMiB   = 512
	defaultTranscriptionWorker = 2
	defaultRetryAttempts       = 3
	defaultRetryInitialSeconds = 2
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Audio: Audio{
			TargetSampleRate:   defaultTargetSampleRate,
			MaxUploadMiB:       defaultMaxUploadMiB,
			MaxDurationMinutes: defaultMaxDurationMinutes,
			FFmpegBinary:       defaultFFmpegBinary,
		},
		ASR: ASR{
			Model:          defaultASRModel,
			TimeoutSeconds: defaultASRTimeoutSeconds,
		},
		Generation: Generation{
			Model:          defaultGenerationModel,
			TimeoutSeconds: defaultGenTimeoutSeconds,
		},
		TTS: TTS{
			BaseURL:        defaultTTSBaseURL,
			Model:          defaultTTSModel,
			OutputFormat:   defaultTTSOutputFormat,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		Index: Index{
			WindowSeconds:  defaultIndexWindowSeconds,
			WindowOverlap:  defaultIndexWindowOverlap,
			MinScore:       defaultIndexMinScore,
			DefaultTopK:    defaultIndexTopK,
			MinTokenLength: defaultIndexMinTokenLength,
		},
		Cache: Cache{
			ResponseBudgetMiB: defaultResponseBudgetMiB,
		},
		Workflow: Workflow{
			TranscriptionWorkers: defaultTranscriptionWorker,
			RetryAttempts:        defaultRetryAttempts,
			RetryInitialSeconds:  defaultRetryInitialSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
