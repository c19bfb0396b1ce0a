package pipeline

import (
	"context"
	"fmt"
	"os/exec"
)

// ComponentHealth reports readiness of one capability.
type ComponentHealth struct {
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Health aggregates per-capability readiness. Healthy is true only when every
// capability is ready.
type Health struct {
	Healthy    bool                       `json:"healthy"`
	Components map[string]ComponentHealth `json:"components"`
}

// Health inspects every capability the pipeline depends on. Missing optional
// credentials degrade the affected capability rather than the whole service,
// but the aggregate flag reflects them.
func (p *Pipeline) Health(ctx context.Context) Health {
	components := map[string]ComponentHealth{
		"database":   p.databaseHealth(ctx),
		"blobstore":  p.blobstoreHealth(ctx),
		"ffmpeg":     binaryHealth(p.cfg.Audio.FFmpegBinary),
		"asr":        credentialHealth(p.cfg.ASR.APIKey, "asr api_key not configured"),
		"generation": credentialHealth(p.cfg.Generation.APIKey, "generation api_key not configured"),
		"tts":        p.ttsHealth(),
	}

	healthy := true
	for _, component := range components {
		if !component.Ready {
			healthy = false
			break
		}
	}
	return Health{Healthy: healthy, Components: components}
}

func (p *Pipeline) databaseHealth(ctx context.Context) ComponentHealth {
	if err := p.store.Ping(ctx); err != nil {
		return ComponentHealth{Detail: err.Error()}
	}
	return ComponentHealth{Ready: true}
}

func (p *Pipeline) blobstoreHealth(ctx context.Context) ComponentHealth {
	stats, err := p.blobs.Stats(ctx)
	if err != nil {
		return ComponentHealth{Detail: err.Error()}
	}
	return ComponentHealth{
		Ready: true,
		Detail: fmt.Sprintf("%d response entries, %d of %d budget bytes",
			stats.ResponseEntries, stats.ResponseBytes, stats.BudgetBytes),
	}
}

func (p *Pipeline) ttsHealth() ComponentHealth {
	if p.cfg.TTS.APIKey == "" {
		return ComponentHealth{Detail: "tts api_key not configured"}
	}
	if p.cfg.TTS.VoiceID == "" {
		return ComponentHealth{Detail: "tts voice_id not configured"}
	}
	return ComponentHealth{Ready: true}
}

func binaryHealth(binary string) ComponentHealth {
	path, err := exec.LookPath(binary)
	if err != nil {
		return ComponentHealth{Detail: fmt.Sprintf("%s not found in PATH", binary)}
	}
	return ComponentHealth{Ready: true, Detail: path}
}

func credentialHealth(apiKey, missingDetail string) ComponentHealth {
	if apiKey == "" {
		return ComponentHealth{Detail: missingDetail}
	}
	return ComponentHealth{Ready: true}
}
