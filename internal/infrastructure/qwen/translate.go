// Package qwen implements the raw-WebSocket conversation backend over
// the DashScope realtime API.
package qwen

import (
	"github.com/lingora-ai/relay-server/internal/domain/provider"
)

// voiceMap remaps the client-facing voice names onto the closest
// DashScope equivalents so a client configured for either backend works
// unchanged.
var voiceMap = map[string]string{
	"Puck":   "Cherry",
	"Charon": "Serena",
	"Kore":   "Ethan",
	"Fenrir": "Chelsie",
	"Aoede":  "Aria",
}

const (
	defaultVoice = "Cherry"

	// transcriptionModel runs ASR on the user's audio so the backend
	// emits input transcription events alongside the response.
	transcriptionModel = "qwen3-asr-realtime"
)

// sessionUpdate is the realtime session.update envelope.
type sessionUpdate struct {
	EventID string        `json:"event_id"`
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Modalities              []string            `json:"modalities"`
	Voice                   string              `json:"voice"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	Instructions            string              `json:"instructions,omitempty"`
	TurnDetection           *turnDetection      `json:"turn_detection"`
	InputAudioTranscription *inputTranscription `json:"input_audio_transcription"`
}

type inputTranscription struct {
	Model string `json:"model"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
}

// translateConfig converts the generic session config into the realtime
// session.update payload. Pure function. The DashScope API rejects
// audio-only sessions, so modalities always include text; turn_detection
// is explicit null when the client disabled activity detection.
func translateConfig(cfg provider.Config, eventID string) sessionUpdate {
	// Unmapped names fall back to the default rather than passing
	// through; the backend rejects sessions with unknown voices.
	voice := defaultVoice
	if mapped, ok := voiceMap[cfg.Voice]; ok {
		voice = mapped
	}

	td := &turnDetection{
		Type:              "server_vad",
		Threshold:         0.5,
		SilenceDurationMs: 500,
		PrefixPaddingMs:   300,
	}
	if ad := cfg.ActivityDetection; ad != nil {
		if ad.Disabled {
			td = nil
		} else {
			if ad.SilenceDurationMs > 0 {
				td.SilenceDurationMs = ad.SilenceDurationMs
			}
			if ad.PrefixPaddingMs > 0 {
				td.PrefixPaddingMs = ad.PrefixPaddingMs
			}
		}
	}

	return sessionUpdate{
		EventID: eventID,
		Type:    "session.update",
		Session: sessionConfig{
			Modalities:              []string{"text", "audio"},
			Voice:                   voice,
			InputAudioFormat:        "pcm16",
			OutputAudioFormat:       "pcm24",
			Instructions:            cfg.SystemInstruction,
			TurnDetection:           td,
			InputAudioTranscription: &inputTranscription{Model: transcriptionModel},
		},
	}
}
