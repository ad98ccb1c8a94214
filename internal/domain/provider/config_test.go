package provider_test

import (
	"encoding/json"
	"testing"

	"github.com/lingora-ai/relay-server/internal/domain/provider"
)

func TestParseConfigFull(t *testing.T) {
	raw := json.RawMessage(`{
		"generation_config": {
			"response_modalities": ["AUDIO"],
			"speech_config": {
				"voice_config": {
					"prebuilt_voice_config": {"voice_name": "Puck"}
				}
			}
		},
		"system_instruction": {"parts": [{"text": "You are a tutor."}]},
		"proactivity": {"proactiveAudio": true},
		"tools": {
			"function_declarations": [
				{"name": "get_time", "description": "Current time", "parameters": {"type": "object"}},
				{"name": "", "description": "dropped"}
			]
		},
		"input_audio_transcription": {},
		"output_audio_transcription": {},
		"session_resumption": {"handle": "abc123"},
		"realtime_input_config": {
			"automatic_activity_detection": {
				"disabled": false,
				"silence_duration_ms": 800,
				"prefix_padding_ms": 200
			}
		}
	}`)

	cfg, err := provider.ParseConfig(raw)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if len(cfg.ResponseModalities) != 1 || cfg.ResponseModalities[0] != "AUDIO" {
		t.Fatalf("modalities = %v", cfg.ResponseModalities)
	}
	if cfg.Voice != "Puck" {
		t.Fatalf("voice = %q, want Puck", cfg.Voice)
	}
	if cfg.SystemInstruction != "You are a tutor." {
		t.Fatalf("system instruction = %q", cfg.SystemInstruction)
	}
	if !cfg.ProactiveAudio {
		t.Fatal("proactive audio not set")
	}
	if len(cfg.Tools) != 1 || cfg.Tools[0].Name != "get_time" {
		t.Fatalf("tools = %+v, want single get_time (nameless dropped)", cfg.Tools)
	}
	if !cfg.InputTranscription || !cfg.OutputTranscription {
		t.Fatal("transcription flags not set")
	}
	if cfg.ResumptionHandle != "abc123" {
		t.Fatalf("resumption handle = %q", cfg.ResumptionHandle)
	}
	ad := cfg.ActivityDetection
	if ad == nil || ad.Disabled || ad.SilenceDurationMs != 800 || ad.PrefixPaddingMs != 200 {
		t.Fatalf("activity detection = %+v", ad)
	}
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := provider.ParseConfig(nil)
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}
	if cfg.Voice != "" || cfg.SystemInstruction != "" || len(cfg.Tools) != 0 {
		t.Fatalf("empty input produced non-zero config: %+v", cfg)
	}
	if cfg.InputTranscription || cfg.OutputTranscription {
		t.Fatal("transcription enabled without keys present")
	}
}

func TestParseConfigMalformed(t *testing.T) {
	if _, err := provider.ParseConfig(json.RawMessage(`{not json`)); err == nil {
		t.Fatal("expected error for malformed setup")
	}
}

func TestRequiresConsent(t *testing.T) {
	tests := []struct {
		jurisdiction string
		want         bool
	}{
		{"US/EU", false},
		{"US", false},
		{"EU", false},
		{"CN", true},
		{"", true},
	}
	for _, tt := range tests {
		p := stubProvider{jurisdiction: tt.jurisdiction}
		if got := provider.RequiresConsent(p); got != tt.want {
			t.Errorf("RequiresConsent(%q) = %v, want %v", tt.jurisdiction, got, tt.want)
		}
	}
}

type stubProvider struct {
	provider.LiveProvider
	jurisdiction string
}

func (s stubProvider) Name() string         { return "stub" }
func (s stubProvider) Jurisdiction() string { return s.jurisdiction }
