package gemini

import (
	"testing"

	"google.golang.org/genai"

	"github.com/lingora-ai/relay-server/internal/domain/provider"
)

func TestTranslateConfigDefaults(t *testing.T) {
	out := translateConfig(provider.Config{})

	if len(out.ResponseModalities) != 1 || out.ResponseModalities[0] != genai.ModalityAudio {
		t.Fatalf("modalities = %v, want audio-only default", out.ResponseModalities)
	}
	if out.SpeechConfig != nil {
		t.Fatal("speech config set without a voice")
	}
	if out.SystemInstruction != nil {
		t.Fatal("system instruction set without input")
	}
	if out.InputAudioTranscription != nil || out.OutputAudioTranscription != nil {
		t.Fatal("transcription enabled without flags")
	}
	// Resumption is always requested so the client can reconnect.
	if out.SessionResumption == nil {
		t.Fatal("session resumption not requested")
	}
	if out.SessionResumption.Handle != "" {
		t.Fatalf("unexpected resumption handle %q", out.SessionResumption.Handle)
	}
}

func TestTranslateConfigFull(t *testing.T) {
	cfg := provider.Config{
		ResponseModalities:  []string{"TEXT"},
		Voice:               "Puck",
		SystemInstruction:   "Be brief.",
		ProactiveAudio:      true,
		InputTranscription:  true,
		OutputTranscription: true,
		Tools: []provider.FunctionDeclaration{
			{Name: "get_time", Description: "Current time", Parameters: map[string]any{"type": "object"}},
		},
		ResumptionHandle: "h-99",
		ActivityDetection: &provider.ActivityDetection{
			SilenceDurationMs: 700,
			PrefixPaddingMs:   250,
		},
	}

	out := translateConfig(cfg)

	if len(out.ResponseModalities) != 1 || out.ResponseModalities[0] != genai.Modality("TEXT") {
		t.Fatalf("modalities = %v", out.ResponseModalities)
	}
	if out.SpeechConfig == nil ||
		out.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Puck" {
		t.Fatalf("speech config = %+v", out.SpeechConfig)
	}
	if out.SystemInstruction == nil || out.SystemInstruction.Parts[0].Text != "Be brief." {
		t.Fatalf("system instruction = %+v", out.SystemInstruction)
	}
	if out.Proactivity == nil || out.Proactivity.ProactiveAudio == nil || !*out.Proactivity.ProactiveAudio {
		t.Fatal("proactivity not set")
	}
	if out.InputAudioTranscription == nil || out.OutputAudioTranscription == nil {
		t.Fatal("transcription configs not set")
	}
	if len(out.Tools) != 1 || len(out.Tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("tools = %+v", out.Tools)
	}
	if out.Tools[0].FunctionDeclarations[0].Name != "get_time" {
		t.Fatalf("tool name = %q", out.Tools[0].FunctionDeclarations[0].Name)
	}
	if out.SessionResumption.Handle != "h-99" {
		t.Fatalf("resumption handle = %q", out.SessionResumption.Handle)
	}

	aad := out.RealtimeInputConfig.AutomaticActivityDetection
	if aad == nil || aad.Disabled {
		t.Fatalf("activity detection = %+v", aad)
	}
	if aad.SilenceDurationMs == nil || *aad.SilenceDurationMs != 700 {
		t.Fatalf("silence duration = %v", aad.SilenceDurationMs)
	}
	if aad.PrefixPaddingMs == nil || *aad.PrefixPaddingMs != 250 {
		t.Fatalf("prefix padding = %v", aad.PrefixPaddingMs)
	}
}

func TestTranslateConfigDisabledVAD(t *testing.T) {
	out := translateConfig(provider.Config{
		ActivityDetection: &provider.ActivityDetection{Disabled: true},
	})

	aad := out.RealtimeInputConfig.AutomaticActivityDetection
	if aad == nil || !aad.Disabled {
		t.Fatalf("activity detection = %+v, want disabled", aad)
	}
	if aad.SilenceDurationMs != nil || aad.PrefixPaddingMs != nil {
		t.Fatal("tuning fields set on disabled detection")
	}
}
