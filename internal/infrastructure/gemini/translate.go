package gemini

import (
	"google.golang.org/genai"

	"github.com/lingora-ai/relay-server/internal/domain/provider"
)

// translateConfig converts the generic session config into the Live API
// connect configuration. Pure function; response modality defaults to
// audio-only unless the client overrides it, and session resumption is
// always requested so the backend hands back a reconnection handle even
// when the client did not supply one.
func translateConfig(cfg provider.Config) *genai.LiveConnectConfig {
	out := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
	}

	if len(cfg.ResponseModalities) > 0 {
		out.ResponseModalities = out.ResponseModalities[:0]
		for _, m := range cfg.ResponseModalities {
			out.ResponseModalities = append(out.ResponseModalities, genai.Modality(m))
		}
	}

	if cfg.Voice != "" {
		out.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		}
	}

	if cfg.SystemInstruction != "" {
		out.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		}
	}

	if cfg.ProactiveAudio {
		out.Proactivity = &genai.ProactivityConfig{ProactiveAudio: genai.Ptr(cfg.ProactiveAudio)}
	}

	if len(cfg.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(cfg.Tools))
		for _, fd := range cfg.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 fd.Name,
				Description:          fd.Description,
				ParametersJsonSchema: fd.Parameters,
			})
		}
		out.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	if cfg.InputTranscription {
		out.InputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}
	if cfg.OutputTranscription {
		out.OutputAudioTranscription = &genai.AudioTranscriptionConfig{}
	}

	out.SessionResumption = &genai.SessionResumptionConfig{}
	if cfg.ResumptionHandle != "" {
		out.SessionResumption.Handle = cfg.ResumptionHandle
	}

	if ad := cfg.ActivityDetection; ad != nil {
		aad := &genai.AutomaticActivityDetection{Disabled: ad.Disabled}
		if ad.SilenceDurationMs > 0 {
			ms := int32(ad.SilenceDurationMs)
			aad.SilenceDurationMs = &ms
		}
		if ad.PrefixPaddingMs > 0 {
			ms := int32(ad.PrefixPaddingMs)
			aad.PrefixPaddingMs = &ms
		}
		out.RealtimeInputConfig = &genai.RealtimeInputConfig{AutomaticActivityDetection: aad}
	}

	return out
}
