package provider

import (
	"encoding/json"
)

// ActivityDetection carries voice-activity-detection tuning from the
// client. Disabled turns server-side turn detection off entirely.
type ActivityDetection struct {
	Disabled          bool
	SilenceDurationMs int
	PrefixPaddingMs   int
}

// FunctionDeclaration describes a tool offered to the backend. Parameters
// is the client's JSON schema, passed through untouched.
type FunctionDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Config is the generic session setup supplied by the client at
// connection time. Each adapter owns a pure translation from this shape
// into its native request shape. All fields are optional; zero values
// mean "use the backend default".
type Config struct {
	ResponseModalities  []string
	Voice               string
	SystemInstruction   string
	ProactiveAudio      bool
	InputTranscription  bool
	OutputTranscription bool
	Tools               []FunctionDeclaration
	ResumptionHandle    string
	ActivityDetection   *ActivityDetection
}

// wireSetup mirrors the nested client setup JSON. Unknown fields are
// ignored by encoding/json; malformed subtrees simply leave their Config
// field at its zero value.
type wireSetup struct {
	GenerationConfig *struct {
		ResponseModalities []string `json:"response_modalities"`
		SpeechConfig       *struct {
			VoiceConfig *struct {
				PrebuiltVoiceConfig *struct {
					VoiceName string `json:"voice_name"`
				} `json:"prebuilt_voice_config"`
			} `json:"voice_config"`
		} `json:"speech_config"`
	} `json:"generation_config"`

	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"system_instruction"`

	Proactivity *struct {
		ProactiveAudio bool `json:"proactiveAudio"`
	} `json:"proactivity"`

	Tools *struct {
		FunctionDeclarations []struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			Parameters  map[string]any `json:"parameters"`
		} `json:"function_declarations"`
	} `json:"tools"`

	InputAudioTranscription  json.RawMessage `json:"input_audio_transcription"`
	OutputAudioTranscription json.RawMessage `json:"output_audio_transcription"`

	SessionResumption *struct {
		Handle string `json:"handle"`
	} `json:"session_resumption"`

	RealtimeInputConfig *struct {
		AutomaticActivityDetection *struct {
			Disabled          bool `json:"disabled"`
			SilenceDurationMs int  `json:"silence_duration_ms"`
			PrefixPaddingMs   int  `json:"prefix_padding_ms"`
		} `json:"automatic_activity_detection"`
	} `json:"realtime_input_config"`
}

// ParseConfig converts the client's raw setup object into a Config.
// Unrecognized or malformed fields are ignored, never fatal: a setup
// that fails to decode at the top level yields the zero Config and the
// decode error so the caller can log it.
func ParseConfig(raw json.RawMessage) (Config, error) {
	var cfg Config
	if len(raw) == 0 {
		return cfg, nil
	}

	var ws wireSetup
	if err := json.Unmarshal(raw, &ws); err != nil {
		return Config{}, err
	}

	if gc := ws.GenerationConfig; gc != nil {
		cfg.ResponseModalities = gc.ResponseModalities
		if gc.SpeechConfig != nil && gc.SpeechConfig.VoiceConfig != nil && gc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig != nil {
			cfg.Voice = gc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName
		}
	}

	if si := ws.SystemInstruction; si != nil && len(si.Parts) > 0 {
		cfg.SystemInstruction = si.Parts[0].Text
	}

	if ws.Proactivity != nil {
		cfg.ProactiveAudio = ws.Proactivity.ProactiveAudio
	}

	if ws.Tools != nil {
		for _, fd := range ws.Tools.FunctionDeclarations {
			if fd.Name == "" {
				continue
			}
			cfg.Tools = append(cfg.Tools, FunctionDeclaration{
				Name:        fd.Name,
				Description: fd.Description,
				Parameters:  fd.Parameters,
			})
		}
	}

	// Presence of the key enables transcription, matching the client
	// protocol where the value is an empty object.
	cfg.InputTranscription = len(ws.InputAudioTranscription) > 0
	cfg.OutputTranscription = len(ws.OutputAudioTranscription) > 0

	if ws.SessionResumption != nil {
		cfg.ResumptionHandle = ws.SessionResumption.Handle
	}

	if ric := ws.RealtimeInputConfig; ric != nil && ric.AutomaticActivityDetection != nil {
		aad := ric.AutomaticActivityDetection
		cfg.ActivityDetection = &ActivityDetection{
			Disabled:          aad.Disabled,
			SilenceDurationMs: aad.SilenceDurationMs,
			PrefixPaddingMs:   aad.PrefixPaddingMs,
		}
	}

	return cfg, nil
}
