package relay

import (
	"encoding/json"
	"fmt"

	"github.com/lingora-ai/relay-server/internal/domain/provider"
)

// Outbound client protocol: synthesized audio travels as binary frames;
// everything else is a JSON envelope with exactly one of the top-level
// keys below set.

type transcriptionBody struct {
	Text     string `json:"text"`
	Finished bool   `json:"finished"`
}

type serverContentBody struct {
	InputTranscription  *transcriptionBody `json:"inputTranscription,omitempty"`
	OutputTranscription *transcriptionBody `json:"outputTranscription,omitempty"`
	TurnComplete        bool               `json:"turnComplete,omitempty"`
	Interrupted         bool               `json:"interrupted,omitempty"`
}

type toolCallBody struct {
	FunctionCalls []provider.FunctionCall `json:"functionCalls"`
}

type resumptionBody struct {
	NewHandle string `json:"newHandle"`
	Token     string `json:"token,omitempty"`
	Resumable bool   `json:"resumable"`
}

type goAwayBody struct {
	TimeLeft string `json:"timeLeft"`
}

type limitWarningBody struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

type envelope struct {
	ServerContent           *serverContentBody `json:"serverContent,omitempty"`
	ToolCall                *toolCallBody      `json:"toolCall,omitempty"`
	SessionResumptionUpdate *resumptionBody    `json:"sessionResumptionUpdate,omitempty"`
	GoAway                  *goAwayBody        `json:"goAway,omitempty"`
	MessageLimitWarning     *limitWarningBody  `json:"messageLimitWarning,omitempty"`
}

// Locally executed tool calls and errors use flat type-tagged shapes
// instead of the nested envelope.

type executedEnvelope struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
	Result any            `json:"result"`
}

type errorEnvelope struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// encodeEvent renders one provider event as its client JSON envelope.
func encodeEvent(ev provider.Event) ([]byte, error) {
	var body any

	switch ev.Kind {
	case provider.KindTranscription:
		tb := &transcriptionBody{Text: ev.Transcription.Text, Finished: ev.Transcription.Final}
		sc := &serverContentBody{}
		if ev.Transcription.Direction == provider.DirectionInput {
			sc.InputTranscription = tb
		} else {
			sc.OutputTranscription = tb
		}
		body = envelope{ServerContent: sc}

	case provider.KindTurnComplete:
		body = envelope{ServerContent: &serverContentBody{TurnComplete: true}}

	case provider.KindInterrupted:
		body = envelope{ServerContent: &serverContentBody{Interrupted: true}}

	case provider.KindToolCallPending:
		body = envelope{ToolCall: &toolCallBody{FunctionCalls: ev.PendingCalls}}

	case provider.KindToolCallExecuted:
		body = executedEnvelope{
			Type:   "tool_call",
			Name:   ev.Executed.Name,
			Args:   ev.Executed.Args,
			Result: ev.Executed.Result,
		}

	case provider.KindResumptionUpdate:
		body = envelope{SessionResumptionUpdate: &resumptionBody{
			NewHandle: ev.Resumption.Handle,
			Token:     ev.Resumption.Token,
			Resumable: ev.Resumption.Resumable,
		}}

	case provider.KindGoAway:
		body = envelope{GoAway: &goAwayBody{TimeLeft: ev.GoAway.TimeLeft}}

	case provider.KindLimitWarning:
		body = envelope{MessageLimitWarning: &limitWarningBody{
			Count: ev.Warning.Count,
			Limit: ev.Warning.Limit,
		}}

	case provider.KindError:
		body = errorEnvelope{Type: "error", Error: ev.Message}

	default:
		return nil, fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	return json.Marshal(body)
}
