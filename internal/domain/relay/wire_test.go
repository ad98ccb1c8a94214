package relay

import (
	"encoding/json"
	"testing"

	"github.com/lingora-ai/relay-server/internal/domain/provider"
)

func TestEncodeEvent(t *testing.T) {
	tests := []struct {
		name  string
		event provider.Event
		want  string
	}{
		{
			name:  "input transcription",
			event: provider.TranscriptionEvent(provider.DirectionInput, "hello", true),
			want:  `{"serverContent":{"inputTranscription":{"text":"hello","finished":true}}}`,
		},
		{
			name:  "output transcription partial",
			event: provider.TranscriptionEvent(provider.DirectionOutput, "bon", false),
			want:  `{"serverContent":{"outputTranscription":{"text":"bon","finished":false}}}`,
		},
		{
			name:  "turn complete",
			event: provider.TurnCompleteEvent(),
			want:  `{"serverContent":{"turnComplete":true}}`,
		},
		{
			name:  "interrupted",
			event: provider.InterruptedEvent(),
			want:  `{"serverContent":{"interrupted":true}}`,
		},
		{
			name: "pending tool calls",
			event: provider.PendingCallsEvent([]provider.FunctionCall{
				{ID: "c1", Name: "lookup", Args: map[string]any{"q": "x"}},
			}),
			want: `{"toolCall":{"functionCalls":[{"id":"c1","name":"lookup","args":{"q":"x"}}]}}`,
		},
		{
			name:  "executed tool call",
			event: provider.ExecutedEvent("get_time", map[string]any{}, "12:00"),
			want:  `{"type":"tool_call","name":"get_time","args":{},"result":"12:00"}`,
		},
		{
			name:  "resumption update",
			event: provider.ResumptionEvent("h-42", "", true),
			want:  `{"sessionResumptionUpdate":{"newHandle":"h-42","resumable":true}}`,
		},
		{
			name:  "go away",
			event: provider.GoAwayEvent("10s"),
			want:  `{"goAway":{"timeLeft":"10s"}}`,
		},
		{
			name:  "limit warning",
			event: provider.LimitWarningEvent(900, 1000),
			want:  `{"messageLimitWarning":{"count":900,"limit":1000}}`,
		},
		{
			name:  "error",
			event: provider.ErrorEvent("backend unavailable"),
			want:  `{"type":"error","error":"backend unavailable"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := encodeEvent(tt.event)
			if err != nil {
				t.Fatalf("encodeEvent failed: %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("encodeEvent = %s, want %s", data, tt.want)
			}
			if !json.Valid(data) {
				t.Fatalf("invalid JSON: %s", data)
			}
		})
	}
}

func TestEncodeEventUnknownKind(t *testing.T) {
	if _, err := encodeEvent(provider.Event{Kind: "bogus"}); err == nil {
		t.Fatal("expected error for unknown event kind")
	}
}
