package provider

// EventKind discriminates the ProviderEvent union.
type EventKind string

const (
	KindTranscription    EventKind = "transcription"
	KindTurnComplete     EventKind = "turn_complete"
	KindInterrupted      EventKind = "interrupted"
	KindToolCallPending  EventKind = "tool_call_pending"
	KindToolCallExecuted EventKind = "tool_call_executed"
	KindResumptionUpdate EventKind = "resumption_update"
	KindGoAway           EventKind = "go_away"
	KindLimitWarning     EventKind = "limit_warning"
	KindError            EventKind = "error"
)

// Direction distinguishes user-speech from model-speech transcriptions.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Transcription is a partial or final transcript of one side of the turn.
type Transcription struct {
	Direction Direction
	Text      string
	Final     bool
}

// FunctionCall is a backend-requested tool invocation.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolResult reports a locally executed tool call.
type ToolResult struct {
	Name   string
	Args   map[string]any
	Result any
}

// ResumptionUpdate carries an opaque handle the client may use to
// continue this conversation on a future connection.
type ResumptionUpdate struct {
	Handle    string
	Token     string
	Resumable bool
}

// GoAway is the backend's advance notice of a forced disconnect.
type GoAway struct {
	TimeLeft string
}

// LimitWarning is emitted once when the inbound message count crosses
// the soft ceiling.
type LimitWarning struct {
	Count int
	Limit int
}

// Event is the tagged union forwarded from adapter to client. Exactly
// one payload field matching Kind is set.
type Event struct {
	Kind EventKind

	Transcription *Transcription
	PendingCalls  []FunctionCall
	Executed      *ToolResult
	Resumption    *ResumptionUpdate
	GoAway        *GoAway
	Warning       *LimitWarning
	Message       string // error text for KindError
}

// Convenience constructors keep adapter dispatch code short.

func TranscriptionEvent(dir Direction, text string, final bool) Event {
	return Event{Kind: KindTranscription, Transcription: &Transcription{Direction: dir, Text: text, Final: final}}
}

func TurnCompleteEvent() Event { return Event{Kind: KindTurnComplete} }

func InterruptedEvent() Event { return Event{Kind: KindInterrupted} }

func PendingCallsEvent(calls []FunctionCall) Event {
	return Event{Kind: KindToolCallPending, PendingCalls: calls}
}

func ExecutedEvent(name string, args map[string]any, result any) Event {
	return Event{Kind: KindToolCallExecuted, Executed: &ToolResult{Name: name, Args: args, Result: result}}
}

func ResumptionEvent(handle, token string, resumable bool) Event {
	return Event{Kind: KindResumptionUpdate, Resumption: &ResumptionUpdate{Handle: handle, Token: token, Resumable: resumable}}
}

func GoAwayEvent(timeLeft string) Event {
	return Event{Kind: KindGoAway, GoAway: &GoAway{TimeLeft: timeLeft}}
}

func LimitWarningEvent(count, limit int) Event {
	return Event{Kind: KindLimitWarning, Warning: &LimitWarning{Count: count, Limit: limit}}
}

func ErrorEvent(msg string) Event { return Event{Kind: KindError, Message: msg} }
