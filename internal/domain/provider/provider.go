// Package provider defines the capability contract every conversation
// backend implements, plus the event vocabulary and generic session
// configuration shared by all adapters.
package provider

import (
	"context"
)

// Jurisdictions that do not require explicit consent for EU users.
var approvedJurisdictions = map[string]bool{
	"EU":    true,
	"US":    true,
	"US/EU": true,
}

// ToolFunc is a registered tool handler. Handlers run off the adapter's
// receive loop; a returned error is converted into an error-string result
// sent back to the backend, never a session failure.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// Streams carries the three inbound media channels for a session.
// Each channel is FIFO; no ordering holds across channels.
type Streams struct {
	Audio <-chan []byte // raw PCM chunks
	Video <-chan []byte // decoded JPEG frames
	Text  <-chan string // conversational text
}

// AudioSink receives synthesized audio chunks in backend emission order.
type AudioSink func(data []byte)

// InterruptFunc is invoked when the backend detects user speech cutting
// off in-progress synthesized audio, strictly before the Interrupted
// event is emitted.
type InterruptFunc func()

// LiveProvider is the contract every conversation backend satisfies.
//
// StartSession consumes the inbound streams until the context is
// cancelled, invokes the audio sink for every synthesized chunk in
// order, and returns a channel of events that is closed exactly once
// when the session ends (the terminal sentinel). Cancelling the context
// releases the backend connection on every exit path.
type LiveProvider interface {
	// Name returns the human-readable provider name for disclosure.
	Name() string

	// Jurisdiction returns the data-processing jurisdiction.
	Jurisdiction() string

	// RegisterTool stores a handler invoked when the backend calls the
	// named tool. Must be called before StartSession.
	RegisterTool(name string, fn ToolFunc)

	// StartSession opens the backend connection and begins relaying.
	StartSession(ctx context.Context, in Streams, audioOut AudioSink, interrupt InterruptFunc, cfg Config) (<-chan Event, error)
}

// RequiresConsent reports whether the provider needs explicit consent
// for EU users, derived from its data jurisdiction.
func RequiresConsent(p LiveProvider) bool {
	return !approvedJurisdictions[p.Jurisdiction()]
}

// Info is the disclosure metadata surfaced on the status endpoint.
type Info struct {
	Name            string `json:"name"`
	Jurisdiction    string `json:"jurisdiction"`
	RequiresConsent bool   `json:"requires_consent"`
}

// InfoFor builds disclosure metadata for a provider.
func InfoFor(p LiveProvider) Info {
	return Info{
		Name:            p.Name(),
		Jurisdiction:    p.Jurisdiction(),
		RequiresConsent: RequiresConsent(p),
	}
}
