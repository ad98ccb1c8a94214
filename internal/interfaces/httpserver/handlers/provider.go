// Package handlers holds the HTTP and WebSocket endpoint handlers.
package handlers

// Provider bundles the endpoint handlers for route registration.
type Provider struct {
	Auth   *AuthHandler
	Status *StatusHandler
	WS     *WSHandler
}

// NewProvider creates the handler provider.
func NewProvider(auth *AuthHandler, status *StatusHandler, ws *WSHandler) *Provider {
	return &Provider{Auth: auth, Status: status, WS: ws}
}
