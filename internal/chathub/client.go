package chathub

import "supportdesk/backend/internal/models"

// Client is one live realtime connection as seen by the hub.
// Only the hub goroutine sends on or closes the send channel.
type Client interface {
	// GetUserID returns the principal id the connection authenticated as.
	GetUserID() string
	GetPrincipal() models.Principal
	// GetConnID identifies this connection; a principal may reconnect with a new one.
	GetConnID() string

	// GetSendChannel returns the channel the hub delivers outgoing frames on.
	GetSendChannel() chan<- models.Frame

	// Run starts the read and write pumps.
	Run()
	// Close closes the send channel; the connection is then closed with code.
	// It must be safe to call more than once.
	Close(code int)
}
