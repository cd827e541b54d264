package config

import "time"

const (
	// WebSocket
	WriteWait       = 10 * time.Second
	PongWait        = 60 * time.Second
	PingPeriod      = (PongWait * 9) / 10
	MaxFrameSize    = 4096
	SendBufferSize  = 256
	ReplacedCode    = 4001
	InflightTimeout = 5 * time.Second

	// Hub
	HubQueueSize = 256

	// Presence mirror
	PresenceKey       = "presence:online"
	PresenceQueueSize = 256
	PresenceOpTimeout = 2 * time.Second

	// Event sinks
	SinkQueueSize = 1024
	SinkTimeout   = 3 * time.Second

	// Tokens
	DefaultTokenTTL = 72 * time.Hour

	// Rate limit
	DefaultMessageLimit  = 30
	DefaultMessageWindow = time.Minute
)
