package realtime

// Named realtime streams.
const (
	StreamNotifications = "notifications"
	StreamContracts     = "contracts"
)

// DefaultStreams are subscribed for every connection that does not ask for specific ones.
var DefaultStreams = []string{StreamNotifications, StreamContracts}
