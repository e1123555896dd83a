package domain

import "fmt"

// RelayMode decides the durability/delivery order for chat messages.
type RelayMode string

const (
	// RelayPersistFirst writes the message before broadcasting; a failed
	// write fails the send.
	RelayPersistFirst RelayMode = "persist-first"
	// RelayBroadcastFirst delivers immediately and persists asynchronously;
	// a failed write is logged and the broadcast stands.
	RelayBroadcastFirst RelayMode = "broadcast-first"
)

type Config struct {
	ListenAddr   string
	DBPath       string
	HistoryLimit int
	RelayMode    RelayMode
	JWTSecret    string
	ExpiryDays   int
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: db path is required", ErrInvalidArgument)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("%w: history limit must be positive", ErrInvalidArgument)
	}
	switch c.RelayMode {
	case RelayPersistFirst, RelayBroadcastFirst:
	default:
		return fmt.Errorf("%w: unknown relay mode %q", ErrInvalidArgument, c.RelayMode)
	}
	if c.ExpiryDays <= 0 {
		return fmt.Errorf("%w: expiry days must be positive", ErrInvalidArgument)
	}
	return nil
}
