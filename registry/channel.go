package registry

// Channel represents a joined public channel.
type Channel struct {
	Name           string
	SymKeyID       string
	Topic          string
	LastClockValue int64
}
