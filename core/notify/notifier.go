package notify

// Notifier delivers a human-readable alert about a charging state change.
// Implementations must not block the caller and must swallow delivery
// failures; alerts are best effort.
type Notifier interface {
	Notify(message string)
}

// Nop discards all notifications. Used when no gateway is configured.
type Nop struct{}

func (Nop) Notify(string) {}
