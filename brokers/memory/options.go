package memory

// Options for the in-memory broker
type Options struct {
	// QueueSize bounds each hand-off queue; producers block when full.
	QueueSize int
}

// DefaultOptions returns default memory broker options
func DefaultOptions() Options {
	return Options{
		QueueSize: 256,
	}
}
