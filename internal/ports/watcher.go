package ports

// Watcher defines the interface for a capture surface that feeds the pipeline
type Watcher interface {
	// Start starts the watcher
	Start() error

	// Stop stops the watcher and waits for in-flight work
	Stop() error
}
