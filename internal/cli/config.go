package cli

import (
	"io"
	"time"
)

// Config holds the settings shared by every kpictl command.
type Config struct {
	BaseURL string        // Base URL of the service
	Key     string        // Function key sent as x-functions-key
	Timeout time.Duration // HTTP request timeout
	Plain   bool          // Disable styling
	Out     io.Writer
}
