package formstore

import "github.com/rs/zerolog"

// logger is disabled by default. Hosts opt in via SetLogger.
var logger = zerolog.Nop()

// SetLogger installs the logger used by managers, queries and collections.
// Call it before the registry is built; the package does not lock around it.
func SetLogger(l zerolog.Logger) {
	logger = l
}
