package core

// Version information for the Grocery Guessr service.
// Version, BuildDate and GitCommit are overridden at build time with -ldflags -X.
var (
	// Version is the current service version
	Version = "development"

	// BuildDate is set during build time
	BuildDate = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"
)

// APIVersion is the current HTTP API version
const APIVersion = "v1"
