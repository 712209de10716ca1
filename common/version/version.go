// Package version exposes the build stamp baked in at link time.
package version

// Populated through -ldflags "-X ..." by the release build; the defaults
// identify a from-source development build.
var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info renders the stamp as a single banner line.
func Info() string {
	return Version + " (" + GitCommit + ") built at " + BuildTime
}
