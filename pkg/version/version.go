// Package version holds build-time metadata, populated via -ldflags
// (see the teacher's GitVersion call-site convention in chat/tui.go).
package version

// These are overridden at build time with:
//   -ldflags "-X github.com/kiosk404/jarvish/pkg/version.GitVersion=... \
//              -X github.com/kiosk404/jarvish/pkg/version.BuildDate=..."
var (
	// GitVersion is the tagged release or commit describing this build.
	GitVersion = "dev"
	// BuildDate is when this binary was built, RFC3339.
	BuildDate = "unknown"
)

// String renders a one-line "vX (built Y)" summary for --version output.
func String() string {
	return GitVersion + " (built " + BuildDate + ")"
}
