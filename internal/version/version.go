// SPDX-License-Identifier: MIT

// Package version carries build identity, populated via ldflags.
package version

var (
	// Version is the current application version.
	Version = "v1.2.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String returns the human-readable build identity.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
