// Package build provides build information that is linked into the application. Other
// packages within this project can use this information in logs etc..
package build

var (
	// Version is the build version of the binary (e.g. v0.1.0 or undefined).
	Version = "undefined"

	// Commit is the git commit SHA the binary was built from.
	Commit = "undefined"

	// Date is the date the binary was built.
	Date = "undefined"

	// ProjectName is used as the metrics namespace and tracer service name.
	ProjectName = "wdgraph"
)
