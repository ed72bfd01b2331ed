// Package buildinfo exposes version metadata injected at build time.
package buildinfo

// Version is set via -ldflags at release build time.
var Version = "dev"

// Commit is the short git commit hash, set via -ldflags.
var Commit = ""
