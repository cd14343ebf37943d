// Package common holds process wide settings shared by the binaries.
package common

// PackageName is used as the metrics namespace and default log service name.
const PackageName = "content_market"

// Version is set at build time with -ldflags "-X github.com/ruteri/private-content-market/common.Version=...".
var Version = "dev"
