package version

import "runtime/debug"

// Name is the server name advertised to MCP clients.
const Name = "Shopper Insights Server"

var version = "dev"

// Version returns the build string embedded via -ldflags when available.
func Version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Sum != "" {
		return info.Main.Version
	}
	return version
}

// Set assigns the exported version when ldflags are not provided (e.g. local dev).
func Set(v string) {
	if v != "" {
		version = v
	}
}

// String renders "name version" for logs and CLI -version output.
func String() string {
	return Name + " " + Version()
}
