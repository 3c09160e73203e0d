package fonts

import "embed"

// Fonts dropped into embedded/ are compiled into the binary and discovered
// before any search directory when embedded fonts are enabled.
//
//go:embed all:embedded
var embeddedFS embed.FS
