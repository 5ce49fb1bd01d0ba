package notetaker

import _ "embed"

// Version is the version of the module, read from the VERSION file.
//
//go:embed VERSION
var Version string
