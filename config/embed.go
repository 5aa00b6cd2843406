// Package config embeds the default configuration shipped with the binary.
package config

import _ "embed"

// Default is the embedded default conf.yaml.
//
//go:embed conf.yaml
var Default []byte
