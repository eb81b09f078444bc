// Package configs provides the embedded configuration template.
//
// The template is embedded at build time so `notesage init` can write a
// commented starter config in any distribution of the binary, not just
// source checkouts.
package configs

import _ "embed"

// ConfigTemplate is the starter .notesage.yaml written by `notesage init`.
//
//go:embed config.example.yaml
var ConfigTemplate string
