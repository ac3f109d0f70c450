// Package config resolves protocol-version-specific runtime configuration.
//
// Parameters live in embedded YAML files under params/. The lowest version
// file is a complete parameter set; every later file is a diff applied on top
// of the previous resolved set. Each resolved set is validated against the
// embedded CUE schema (schema.cue) before it is published.
//
// A Store maps any ProtocolVersion to the configuration of the greatest file
// version not above it. Configurations are shared and must be treated as
// read-only by callers.
package config
