package registry

import _ "embed"

//go:embed registry.schema.json
var bundledSchema []byte

// BundledSchema returns a copy of the JSON Schema the registry file format
// is documented against. The init command writes it next to the registry
// file so validation can pick it up.
func BundledSchema() []byte {
	return append([]byte(nil), bundledSchema...)
}
