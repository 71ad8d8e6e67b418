// Package openapi carries the API contract for builds tagged embed_openapi.
package openapi

import _ "embed"

//go:embed openapi.yaml
var Spec []byte
