//go:build embed_openapi

package api

import "herdroute/openapi"

// openAPILoad returns the spec compiled into the binary.
func openAPILoad() ([]byte, error) { return openapi.Spec, nil }
