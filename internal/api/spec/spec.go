package spec

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"net/http"
)

//go:embed openapi.yaml
var openapiYAML []byte

var openapiETag = func() string {
	sum := sha256.Sum256(openapiYAML)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

// OpenAPIHandler serves the embedded OpenAPI document for the seller API.
// Clients revalidate with If-None-Match.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", openapiETag)
		w.Header().Set("Cache-Control", "public, max-age=300")
		if r.Header.Get("If-None-Match") == openapiETag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(openapiYAML)
	}
}
