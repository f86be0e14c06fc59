package wrapper

import (
	"fmt"
	"strings"
)

const schemeSeparator = "://"

// ParseURI splits "proto://some/path" into its protocol and path. The path
// is returned as written; normalization happens in the stream layer.
func ParseURI(uri string) (protocol, path string, err error) {
	i := strings.Index(uri, schemeSeparator)
	if i <= 0 {
		return "", "", fmt.Errorf("invalid stream URI %q", uri)
	}
	return uri[:i], uri[i+len(schemeSeparator):], nil
}

// BuildURI is the inverse of ParseURI.
func BuildURI(protocol, path string) string {
	return protocol + schemeSeparator + path
}
