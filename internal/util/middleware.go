package util

import (
	"net/http"
	"strings"
)

// StripPrefix removes prefix from the request path so the API can sit
// behind a gateway that forwards e.g. /vmware-manager/api/v1/vms.
func StripPrefix(prefix string) func(http.Handler) http.Handler {
	prefix = strings.TrimSuffix(prefix, "/")
	return func(next http.Handler) http.Handler {
		if prefix == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if path, ok := trimSegment(r.URL.Path, prefix); ok {
				r.URL.Path = path
				if r.URL.RawPath != "" {
					if rawPath, ok := trimSegment(r.URL.RawPath, prefix); ok {
						r.URL.RawPath = rawPath
					} else {
						r.URL.RawPath = ""
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// trimSegment removes prefix from path when it ends at a segment boundary,
// so "/api" matches "/api" and "/api/v1" but not "/apix".
func trimSegment(path, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok || (rest != "" && rest[0] != '/') {
		return path, false
	}
	if rest == "" {
		rest = "/"
	}
	return rest, true
}
