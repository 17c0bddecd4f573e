package web

import (
	"net/http"
)

// Query returns the value of the specified query string parameter.
func Query(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}
