// Package env reads process environment variables directly, for the
// few call sites that run before pkg/config is loaded.
package env

import "os"

// Get returns the value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
