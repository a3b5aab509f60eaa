// Package envutil reads environment variables that may carry the service prefix.
package envutil

import (
	"os"
	"strings"
)

// Prefix is accepted in front of every configuration variable
const Prefix = "WHITEBOARD_"

// Lookup returns the value of key, or of Prefix+key when the bare name is
// unset. The bare name wins when both exist.
func Lookup(key string) (string, bool) {
	if value, ok := os.LookupEnv(key); ok {
		return value, true
	}
	if !strings.HasPrefix(key, Prefix) {
		if value, ok := os.LookupEnv(Prefix + key); ok {
			return value, true
		}
	}
	return "", false
}

// Get is Lookup with a fallback
func Get(key, fallback string) string {
	if value, ok := Lookup(key); ok {
		return value
	}
	return fallback
}
