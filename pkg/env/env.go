package env

import "os"

// Get reads an environment variable, falling back to def when the
// variable is unset or empty.
func Get(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}
