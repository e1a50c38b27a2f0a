package util

import (
	"strings"

	"github.com/spf13/viper"
)

// SetKeyValue sets a config value from an environment variable name with
// its prefix removed. A double underscore separates nested keys:
// CONNECTIONS__DEFAULT__URI sets connections.default.uri.
func SetKeyValue(vi *viper.Viper, key string, value any) bool {
	key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
	if key == "" || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return false
	}
	vi.Set(key, value)
	return true
}
