package instance

import (
	"os"

	"github.com/angelmondragon/localstore-backend/pkg/env"
)

// EnvInstanceID overrides the process identifier attached to logs.
const EnvInstanceID = "LOCALSTORE_INSTANCE_ID"

// GetID identifies this process: the explicit override, then the platform
// dyno name, then the hostname.
func GetID() string {
	if id := env.First(EnvInstanceID, "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
