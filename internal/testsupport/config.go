package testsupport

import (
	"time"

	"github.com/parallelhq/parallel/internal/config"
)

// Config returns a development configuration with every external
// provider left unconfigured.
func Config() *config.Config {
	return &config.Config{
		AppName:           "Parallel",
		AppEnv:            "development",
		AppURL:            "http://localhost:8090",
		Port:              "8090",
		DBDriver:          "sqlite",
		JWTSecret:         "test-secret-test-secret-test-secret",
		SessionExpiry:     time.Hour,
		ReviewerEmails:    []string{"reviewer@example.com"},
		EmailFrom:         "noreply@example.com",
		OpenRouterTimeout: 5 * time.Second,
		ZylaTimeout:       5 * time.Second,
		TempImageCapacity: 10,
		TempImageTTL:      time.Minute,
		OrientMaxBytes:    1 << 20,
	}
}
