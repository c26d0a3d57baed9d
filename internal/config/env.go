package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv retrieves a non-sensitive environment variable with a fallback.
// Use this for ports, hosts, feature toggles — anything that isn't a secret.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer.
func GetEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean.
func GetEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(GetEnv(key, "")) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// GetEnvAsDuration retrieves an environment variable as a duration.
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// GetSecret retrieves a sensitive value. Deployment-specific secrets
// backends (KMS, Vault, Kubernetes projected secrets) are out of scope
// here; this always reads the process environment.
func GetSecret(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetServerSecret returns the server-wide secret mixed into the seed used
// to deterministically derive each client's LSH planes. It must stay
// stable across restarts for plane regeneration to be reproducible.
func GetServerSecret() string {
	return GetSecret("SECURE_SEARCH_SERVER_SECRET", "dev-server-secret-change-in-production")
}
