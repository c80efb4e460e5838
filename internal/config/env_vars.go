package config

import (
	"os"
	"path/filepath"
	"strconv"
)

const (
	appNameVar         = "APP_NAME"
	envVar             = "ENV"
	credentialsPathVar = "CREDENTIALS_PATH"
	requestTimeoutVar  = "REQUEST_TIMEOUT_SECONDS"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "taskbotctl")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "production")
}

func (EnvVars) GetCredentialsPath() string {
	if path := GetEnv(credentialsPathVar, ""); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.json"
	}
	return filepath.Join(home, ".taskbot", "credentials.json")
}

func (EnvVars) GetRequestTimeoutSeconds() int {
	raw := GetEnv(requestTimeoutVar, "30")
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 30
	}
	return seconds
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
