// Package config resolves client settings from the environment with sensible
// defaults for the production deployment.
package config

type Config interface {
	EnvConfig
	EndpointConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetCredentialsPath() string
	GetRequestTimeoutSeconds() int
}

type EndpointConfig interface {
	GetBaseURL() string
	GetLoginSocketBases() []string
	GetChatSocketURL() string
	GetQRTarget() string
}

type mainConfig struct {
	EnvVars
	Endpoints
}

func New() Config {
	return mainConfig{}
}
