package config

import (
	"fmt"
	"strings"
)

var _ EnvConfig = mainConfig{}

func (c mainConfig) GetPort() string {
	port := c.v.GetString("port")
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (c mainConfig) GetAppName() string {
	return c.v.GetString("app_name")
}

func (c mainConfig) GetEnv() string {
	env := c.v.GetString("env")
	if env == "" {
		return "DEV"
	}
	return env
}

// IsDev reports whether the server runs in the development environment.
func (c mainConfig) IsDev() bool {
	return strings.EqualFold(c.GetEnv(), "DEV")
}

func (c mainConfig) GetLogLevel() string {
	return c.v.GetString("log_level")
}
