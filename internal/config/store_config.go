package config

import "strings"

type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
	BackendSQLite Backend = "sqlite"
)

type StoreConfig interface {
	GetSessionBackend() Backend
	GetSessionCapacity() int
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
	GetUserBackend() Backend
	GetSQLitePath() string
}

type BootstrapConfig interface {
	GetAdminLogin() string
	GetAdminPassword() string
}

var (
	_ StoreConfig     = mainConfig{}
	_ BootstrapConfig = mainConfig{}
)

func (c mainConfig) GetSessionBackend() Backend {
	return Backend(strings.ToLower(c.v.GetString("store.sessions")))
}

func (c mainConfig) GetSessionCapacity() int {
	return c.v.GetInt("store.session_capacity")
}

func (c mainConfig) GetRedisAddr() string {
	return c.v.GetString("store.redis_addr")
}

func (c mainConfig) GetRedisPassword() string {
	return c.v.GetString("store.redis_password")
}

func (c mainConfig) GetRedisDB() int {
	return c.v.GetInt("store.redis_db")
}

func (c mainConfig) GetRedisPrefix() string {
	return c.v.GetString("store.redis_prefix")
}

func (c mainConfig) GetUserBackend() Backend {
	return Backend(strings.ToLower(c.v.GetString("store.users")))
}

func (c mainConfig) GetSQLitePath() string {
	return c.v.GetString("store.sqlite_path")
}

func (c mainConfig) GetAdminLogin() string {
	return c.v.GetString("bootstrap.admin_login")
}

func (c mainConfig) GetAdminPassword() string {
	return c.v.GetString("bootstrap.admin_password")
}
