package configmgr

import (
	"strings"

	"github.com/zakodium/adonis-mongodb/pkg/dbx"
)

// Config - config interface.
type Config interface {
	GetServiceName() string
	GetVersion() string
	GetEnvironment() string
	GetLogLevel() string
	GetServerConfig() *ServerConfig
	GetLoggingConfig() *LoggingConfig
	GetMongodbConfig() dbx.MongodbConfig
	IsLocalEnvironment() bool
}

// BaseConfig - app config struct.
// This struct represents the base configuration for the application and is expected to be in the following YAML format:
/*
name: "blog"
environment: "local"
version: "1.0"
logging:
  level: "debug"
server:
  port: "8080"
  concurrency: 10
  disableStartupMsg: false
mongodb:
  connection: main
  connections:
    main:
      url: mongodb://localhost:27017
      database: blog
      clientOptions:
        appName: blog
        serverSelectionTimeoutMS: 5000
      migrations:
        - extra/migrations
*/
type BaseConfig struct {
	Name        string            `mapstructure:"name"`
	Environment string            `mapstructure:"environment"`
	Version     string            `mapstructure:"version"`
	Logging     *LoggingConfig    `mapstructure:"logging"`
	Server      *ServerConfig     `mapstructure:"server"`
	Mongodb     dbx.MongodbConfig `mapstructure:"mongodb"`
}

type ServerConfig struct {
	Port                  string `mapstructure:"port"`
	Concurrency           int    `mapstructure:"concurrency"`
	DisableStartupMessage bool   `mapstructure:"disableStartupMsg"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func (cfg BaseConfig) GetServiceName() string {
	return cfg.Name
}

func (cfg BaseConfig) GetVersion() string {
	return cfg.Version
}

func (cfg BaseConfig) GetEnvironment() string {
	return cfg.Environment
}

func (cfg BaseConfig) IsLocalEnvironment() bool {
	return checkIfLocalEnv(strings.ToUpper(cfg.Environment))
}

func (cfg BaseConfig) GetServerConfig() *ServerConfig {
	if cfg.Server == nil {
		return &ServerConfig{Port: "8080"}
	}

	return cfg.Server
}

func (cfg BaseConfig) GetLoggingConfig() *LoggingConfig {
	if cfg.Logging == nil {
		return &LoggingConfig{Level: "info"}
	}

	return cfg.Logging
}

func (cfg BaseConfig) GetLogLevel() string {
	return cfg.GetLoggingConfig().Level
}

// GetMongodbConfig returns the mongodb section with connection names normalized by dbx.ConnectionKey.
func (cfg BaseConfig) GetMongodbConfig() dbx.MongodbConfig {
	return cfg.Mongodb.Normalized()
}
