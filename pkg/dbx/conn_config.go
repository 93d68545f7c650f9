package dbx

import (
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/validator"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectionConfig represents the configuration of one named MongoDB connection.
//
// Fields:
//   - URL: the MongoDB connection string.
//   - Database: the database every operation of the connection targets.
//   - ClientOptions: driver options passed through to the client (see applyClientOptions for the supported keys).
//   - Migrations: extra directories searched for migration files.
type ConnectionConfig struct {
	URL           string         `mapstructure:"url" validate:"required"`
	Database      string         `mapstructure:"database" validate:"required"`
	ClientOptions map[string]any `mapstructure:"clientOptions"`
	Migrations    []string       `mapstructure:"migrations"`
}

// MongodbConfig is the `mongodb` section of the application configuration.
type MongodbConfig struct {
	// Connection is the name of the primary connection.
	Connection  string                      `mapstructure:"connection" validate:"required"`
	Connections map[string]ConnectionConfig `mapstructure:"connections" validate:"required,min=1,dive"`
}

// ConnectionKey is the registry key of a connection name. Names are case-insensitive: the
// configuration loader lower-cases map keys but not the values referring to them.
func ConnectionKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Normalized returns a copy of cfg where the primary name and the connection names are
// connection keys.
func (cfg MongodbConfig) Normalized() MongodbConfig {
	out := MongodbConfig{Connection: ConnectionKey(cfg.Connection)}
	if cfg.Connections != nil {
		out.Connections = make(map[string]ConnectionConfig, len(cfg.Connections))
		for name, conn := range cfg.Connections {
			out.Connections[ConnectionKey(name)] = conn
		}
	}

	return out
}

// Validate checks the static invariants of the configuration. The primary connection
// name must be one of the configured connections, and no two connection names may differ
// only by case.
func (cfg MongodbConfig) Validate() error {
	if err := validator.NewValidator().Validate(cfg); err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidConfig, "invalid mongodb configuration")
	}

	normalized := cfg.Normalized()
	if len(normalized.Connections) != len(cfg.Connections) {
		return errorx.New(errorx.CodeInvalidConfig, "connection names must be unique regardless of case")
	}

	if _, ok := normalized.Connections[normalized.Connection]; !ok {
		return errorx.New(errorx.CodeInvalidConfig,
			"primary connection %q is not one of the configured connections", cfg.Connection)
	}

	return nil
}

// Validate checks that the connection can be dialed, without any network I/O.
func (cfg ConnectionConfig) Validate() error {
	if err := validator.NewValidator().Validate(cfg); err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidConfig, "invalid connection configuration")
	}

	_, err := cfg.clientOptions()

	return err
}

// clone returns a copy that shares no mutable state with cfg.
func (cfg ConnectionConfig) clone() ConnectionConfig {
	out := cfg
	if cfg.ClientOptions != nil {
		out.ClientOptions = make(map[string]any, len(cfg.ClientOptions))
		for k, v := range cfg.ClientOptions {
			out.ClientOptions[k] = v
		}
	}

	if cfg.Migrations != nil {
		out.Migrations = append([]string(nil), cfg.Migrations...)
	}

	return out
}

// clientOptions builds the driver options: the URL first, then the ClientOptions entries.
func (cfg ConnectionConfig) clientOptions() (*options.ClientOptions, error) {
	opts := options.Client().ApplyURI(cfg.URL)
	if err := opts.Validate(); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeInvalidConfig, "invalid MongoDB url")
	}

	if err := applyClientOptions(opts, cfg.ClientOptions); err != nil {
		return nil, err
	}

	return opts, nil
}

// applyClientOptions maps the configured clientOptions onto the driver options.
// Keys are matched case-insensitively since viper lower-cases them.
func applyClientOptions(opts *options.ClientOptions, raw map[string]any) error {
	for key, value := range raw {
		var err error

		switch strings.ToLower(key) {
		case "appname":
			var v string
			if v, err = cast.ToStringE(value); err == nil {
				opts.SetAppName(v)
			}
		case "replicaset":
			var v string
			if v, err = cast.ToStringE(value); err == nil {
				opts.SetReplicaSet(v)
			}
		case "maxpoolsize":
			var v uint64
			if v, err = cast.ToUint64E(value); err == nil {
				opts.SetMaxPoolSize(v)
			}
		case "minpoolsize":
			var v uint64
			if v, err = cast.ToUint64E(value); err == nil {
				opts.SetMinPoolSize(v)
			}
		case "maxconnecting":
			var v uint64
			if v, err = cast.ToUint64E(value); err == nil {
				opts.SetMaxConnecting(v)
			}
		case "connecttimeoutms":
			var d time.Duration
			if d, err = millis(value); err == nil {
				opts.SetConnectTimeout(d)
			}
		case "serverselectiontimeoutms":
			var d time.Duration
			if d, err = millis(value); err == nil {
				opts.SetServerSelectionTimeout(d)
			}
		case "sockettimeoutms":
			var d time.Duration
			if d, err = millis(value); err == nil {
				opts.SetSocketTimeout(d)
			}
		case "timeoutms":
			var d time.Duration
			if d, err = millis(value); err == nil {
				opts.SetTimeout(d)
			}
		case "heartbeatfrequencyms":
			var d time.Duration
			if d, err = millis(value); err == nil {
				opts.SetHeartbeatInterval(d)
			}
		case "directconnection":
			var v bool
			if v, err = cast.ToBoolE(value); err == nil {
				opts.SetDirect(v)
			}
		case "retrywrites":
			var v bool
			if v, err = cast.ToBoolE(value); err == nil {
				opts.SetRetryWrites(v)
			}
		case "retryreads":
			var v bool
			if v, err = cast.ToBoolE(value); err == nil {
				opts.SetRetryReads(v)
			}
		default:
			return errorx.New(errorx.CodeInvalidConfig, "unsupported client option %q", key)
		}

		if err != nil {
			return errorx.Wrap(err, errorx.CodeInvalidConfig, "invalid value for client option %q", key)
		}
	}

	return nil
}

func millis(value any) (time.Duration, error) {
	ms, err := cast.ToInt64E(value)
	if err != nil {
		return 0, err
	}

	return time.Duration(ms) * time.Millisecond, nil
}
