package infra

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata" // embedded zoneinfo for engine.timezone

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "SPEEDREAD"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AppConfig App option object
type AppConfig struct {
	AppID          string        `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // Application ID
	Version        string        `mapstructure:"version" json:"version" yaml:"version"`                             // reported by /api/v1/status
	Host           string        `mapstructure:"host" json:"host" yaml:"host"`                                      // bind host address
	Port           int           `mapstructure:"port" json:"port" yaml:"port" validate:"min=1,max=65535"`           // bind listen port
	Env            string        `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	SessionTimeout time.Duration `mapstructure:"session_timeout" json:"session_timeout" yaml:"session_timeout"`
	SessionRefresh time.Duration `mapstructure:"session_refresh" json:"session_refresh" yaml:"session_refresh"` // session refresh threshold
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	Database       struct {
		Driver   string `mapstructure:"driver" json:"driver" yaml:"driver" validate:"oneof=mongo postgres mysql sqlite"` // driver name
		Host     string `mapstructure:"host" json:"host" yaml:"host"`                                                    // server host
		MaxConn  int32  `mapstructure:"maxconn" json:"maxconn" yaml:"maxconn" validate:"min=1"`                          // maximum opening connections number
		Password string `mapstructure:"password" json:"password" yaml:"password"`                                        // db password
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`                                                    // server port
		Protocol string `mapstructure:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=tcp udp"`     // connection protocol, eg.tcp
		Query    string `mapstructure:"query" json:"query" yaml:"query"`                                                 // DSN query parameter
		Schema   string `mapstructure:"schema" json:"schema" yaml:"schema"`                                              // use schema, database name for mongo
		User     string `mapstructure:"username" json:"username" yaml:"username"`                                        // db username
		URI      string `mapstructure:"uri" json:"uri" yaml:"uri"`                                                       // mongo connection string
		Path     string `mapstructure:"path" json:"path" yaml:"path"`                                                    // sqlite file
	} `mapstructure:"database" json:"database" yaml:"database"`
	Logging struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	Security struct {
		IDKind           string        `mapstructure:"id_kind" json:"id_kind" yaml:"id_kind" validate:"oneof=nanoid uuid"`
		IDLength         int           `mapstructure:"id_length" json:"id_length" yaml:"id_length" validate:"min=8"` // length of generated ID for entities
		JWTMethod        string        `mapstructure:"jwt_method" json:"jwt_method" yaml:"jwt_method" validate:"oneof=HS256 HS512"`
		JWTSecret        string        `mapstructure:"jwt_secret" json:"jwt_secret" yaml:"jwt_secret" validate:"required"`
		TokenName        string        `mapstructure:"token_name" json:"token_name" yaml:"token_name" validate:"required"`     // jwt token name set in cookie
		MaxLoginAttempts int           `mapstructure:"max_login_attempts" json:"max_login_attempts" yaml:"max_login_attempts"` // maximum login attempts
		RetryTimeout     time.Duration `mapstructure:"retry_timeout" json:"retry_timeout" yaml:"retry_timeout"`                // retry wait
	} `mapstructure:"security" json:"security" yaml:"security"`
	KVStore struct {
		Host     string `mapstructure:"host" json:"host" yaml:"host"`
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`
		Password string `mapstructure:"password" json:"password" yaml:"password"`
		DB       int    `mapstructure:"db" json:"db" yaml:"db"`
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	RateLimit struct {
		Window  time.Duration `mapstructure:"window" json:"window" yaml:"window"`
		Max     int           `mapstructure:"max" json:"max" yaml:"max"`           // requests per window on /api, 0 disables
		AuthMax int           `mapstructure:"auth_max" json:"auth_max" yaml:"auth_max"` // requests per window on auth routes, 0 disables
	} `mapstructure:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	CORS struct {
		Origins []string `mapstructure:"origins" json:"origins" yaml:"origins"`
	} `mapstructure:"cors" json:"cors" yaml:"cors"`
	Engine struct {
		Timezone          string `mapstructure:"timezone" json:"timezone" yaml:"timezone"` // calendar day / week boundaries
		MaxWPM            int    `mapstructure:"max_wpm" json:"max_wpm" yaml:"max_wpm" validate:"min=1"`
		RejectImplausible bool   `mapstructure:"reject_implausible" json:"reject_implausible" yaml:"reject_implausible"`
		AchievementsFile  string `mapstructure:"achievements_file" json:"achievements_file" yaml:"achievements_file"`
		MaxRetries        uint   `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries" validate:"min=1"` // attempts on version conflicts
	} `mapstructure:"engine" json:"engine" yaml:"engine"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// Location calendar location of the engine, call after LoadConfig validated it
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RegisterFlags registers every config key with its default on fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (yaml, json or toml), flags and env override it")

	// app
	fs.String("host", "", "binding address")
	fs.String("app_id", "speedread", "application identifier")
	fs.String("version", "dev", "application version reported by the status endpoint")
	fs.String("env", EnvDevelopment, "runtime environment, can be 'development' or 'production'")
	fs.Int("port", 8081, "listening port")
	fs.Duration("session_timeout", 30*time.Minute, "JWT lifetime(m, s and h units are supported), eg.30m")
	fs.Duration("session_refresh", 5*time.Minute, "session refresh threshold(m, s and h units are supported), eg.5m")
	fs.Duration("request_timeout", 30*time.Second, "request processing timeout")

	// database
	fs.String("database.driver", "sqlite", "storage driver, one of mongo, postgres, mysql or sqlite")
	fs.String("database.host", "127.0.0.1", "database host")
	fs.Int("database.port", 5432, "database server port")
	fs.String("database.protocol", "", "connection protocol(if mysql is used, this flag must be set), eg.tcp")
	fs.String("database.username", "", "database username")
	fs.String("database.password", "", "database password")
	fs.String("database.schema", "speedread", "database schema, or database name for mongo")
	fs.String("database.query", "", `additional DSN query parameters('?' is auto prefixed)`)
	fs.String("database.uri", "", "mongo connection string, eg.mongodb://127.0.0.1:27017")
	fs.String("database.path", "speedread.db", "sqlite database file")
	fs.Int32("database.maxconn", 50, `max connection count, if you encounter a "too many connections" error, please consider
increasing the max_connection value of your db server, or lower this value`)

	// logging
	fs.String("logging.level", "info", "logging level")
	fs.String("logging.file_path", "", "log to file")

	// security
	fs.String("security.id_kind", "nanoid", "entity ID generator, nanoid or uuid")
	fs.Int("security.id_length", 24, "set length of generated nanoid for entities")
	fs.String("security.jwt_method", "HS256", "hash algorithm used for JWT auth")
	fs.String("security.jwt_secret", "", "JWT secret (required)")
	fs.String("security.token_name", "speedread_token", "cookie name to store the token")
	fs.Int("security.max_login_attempts", 5, "maximum failed login attempts before locking")
	fs.Duration("security.retry_timeout", 15*time.Minute, "lock duration after too many failed logins")

	// kv storage
	fs.String("kv.host", "127.0.0.1", "kv host")
	fs.Int("kv.port", 6379, "kv server port")
	fs.String("kv.password", "", "kv server password")
	fs.Int("kv.db", 0, "kv database index")

	// rate limiting
	fs.Duration("rate_limit.window", 15*time.Minute, "rate limit window")
	fs.Int("rate_limit.max", 100, "max api requests per window and client, 0 disables")
	fs.Int("rate_limit.auth_max", 5, "max auth requests per window and client, 0 disables")

	// cors
	fs.StringSlice("cors.origins", []string{"http://localhost:3000"}, "allowed CORS origins")

	// engine
	fs.String("engine.timezone", "UTC", "IANA time zone used for streak days and ISO weeks")
	fs.Int("engine.max_wpm", 2000, "reading speeds above this are flagged as implausible")
	fs.Bool("engine.reject_implausible", false, "reject implausible sessions instead of storing them flagged")
	fs.String("engine.achievements_file", "", "TOML achievement catalog, built-in catalog when empty")
	fs.Uint("engine.max_retries", 5, "attempts to save progress on concurrent modification")

	// DevOp
	fs.Bool("devop.apm", false, "enable apm metrics")
}

// LoadConfig resolves config from flags, env (SPEEDREAD_ prefix) and the
// optional config file, then validates it
func LoadConfig(fs *pflag.FlagSet) (*AppConfig, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config = new(AppConfig)
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("App config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "-" || name == "" {
			name = fld.Tag.Get("yaml")
			if name == "-" || name == "" {
				return ""
			}
		}
		return name
	})

	var msg []string
	if err := validate.Struct(config); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("failed to validate config: %w", err)
		}
		for _, field := range verrs {
			namespace := field.Namespace()
			fieldName := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
			switch field.Tag() {
			case "required":
				msg = append(msg, fmt.Sprintf("%s is required", fieldName))
			case "oneof":
				msg = append(msg, fmt.Sprintf("%s must be one of (%s)", fieldName, field.Param()))
			case "min", "max":
				msg = append(msg, fmt.Sprintf("%s must be %s %s", fieldName, field.Tag(), field.Param()))
			default:
				msg = append(msg, fmt.Sprintf("%s is invalid", fieldName))
			}
		}
	}

	db := config.Database
	switch db.Driver {
	case "mongo":
		if db.URI == "" && db.Host == "" {
			msg = append(msg, "database.uri or database.host is required for mongo")
		}
	case "sqlite":
		if db.Path == "" {
			msg = append(msg, "database.path is required for sqlite")
		}
	case "postgres", "mysql":
		if db.User == "" || db.Schema == "" {
			msg = append(msg, fmt.Sprintf("database.username and database.schema are required for %s", db.Driver))
		}
	}
	if _, err := time.LoadLocation(config.Engine.Timezone); err != nil {
		msg = append(msg, fmt.Sprintf("engine.timezone: %s", err))
	}

	if len(msg) > 0 {
		return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
	}
	return nil
}
