// Package config provides Viper-based configuration loading for the firearm
// charge service.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// ServerConfig holds the gRPC listener settings the host middleware connects to.
type ServerConfig struct {
	// GRPCHost is the bind address for the firearm gRPC service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the firearm gRPC service.
	GRPCPort int `mapstructure:"grpc_port"`
	// OperatorTokenHash is a bcrypt hash of the token operator clients send
	// to list and answer reload prompts. Empty leaves those RPCs open.
	OperatorTokenHash string `mapstructure:"operator_token_hash"`
}

// Addr returns the "host:port" gRPC address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.GRPCHost, s.GRPCPort)
}

// AdminConfig holds the HTTP listener serving metrics and health checks.
type AdminConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the "host:port" admin listen address.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN renders the settings as a postgres:// URL for pgx and golang-migrate.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// FirearmConfig holds the classification registry and the optional misfire rules.
type FirearmConfig struct {
	// FlagNamespace is the document flag scope the isFirearm flag lives under.
	FlagNamespace string `mapstructure:"flag_namespace"`
	// RegistryFile is an optional YAML file of muzzle-loading firearm names.
	// Names from the file are merged with Names.
	RegistryFile string `mapstructure:"registry_file"`
	// Names is the inline registry of muzzle-loading firearm names.
	Names []string `mapstructure:"names"`
	// MisfireEnabled turns natural-1 misfire evaluation on or off.
	MisfireEnabled bool `mapstructure:"misfire_enabled"`
	// CatastrophicMisfire enables the barrel-crack branch for a natural 1 rolled
	// with disadvantage. When false such a roll fouls the barrel instead.
	CatastrophicMisfire bool `mapstructure:"catastrophic_misfire"`
	// MagicConsumesCharge makes magical firearms spend a charge per shot.
	MagicConsumesCharge bool `mapstructure:"magic_consumes_charge"`
	// PromptTimeout bounds how long a reload prompt waits for an answer before
	// it is dismissed. Zero waits until the attack request is cancelled.
	PromptTimeout time.Duration `mapstructure:"prompt_timeout"`
	// ScriptDir is an optional directory of Lua house-rule scripts. A
	// misfire_outcome function defined there may override misfire results.
	ScriptDir string `mapstructure:"script_dir"`
	// ScriptInstructionLimit caps Lua opcodes per script call.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Firearm  FirearmConfig  `mapstructure:"firearm"`
}

// problems collects every violation so an operator sees them all at once.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) port(key string, v int) {
	if v < 1 || v > 65535 {
		p.addf("%s must be 1-65535, got %d", key, v)
	}
}

func (p *problems) oneOf(key, v string, allowed ...string) {
	if !slices.Contains(allowed, v) {
		p.addf("%s must be one of [%s], got %q", key, strings.Join(allowed, ", "), v)
	}
}

// Validate reports every invalid setting in one error, or nil.
func (c Config) Validate() error {
	var p problems
	c.Server.validate(&p)
	p.port("admin.port", c.Admin.Port)
	c.Database.validate(&p)
	p.oneOf("logging.level", c.Logging.Level, "debug", "info", "warn", "error")
	p.oneOf("logging.format", c.Logging.Format, "json", "console")
	c.Firearm.validate(&p)
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(p, "; "))
}

func (s ServerConfig) validate(p *problems) {
	if s.GRPCHost == "" {
		p.addf("server.grpc_host must not be empty")
	}
	p.port("server.grpc_port", s.GRPCPort)
	if s.OperatorTokenHash == "" {
		return
	}
	if _, err := bcrypt.Cost([]byte(s.OperatorTokenHash)); err != nil {
		p.addf("server.operator_token_hash is not a bcrypt hash: %v", err)
	}
}

func (d DatabaseConfig) validate(p *problems) {
	if d.Host == "" {
		p.addf("database.host must not be empty")
	}
	p.port("database.port", d.Port)
	if d.User == "" {
		p.addf("database.user must not be empty")
	}
	if d.Name == "" {
		p.addf("database.name must not be empty")
	}
	p.oneOf("database.sslmode", d.SSLMode, "disable", "require", "verify-ca", "verify-full")
	switch {
	case d.MaxConns < 1:
		p.addf("database.max_conns must be >= 1, got %d", d.MaxConns)
	case d.MinConns < 0:
		p.addf("database.min_conns must be >= 0, got %d", d.MinConns)
	case d.MinConns > d.MaxConns:
		p.addf("database.min_conns must not exceed database.max_conns")
	}
}

func (f FirearmConfig) validate(p *problems) {
	if f.FlagNamespace == "" {
		p.addf("firearm.flag_namespace must not be empty")
	}
	if len(f.Names) == 0 && f.RegistryFile == "" {
		p.addf("firearm.names or firearm.registry_file must be set")
	}
	for i, n := range f.Names {
		if strings.TrimSpace(n) == "" {
			p.addf("firearm.names[%d] must not be blank", i)
		}
	}
	if f.PromptTimeout < 0 {
		p.addf("firearm.prompt_timeout must be >= 0, got %s", f.PromptTimeout)
	}
	if f.ScriptInstructionLimit < 0 {
		p.addf("firearm.script_instruction_limit must be >= 0, got %d", f.ScriptInstructionLimit)
	}
	if f.CatastrophicMisfire && !f.MisfireEnabled {
		p.addf("firearm.catastrophic_misfire requires firearm.misfire_enabled")
	}
}

// Load reads the YAML file at path, layers FIREARM_* environment overrides
// on top (FIREARM_DATABASE_HOST overrides database.host) and validates.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("FIREARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return decode(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance,
// with defaults underneath whatever v already holds. firesim uses it to run
// without a config file.
//
// Precondition: v must be non-nil.
func LoadFromViper(v *viper.Viper) (Config, error) {
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultFirearmNames is the built-in registry of muzzle-loading firearms.
var DefaultFirearmNames = []string{
	"RHC Basic Issue Pistol",
	"Flintlock Pistol",
	"Musket",
	"Blunderbuss",
	"Pepperbox",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_host", "127.0.0.1")
	v.SetDefault("server.grpc_port", 50061)

	v.SetDefault("admin.host", "0.0.0.0")
	v.SetDefault("admin.port", 9090)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "firearm")
	v.SetDefault("database.password", "firearm")
	v.SetDefault("database.name", "firearm")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("firearm.flag_namespace", "firearm-charge-management")
	v.SetDefault("firearm.names", DefaultFirearmNames)
	v.SetDefault("firearm.misfire_enabled", true)
	v.SetDefault("firearm.catastrophic_misfire", true)
	v.SetDefault("firearm.magic_consumes_charge", true)
	v.SetDefault("firearm.prompt_timeout", "2m")
	v.SetDefault("firearm.script_dir", "")
	v.SetDefault("firearm.script_instruction_limit", 100000)
}
