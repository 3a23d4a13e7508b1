// Package config loads the adaptor's configuration from, in increasing
// precedence: built-in defaults, an adaptor-config.properties file, process
// environment variables, and -Dkey=value command-line overrides — matching
// spec.md §6 ("Command-line flags ... override config").
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/magiconair/properties"
	"github.com/spf13/pflag"
)

var validate = validator.New()

// Config is the root configuration structure, struct-per-concern with
// env:/envDefault: tags, following the teacher's config layout. validate:
// tags are enforced by Load after every override source has been applied,
// catching a bad -D override or properties-file entry as well as a bad
// environment variable.
type Config struct {
	GSA      GSAConfig      `envPrefix:"GSA_" validate:"required"`
	Server   ServerConfig   `envPrefix:"SERVER_" validate:"required"`
	Feed     FeedConfig     `envPrefix:"FEED_" validate:"required"`
	DocId    DocIdConfig    `envPrefix:"DOCID_"`
	Adaptor  AdaptorConfig  `envPrefix:"ADAPTOR_" validate:"required"`
	Admin    AdminConfig    `envPrefix:"ADMIN_"`
	Database DatabaseConfig `envPrefix:"DB_"`
}

// GSAConfig names the appliance this adaptor feeds and is fed by.
type GSAConfig struct {
	Hostname string `env:"HOSTNAME" validate:"required"` // gsa.hostname
	FeedPort int    `env:"FEED_PORT" envDefault:"19900" validate:"gt=0,lte=65535"`
}

// ServerConfig controls the adaptor's own HTTP surface.
type ServerConfig struct {
	Port              int           `env:"PORT" envDefault:"5678" validate:"gt=0,lte=65535"`
	DashboardPort     int           `env:"DASHBOARD_PORT" envDefault:"5679" validate:"gt=0,lte=65535"`
	Secure            bool          `env:"SECURE" envDefault:"false"`
	Hostname          string        `env:"HOSTNAME" envDefault:""`
	MaxWorkerThreads  int           `env:"MAX_WORKER_THREADS" envDefault:"50" validate:"gt=0"`
	QueueCapacity     int           `env:"QUEUE_CAPACITY" envDefault:"100" validate:"gt=0"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	ShutdownGrace     time.Duration `env:"SHUTDOWN_GRACE" envDefault:"3s" validate:"gt=0"`
	TrustedPeers      []string      `env:"TRUSTED_PEERS" envSeparator:","`
	AutoAddGSAAsTrust bool          `env:"AUTO_ADD_GSA_AS_TRUSTED_PEER" envDefault:"true"`
	MarkDocsPublic    []string      `env:"MARK_DOCS_PUBLIC" envSeparator:","`
	DashboardOrigins  []string      `env:"DASHBOARD_ALLOWED_ORIGINS" envSeparator:","`
}

// FeedConfig controls feed submission (spec.md §6's feed.* keys).
type FeedConfig struct {
	Name             string `env:"NAME" envDefault:"default" validate:"required"`
	MaxUrls          int    `env:"MAX_URLS" envDefault:"500" validate:"gt=0"`
	ArchiveDirectory string `env:"ARCHIVE_DIRECTORY" envDefault:""`
	Gzip             bool   `env:"GZIP" envDefault:"false"`
}

// DocIdConfig controls identifier codec behavior.
type DocIdConfig struct {
	IsUrl bool `env:"IS_URL" envDefault:"false"`
}

// AdaptorConfig carries the remaining top-level adaptor.* keys.
type AdaptorConfig struct {
	FullListingSchedule string `env:"FULL_LISTING_SCHEDULE" envDefault:"03:00:00" validate:"required"`
	IncrementalSchedule string `env:"INCREMENTAL_SCHEDULE" envDefault:""` // empty disables polling
}

// AdminConfig holds default administrator credentials for the dashboard's
// minimal login surface (see internal/dashboard, internal/adminstore).
type AdminConfig struct {
	Username string `env:"USERNAME" envDefault:"admin"`
	Password string `env:"PASSWORD" envDefault:""`
}

// DatabaseConfig is consulted only if the dashboard's admin-account store is
// backed by Postgres (internal/adminstore); unused otherwise.
type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	Name     string `env:"NAME" envDefault:"gsa_adaptor"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"`
}

// Load builds a Config from defaults, overlaid by an adaptor-config.
// properties file (if present), environment variables, and finally any
// -Dkey=value arguments in args (typically os.Args[1:]). The keys
// -Dadaptor.configfile and -Dsys.properties.file name the properties files
// to read.
func Load(args []string) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: error parsing environment variables: %w", err)
	}

	flags, overrides, err := parseFlags(args)
	if err != nil {
		return nil, err
	}

	propsPath := flags.configFile
	if propsPath == "" {
		propsPath = "adaptor-config.properties"
	}
	if flags.sysPropertiesFile != "" {
		if err := applyPropertiesFile(&cfg, flags.sysPropertiesFile); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(propsPath); err == nil {
		if err := applyPropertiesFile(&cfg, propsPath); err != nil {
			return nil, err
		}
	}

	// Environment variables take precedence over the properties file.
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: error re-parsing environment variables: %w", err)
	}

	applyOverrides(&cfg, overrides)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

type flagResult struct {
	configFile        string
	sysPropertiesFile string
}

// parseFlags extracts adaptor.configfile/sys.properties.file and every
// -Dkey=value pair via pflag, per spec.md §6.
func parseFlags(args []string) (flagResult, map[string]string, error) {
	fs := pflag.NewFlagSet("gsa-adaptor", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	defs := fs.StringArrayP("D", "D", nil, "override a config key: -Dkey=value")
	if err := fs.Parse(args); err != nil {
		return flagResult{}, nil, err
	}

	overrides := map[string]string{}
	for _, kv := range *defs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return flagResult{}, nil, fmt.Errorf("config: malformed -D%s, want -Dkey=value", kv)
		}
		overrides[k] = v
	}

	result := flagResult{
		configFile:        overrides["adaptor.configfile"],
		sysPropertiesFile: overrides["sys.properties.file"],
	}
	return result, overrides, nil
}

// applyPropertiesFile loads a Java-properties-format config file and
// overlays its known keys onto cfg.
func applyPropertiesFile(cfg *Config, path string) error {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return fmt.Errorf("config: failed to load properties file %s: %w", path, err)
	}
	kv := p.Map()
	applyOverrides(cfg, kv)
	return nil
}

// applyOverrides maps the spec's representative dotted keys onto Config
// fields. Unknown keys are ignored (the appliance config file may carry
// keys this core does not consume, e.g. SAML settings).
func applyOverrides(cfg *Config, kv map[string]string) {
	set := func(key string, fn func(string)) {
		if v, ok := kv[key]; ok {
			fn(v)
		}
	}
	set("gsa.hostname", func(v string) { cfg.GSA.Hostname = v })
	set("server.port", func(v string) { cfg.Server.Port = atoiOr(v, cfg.Server.Port) })
	set("server.dashboardPort", func(v string) { cfg.Server.DashboardPort = atoiOr(v, cfg.Server.DashboardPort) })
	set("server.secure", func(v string) { cfg.Server.Secure = v == "true" })
	set("server.maxWorkerThreads", func(v string) { cfg.Server.MaxWorkerThreads = atoiOr(v, cfg.Server.MaxWorkerThreads) })
	set("server.queueCapacity", func(v string) { cfg.Server.QueueCapacity = atoiOr(v, cfg.Server.QueueCapacity) })
	set("feed.name", func(v string) { cfg.Feed.Name = v })
	set("feed.maxUrls", func(v string) { cfg.Feed.MaxUrls = atoiOr(v, cfg.Feed.MaxUrls) })
	set("feed.archiveDirectory", func(v string) { cfg.Feed.ArchiveDirectory = v })
	set("docId.isUrl", func(v string) { cfg.DocId.IsUrl = v == "true" })
	set("adaptor.fullListingSchedule", func(v string) { cfg.Adaptor.FullListingSchedule = v })
}

func atoiOr(s string, fallback int) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return fallback
}

// GetDSN builds the admin-store Postgres DSN.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.Name, c.Database.SSLMode)
}

// GetServerAddr returns the doc/authz server's bind address.
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// GetDashboardAddr returns the dashboard server's bind address.
func (c *Config) GetDashboardAddr() string {
	return fmt.Sprintf(":%d", c.Server.DashboardPort)
}

// GetFeedURL builds the appliance's feed submission endpoint.
func (c *Config) GetFeedURL() string {
	scheme := "http"
	if c.Server.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d/xmlfeed", scheme, c.GSA.Hostname, c.GSA.FeedPort)
}
