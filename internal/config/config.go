package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/toolsascode/sqldatabase/internal/backendfactory"
	"github.com/toolsascode/sqldatabase/internal/backends"
	"github.com/toolsascode/sqldatabase/internal/backends/mssql"
	"github.com/toolsascode/sqldatabase/internal/backends/mysql"
	"github.com/toolsascode/sqldatabase/internal/backends/postgresql"
	"github.com/toolsascode/sqldatabase/internal/backends/sqlite"
	lockEtcd "github.com/toolsascode/sqldatabase/internal/lock/etcd"
	"github.com/toolsascode/sqldatabase/internal/queuefactory"
	"github.com/toolsascode/sqldatabase/internal/scripts"
	"github.com/toolsascode/sqldatabase/internal/variables"
)

// VersionScripts overrides the scripts reading and writing module versions
type VersionScripts struct {
	GetCurrentVersion string `yaml:"getCurrentVersion"`
	SetCurrentVersion string `yaml:"setCurrentVersion"`
}

func (s VersionScripts) toBackend() backends.Scripts {
	return backends.Scripts{
		GetCurrentVersion: strings.TrimSpace(s.GetCurrentVersion),
		SetCurrentVersion: strings.TrimSpace(s.SetCurrentVersion),
	}
}

// Config holds the application configuration
type Config struct {
	// Database is the connection string of the target database
	Database           string   `yaml:"database"`
	Sources            []string `yaml:"sources"`
	Transaction        string   `yaml:"transaction"`
	FolderAsModuleName bool     `yaml:"folderAsModuleName"`

	VersionScripts `yaml:",inline"`
	MSSql          VersionScripts `yaml:"mssql"`
	PgSql          VersionScripts `yaml:"pgsql"`
	MySql          VersionScripts `yaml:"mysql"`
	Sqlite         VersionScripts `yaml:"sqlite"`

	Variables map[string]string `yaml:"variables"`

	Scripts struct {
		Extensions []string `yaml:"extensions"`
	} `yaml:"scripts"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // "text" or "json"
	} `yaml:"log"`

	Server struct {
		HTTPPort string `yaml:"httpPort"`
		APIToken string `yaml:"apiToken"`
	} `yaml:"server"`

	Queue struct {
		Enabled            bool     `yaml:"enabled"` // false = synchronous execution
		Type               string   `yaml:"type"`    // "kafka" or "pulsar"
		KafkaBrokers       []string `yaml:"kafkaBrokers"`
		KafkaTopic         string   `yaml:"kafkaTopic"`
		KafkaGroupID       string   `yaml:"kafkaGroupId"`
		PulsarURL          string   `yaml:"pulsarUrl"`
		PulsarTopic        string   `yaml:"pulsarTopic"`
		PulsarSubscription string   `yaml:"pulsarSubscription"`
	} `yaml:"queue"`

	Lock struct {
		Type      string   `yaml:"type"` // "none" or "etcd"
		Endpoints []string `yaml:"endpoints"`
		Username  string   `yaml:"username"`
		Password  string   `yaml:"password"`
		Prefix    string   `yaml:"prefix"`
		TTL       int      `yaml:"ttl"`     // seconds
		Timeout   int      `yaml:"timeout"` // seconds
	} `yaml:"lock"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	config := &Config{
		Transaction: "none",
		Variables:   make(map[string]string),
	}
	config.Scripts.Extensions = append([]string(nil), scripts.DefaultExtensions...)
	config.Log.Format = "text"
	config.Server.HTTPPort = "7070"
	config.Queue.Type = "kafka"
	config.Queue.KafkaBrokers = []string{"localhost:9092"}
	config.Queue.KafkaTopic = "sqldatabase-upgrades"
	config.Queue.PulsarURL = "pulsar://localhost:6650"
	config.Queue.PulsarTopic = "sqldatabase-upgrades"
	config.Lock.Type = "none"
	return config
}

// Load builds the configuration from the defaults, the YAML file at path
// (or SQLDATABASE_CONFIG when path is empty) and the environment, in that
// order of precedence
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		path = os.Getenv("SQLDATABASE_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
		}
		if config.Variables == nil {
			config.Variables = make(map[string]string)
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv overrides settings from SQLDATABASE_* environment variables
func (c *Config) applyEnv() {
	c.Database = getEnvOrDefault("SQLDATABASE_DATABASE", c.Database)
	if sources := os.Getenv("SQLDATABASE_SOURCES"); sources != "" {
		c.Sources = splitList(sources)
	}
	c.Transaction = getEnvOrDefault("SQLDATABASE_TRANSACTION", c.Transaction)

	c.Log.Level = getEnvOrDefault("SQLDATABASE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("SQLDATABASE_LOG_FORMAT", c.Log.Format)

	// Server configuration
	c.Server.HTTPPort = getEnvOrDefault("SQLDATABASE_HTTP_PORT", c.Server.HTTPPort)
	c.Server.APIToken = getEnvOrDefault("SQLDATABASE_API_TOKEN", c.Server.APIToken)

	// Queue configuration
	c.Queue.Enabled = getEnvBool("SQLDATABASE_QUEUE_ENABLED", c.Queue.Enabled)
	c.Queue.Type = getEnvOrDefault("SQLDATABASE_QUEUE_TYPE", c.Queue.Type)
	if brokers := os.Getenv("SQLDATABASE_QUEUE_KAFKA_BROKERS"); brokers != "" {
		c.Queue.KafkaBrokers = splitList(brokers)
	}
	c.Queue.KafkaTopic = getEnvOrDefault("SQLDATABASE_QUEUE_KAFKA_TOPIC", c.Queue.KafkaTopic)
	c.Queue.KafkaGroupID = getEnvOrDefault("SQLDATABASE_QUEUE_KAFKA_GROUP_ID", c.Queue.KafkaGroupID)
	c.Queue.PulsarURL = getEnvOrDefault("SQLDATABASE_QUEUE_PULSAR_URL", c.Queue.PulsarURL)
	c.Queue.PulsarTopic = getEnvOrDefault("SQLDATABASE_QUEUE_PULSAR_TOPIC", c.Queue.PulsarTopic)
	c.Queue.PulsarSubscription = getEnvOrDefault("SQLDATABASE_QUEUE_PULSAR_SUBSCRIPTION", c.Queue.PulsarSubscription)

	// Lock configuration
	c.Lock.Type = getEnvOrDefault("SQLDATABASE_LOCK_TYPE", c.Lock.Type)
	if endpoints := os.Getenv("SQLDATABASE_LOCK_ETCD_ENDPOINTS"); endpoints != "" {
		c.Lock.Endpoints = splitList(endpoints)
	}
	c.Lock.Username = getEnvOrDefault("SQLDATABASE_LOCK_ETCD_USERNAME", c.Lock.Username)
	c.Lock.Password = getEnvOrDefault("SQLDATABASE_LOCK_ETCD_PASSWORD", c.Lock.Password)
	c.Lock.Prefix = getEnvOrDefault("SQLDATABASE_LOCK_ETCD_PREFIX", c.Lock.Prefix)
	c.Lock.TTL = getEnvInt("SQLDATABASE_LOCK_TTL", c.Lock.TTL)
	c.Lock.Timeout = getEnvInt("SQLDATABASE_LOCK_TIMEOUT", c.Lock.Timeout)
}

// Validate checks variable names and the enumerated settings
func (c *Config) Validate() error {
	names := make([]string, 0, len(c.Variables))
	for name := range c.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := variables.ValidateNames(names); err != nil {
		return err
	}

	switch strings.ToLower(c.Transaction) {
	case "", "none", "perstep":
	default:
		return fmt.Errorf("invalid transaction mode %q (supported: none, perStep)", c.Transaction)
	}

	switch strings.ToLower(c.Lock.Type) {
	case "", "none":
	case "etcd":
		if len(c.Lock.Endpoints) == 0 {
			return fmt.Errorf("lock type etcd requires endpoints")
		}
	default:
		return fmt.Errorf("unsupported lock type: %s (supported: none, etcd)", c.Lock.Type)
	}

	if c.Queue.Enabled {
		if err := c.QueueConfig().Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AdapterConfig returns the adapter settings for connection string connString,
// or for Database when it is empty
func (c *Config) AdapterConfig(connString string) *backendfactory.AdapterConfig {
	if connString == "" {
		connString = c.Database
	}
	return &backendfactory.AdapterConfig{
		ConnectionString: connString,
		Scripts:          c.VersionScripts.toBackend(),
		EngineScripts: map[string]backends.Scripts{
			mssql.Name:      c.MSSql.toBackend(),
			postgresql.Name: c.PgSql.toBackend(),
			mysql.Name:      c.MySql.toBackend(),
			sqlite.Name:     c.Sqlite.toBackend(),
		},
	}
}

// Scanner returns a script scanner for the configured extensions
func (c *Config) Scanner() *scripts.Scanner {
	scanner := scripts.NewScanner()
	if len(c.Scripts.Extensions) > 0 {
		scanner.Extensions = c.Scripts.Extensions
	}
	scanner.FolderAsModuleName = c.FolderAsModuleName
	return scanner
}

// QueueConfig returns the queue factory settings
func (c *Config) QueueConfig() queuefactory.QueueConfig {
	return queuefactory.QueueConfig{
		Type:               c.Queue.Type,
		KafkaBrokers:       c.Queue.KafkaBrokers,
		KafkaTopic:         c.Queue.KafkaTopic,
		KafkaGroupID:       c.Queue.KafkaGroupID,
		PulsarURL:          c.Queue.PulsarURL,
		PulsarTopic:        c.Queue.PulsarTopic,
		PulsarSubscription: c.Queue.PulsarSubscription,
	}
}

// LockEnabled reports whether runs are serialized through etcd
func (c *Config) LockEnabled() bool {
	return strings.EqualFold(c.Lock.Type, "etcd")
}

// EtcdLockConfig returns the etcd locker settings
func (c *Config) EtcdLockConfig() lockEtcd.Config {
	return lockEtcd.Config{
		Endpoints: c.Lock.Endpoints,
		Username:  c.Lock.Username,
		Password:  c.Lock.Password,
		Prefix:    c.Lock.Prefix,
		TTL:       c.Lock.TTL,
		Timeout:   time.Duration(c.Lock.Timeout) * time.Second,
	}
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
