package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/toolsascode/sqldatabase/internal/errs"
)

var envVars = []string{
	"SQLDATABASE_CONFIG",
	"SQLDATABASE_DATABASE",
	"SQLDATABASE_SOURCES",
	"SQLDATABASE_TRANSACTION",
	"SQLDATABASE_LOG_LEVEL",
	"SQLDATABASE_LOG_FORMAT",
	"SQLDATABASE_HTTP_PORT",
	"SQLDATABASE_API_TOKEN",
	"SQLDATABASE_QUEUE_ENABLED",
	"SQLDATABASE_QUEUE_TYPE",
	"SQLDATABASE_QUEUE_KAFKA_BROKERS",
	"SQLDATABASE_QUEUE_KAFKA_TOPIC",
	"SQLDATABASE_QUEUE_KAFKA_GROUP_ID",
	"SQLDATABASE_QUEUE_PULSAR_URL",
	"SQLDATABASE_QUEUE_PULSAR_TOPIC",
	"SQLDATABASE_QUEUE_PULSAR_SUBSCRIPTION",
	"SQLDATABASE_LOCK_TYPE",
	"SQLDATABASE_LOCK_ETCD_ENDPOINTS",
	"SQLDATABASE_LOCK_ETCD_USERNAME",
	"SQLDATABASE_LOCK_ETCD_PASSWORD",
	"SQLDATABASE_LOCK_ETCD_PREFIX",
	"SQLDATABASE_LOCK_TTL",
	"SQLDATABASE_LOCK_TIMEOUT",
}

// clearEnv unsets every SQLDATABASE_* variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqldatabase.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write configuration: %v", err)
	}
	return path
}

func TestGetEnvOrDefault(t *testing.T) {
	key := "SQLDATABASE_TEST_ENV_VAR"

	tests := []struct {
		name         string
		envValue     string
		defaultValue string
		want         string
	}{
		{name: "env var set", envValue: "env-value", defaultValue: "default-value", want: "env-value"},
		{name: "env var not set", envValue: "", defaultValue: "default-value", want: "default-value"},
		{name: "empty default", envValue: "", defaultValue: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(key, tt.envValue)
			if got := getEnvOrDefault(key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnvOrDefault() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Transaction != "none" || config.Server.HTTPPort != "7070" || config.Queue.Enabled || config.LockEnabled() {
		t.Errorf("unexpected defaults %+v", config)
	}
	if exts := config.Scanner().Extensions; len(exts) != 1 || exts[0] != ".sql" {
		t.Errorf("default extensions = %v", exts)
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
database: file:orders.db
sources: [./scripts]
transaction: perStep
folderAsModuleName: true
getCurrentVersion: SELECT v FROM versions WHERE m = '{{ModuleName}}'
setCurrentVersion: UPDATE versions SET v = '{{TargetVersion}}' WHERE m = '{{ModuleName}}'
pgsql:
  getCurrentVersion: SELECT v FROM public.versions WHERE m = '{{ModuleName}}'
variables:
  Schema: sales
scripts:
  extensions: [.sql, .psql]
log:
  level: debug
  format: json
server:
  httpPort: "8080"
  apiToken: secret
lock:
  type: etcd
  endpoints: [localhost:2379]
  ttl: 30
  timeout: 3
`)

	config, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Database != "file:orders.db" || len(config.Sources) != 1 || config.Transaction != "perStep" {
		t.Errorf("unexpected run settings %+v", config)
	}
	if config.Variables["Schema"] != "sales" || config.Log.Format != "json" || config.Server.APIToken != "secret" {
		t.Errorf("unexpected settings %+v", config)
	}

	scanner := config.Scanner()
	if !scanner.FolderAsModuleName || len(scanner.Extensions) != 2 {
		t.Errorf("Scanner() = %+v", scanner)
	}

	adapterConfig := config.AdapterConfig("")
	if adapterConfig.ConnectionString != "file:orders.db" {
		t.Errorf("ConnectionString = %q", adapterConfig.ConnectionString)
	}
	if adapterConfig.Scripts.SetCurrentVersion == "" || adapterConfig.EngineScripts["postgresql"].GetCurrentVersion == "" {
		t.Errorf("version scripts not loaded: %+v", adapterConfig)
	}
	if config.AdapterConfig("other.db").ConnectionString != "other.db" {
		t.Error("an explicit connection string must win")
	}

	if !config.LockEnabled() {
		t.Fatal("expected the etcd lock")
	}
	lock := config.EtcdLockConfig()
	if lock.TTL != 30 || lock.Timeout != 3*time.Second || lock.Endpoints[0] != "localhost:2379" {
		t.Errorf("EtcdLockConfig() = %+v", lock)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
database: file:orders.db
server:
  apiToken: from-file
`)
	t.Setenv("SQLDATABASE_CONFIG", path)
	t.Setenv("SQLDATABASE_DATABASE", "file:billing.db")
	t.Setenv("SQLDATABASE_SOURCES", "a, b ,")
	t.Setenv("SQLDATABASE_API_TOKEN", "from-env")
	t.Setenv("SQLDATABASE_QUEUE_ENABLED", "true")
	t.Setenv("SQLDATABASE_QUEUE_TYPE", "pulsar")
	t.Setenv("SQLDATABASE_QUEUE_PULSAR_TOPIC", "upgrades")
	t.Setenv("SQLDATABASE_LOCK_TTL", "15")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Database != "file:billing.db" || config.Server.APIToken != "from-env" {
		t.Errorf("environment must override the file: %+v", config)
	}
	if len(config.Sources) != 2 || config.Sources[1] != "b" {
		t.Errorf("Sources = %v", config.Sources)
	}
	q := config.QueueConfig()
	if !config.Queue.Enabled || q.Type != "pulsar" || q.PulsarTopic != "upgrades" {
		t.Errorf("QueueConfig() = %+v", q)
	}
	if config.Lock.TTL != 15 {
		t.Errorf("Lock.TTL = %d", config.Lock.TTL)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantKind error
	}{
		{name: "invalid yaml", content: "database: [unclosed"},
		{name: "invalid variable names", content: "variables:\n  1bad: x\n  'with space': y\n", wantKind: errs.ErrConfiguration},
		{name: "invalid transaction", content: "transaction: nested\n"},
		{name: "unsupported lock", content: "lock:\n  type: zookeeper\n"},
		{name: "etcd without endpoints", content: "lock:\n  type: etcd\n"},
		{name: "queue without topic", content: "queue:\n  enabled: true\n  type: kafka\n  kafkaTopic: ''\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)

			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantKind != nil && !errors.Is(err, tt.wantKind) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantKind)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing configuration file")
	}
}
