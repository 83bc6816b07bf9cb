// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Target names the binary a configuration is validated for.
type Target string

const (
	TargetServer        Target = "server"
	TargetWorkerManager Target = "worker-manager"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"

	ProviderChat   = "chat"
	ProviderGemini = "gemini"
	ProviderNone   = "none"

	SubmissionLocal   = "local"
	SubmissionHTTP    = "http"
	SubmissionProcess = "process"
)

// Load reads configs/config.yaml, merges the config.<APP_ENVIRONMENT>
// overlay, expands ${VAR} placeholders and validates the result for target.
func Load(target Target) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // overlay is optional

	return finish(v, target)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string, target Target) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v, target)
}

func finish(v *viper.Viper, target Target) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg, target); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are conventionally provided as
// bare environment variables.
func overrideEmptyConfig(cfg *Config) {
	if cfg.AI.APIKey == "" {
		for _, name := range []string{"AI_API_KEY", "OPENAI_API_KEY", "GENAI_API_KEY"} {
			if val := os.Getenv(name); val != "" {
				cfg.AI.APIKey = val
				break
			}
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "social-support-wizard"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.SessionCookie == "" {
		cfg.Server.SessionCookie = "wizard_session"
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = 30 * 24 * 3600
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "support-applications"
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageMemory
	}
	if cfg.Storage.Key == "" {
		cfg.Storage.Key = "formData"
	}

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = ProviderChat
	}
	if cfg.AI.BaseURL == "" && cfg.AI.Provider == ProviderChat {
		cfg.AI.BaseURL = "https://api.z.ai/api/paas/v4"
	}
	if cfg.AI.Model == "" {
		switch cfg.AI.Provider {
		case ProviderGemini:
			cfg.AI.Model = "gemini-2.5-flash"
		default:
			cfg.AI.Model = "glm-4.6"
		}
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 10000
	}
	if cfg.AI.ProxyPath == "" {
		cfg.AI.ProxyPath = "/api/openai"
	}

	if cfg.Submission.Mode == "" {
		cfg.Submission.Mode = SubmissionLocal
	}
	if cfg.Submission.ProcessID == "" {
		cfg.Submission.ProcessID = "social-support-application"
	}
	if cfg.Submission.Timeout == 0 {
		cfg.Submission.Timeout = 15000
	}

	if cfg.I18n.Default == "" {
		cfg.I18n.Default = "en"
	}
	if len(cfg.I18n.Supported) == 0 {
		cfg.I18n.Supported = []string{"en", "ar"}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "configs/activity-registry.json"
	}
}

// validateConfig validates the fields the given binary cannot run without.
func validateConfig(cfg *Config, target Target) error {
	switch cfg.Storage.Backend {
	case StorageMemory:
	case StorageRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for storage.backend=redis")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", cfg.Storage.Backend)
	}

	switch cfg.AI.Provider {
	case ProviderChat, ProviderGemini, ProviderNone:
	default:
		return fmt.Errorf("ai.provider %q is not supported", cfg.AI.Provider)
	}

	switch cfg.Submission.Mode {
	case SubmissionLocal:
	case SubmissionHTTP:
		if cfg.Submission.Endpoint == "" {
			return fmt.Errorf("submission.endpoint is required for submission.mode=http")
		}
	case SubmissionProcess:
		if cfg.Camunda.BrokerAddress == "" {
			return fmt.Errorf("camunda.broker_address is required for submission.mode=process")
		}
	default:
		return fmt.Errorf("submission.mode %q is not supported", cfg.Submission.Mode)
	}

	if target != TargetWorkerManager {
		return nil
	}

	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if cfg.Database.Elasticsearch.GetURL() == "" {
		return fmt.Errorf("database.elasticsearch.addresses or url is required")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
