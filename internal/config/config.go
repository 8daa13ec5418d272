package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
)

const (
	// DefaultConfigFilename is the default deployment manifest name.
	DefaultConfigFilename = "webdeploy.yaml"

	// DefaultEnvFilename is the optional dotenv file consulted for secrets.
	DefaultEnvFilename = ".env"

	// DefaultFetchTimeout bounds a single artifact download attempt.
	DefaultFetchTimeout = 60 * time.Second

	// DefaultFetchRetries is the number of download attempts before giving up.
	DefaultFetchRetries = 3

	// DefaultRestartTimeout bounds the service restart command.
	DefaultRestartTimeout = 30 * time.Second

	// DefaultSettingsTable is the table holding enforced configuration rows.
	DefaultSettingsTable = "settings"

	// DefaultDatabasePort is the MySQL default port.
	DefaultDatabasePort = 3306

	// envDBPassword and envCryptoKey are the environment keys overlaying
	// secrets that must not live in the manifest.
	envDBPassword = "WEBDEPLOY_DB_PASSWORD"
	envCryptoKey  = "WEBDEPLOY_CRYPTO_KEY"
)

var (
	// errReleaseVersionRequired is returned when the release version is missing.
	errReleaseVersionRequired = errors.New("release version must be provided")
	// errArtifactURLRequired is returned when full mode has no artifact URL.
	errArtifactURLRequired = errors.New("artifact URL must be provided in full mode")
	// errReleasesRootRequired is returned when the releases root is missing.
	errReleasesRootRequired = errors.New("releases root must be provided")
	// errLiveRootRequired is returned when the live root path is missing.
	errLiveRootRequired = errors.New("live root must be provided")
	// errFlagFileRequired is returned when the maintenance flag path is missing.
	errFlagFileRequired = errors.New("maintenance flag file must be provided")
	// errCronTabFileRequired is returned when jobs are declared without a tab file.
	errCronTabFileRequired = errors.New("cron tab file must be provided when jobs are declared")
	// errRestartCommandRequired is returned when the restart command is missing.
	errRestartCommandRequired = errors.New("service restart command must be provided")
)

// ReleaseConfig names the target release and its artifact.
type ReleaseConfig struct {
	// Version names the release directory under the releases root.
	Version string `yaml:"version"`
	// ArtifactURL locates the release tarball.
	ArtifactURL string `yaml:"artifact_url"`
	// FetchTimeout bounds a single download attempt.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// FetchRetries is the number of download attempts.
	FetchRetries int `yaml:"fetch_retries"`
}

// PathsConfig holds the fixed filesystem layout.
type PathsConfig struct {
	// ReleasesRoot contains one directory per release.
	ReleasesRoot string `yaml:"releases_root"`
	// LiveRoot is the symlink the web server and cron jobs follow.
	LiveRoot string `yaml:"live_root"`
	// ScratchRoot hosts download workspaces; empty means the OS temp dir.
	ScratchRoot string `yaml:"scratch_root"`
}

// OwnerConfig is the account owning the release tree.
type OwnerConfig struct {
	User  string `yaml:"user"`
	Group string `yaml:"group"`
}

// AppConfig describes the release-scoped configuration file to render.
type AppConfig struct {
	// Template is the path of the template file.
	Template string `yaml:"template"`
	// Output is the rendered file location, relative to the release directory.
	Output string `yaml:"output"`
}

// MaintenanceConfig holds the maintenance-window surface.
type MaintenanceConfig struct {
	// FlagFile is consulted by the application to show the maintenance page.
	FlagFile string `yaml:"flag_file"`
}

// CronConfig declares the managed scheduler state.
type CronConfig struct {
	// TabFile is the cron.d-style file owned entirely by this tool.
	TabFile string `yaml:"tab_file"`
	// Jobs are the managed entries.
	Jobs []deploy.ScheduledJob `yaml:"jobs"`
}

// DatabaseConfig holds connection parameters and rendering inputs.
// Password and CryptoKey are overlaid from the environment when set there.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// CryptoKey and BaseURL are template inputs for the rendered app config.
	CryptoKey string `yaml:"crypto_key"`
	BaseURL   string `yaml:"base_url"`
}

// DSN returns the go-sql-driver connection string.
func (d DatabaseConfig) DSN() string {
	port := d.Port
	if port == 0 {
		port = DefaultDatabasePort
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", d.User, d.Password, d.Host, port, d.Name)
}

// MigrationsConfig declares the external migration commands.
type MigrationsConfig struct {
	// Bootstrap enables the destructive first-time setup command.
	// Deciding when an environment is being bootstrapped is the operator's call.
	Bootstrap bool `yaml:"bootstrap"`
	// SetupCommand is the first-time setup invocation.
	SetupCommand []string `yaml:"setup_command"`
	// UpgradeCommands are ordered, individually re-runnable schema upgrades.
	UpgradeCommands [][]string `yaml:"upgrade_commands"`
	// CacheFlushCommand invalidates application caches after migration.
	CacheFlushCommand []string `yaml:"cache_flush_command"`
	// SettingsTable is the table holding enforced configuration rows.
	SettingsTable string `yaml:"settings_table"`
}

// ServiceConfig declares how the runtime process is restarted.
type ServiceConfig struct {
	// RestartCommand restarts the application runtime.
	RestartCommand []string `yaml:"restart_command"`
	// ProcessName, when set, is verified to be running after restart.
	ProcessName string `yaml:"process_name"`
	// RestartTimeout bounds the restart command.
	RestartTimeout time.Duration `yaml:"restart_timeout"`
}

// Config is the full deployment manifest.
type Config struct {
	LogLevel        string                  `yaml:"log_level"`
	Mode            deploy.Mode             `yaml:"mode"`
	Release         ReleaseConfig           `yaml:"release"`
	Paths           PathsConfig             `yaml:"paths"`
	Owner           OwnerConfig             `yaml:"owner"`
	AppConfig       AppConfig               `yaml:"app_config"`
	Maintenance     MaintenanceConfig       `yaml:"maintenance"`
	Cron            CronConfig              `yaml:"cron"`
	SharedResources []deploy.SharedResource `yaml:"shared_resources"`
	Database        DatabaseConfig          `yaml:"database"`
	Migrations      MigrationsConfig        `yaml:"migrations"`
	Settings        []deploy.SettingEntry   `yaml:"settings"`
	Service         ServiceConfig           `yaml:"service"`
}

// Load reads the manifest from the provided path, overlays secrets from the
// environment (optionally seeded from a .env file next to the manifest) and
// validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	// godotenv.Load never overrides variables already present in the
	// environment, so real env vars win over the dotenv file.
	envFile := filepath.Join(filepath.Dir(path), DefaultEnvFilename)
	if _, statErr := os.Stat(envFile); statErr == nil {
		if err = godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	applyEnvOverlay(&cfg)

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverlay copies secret values from the environment into the config.
func applyEnvOverlay(cfg *Config) {
	if v, ok := os.LookupEnv(envDBPassword); ok {
		cfg.Database.Password = v
	}

	if v, ok := os.LookupEnv(envCryptoKey); ok {
		cfg.Database.CryptoKey = v
	}
}

// Validate checks the manifest for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg.Mode == "" {
		cfg.Mode = deploy.ModeFull
	}

	if !cfg.Mode.Valid() {
		return fmt.Errorf("invalid mode %q", cfg.Mode)
	}

	if cfg.Release.Version == "" {
		return errReleaseVersionRequired
	}

	if cfg.Mode == deploy.ModeFull {
		if cfg.Release.ArtifactURL == "" {
			return errArtifactURLRequired
		}

		if _, err := url.ParseRequestURI(cfg.Release.ArtifactURL); err != nil {
			return fmt.Errorf("invalid artifact URL: %w", err)
		}
	}

	if cfg.Paths.ReleasesRoot == "" {
		return errReleasesRootRequired
	}

	if cfg.Paths.LiveRoot == "" {
		return errLiveRootRequired
	}

	if cfg.Maintenance.FlagFile == "" {
		return errFlagFileRequired
	}

	if len(cfg.Cron.Jobs) > 0 && cfg.Cron.TabFile == "" {
		return errCronTabFileRequired
	}

	for i := range cfg.Cron.Jobs {
		job := &cfg.Cron.Jobs[i]
		if job.Name == "" || job.Schedule == "" || job.Command == "" {
			return fmt.Errorf("cron job %d: name, schedule and command are required", i)
		}
	}

	if err := validateSharedResources(cfg.SharedResources); err != nil {
		return err
	}

	if len(cfg.Service.RestartCommand) == 0 {
		return errRestartCommandRequired
	}

	applyDefaults(cfg)

	return nil
}

// validateSharedResources checks declaration types and permission strings.
func validateSharedResources(resources []deploy.SharedResource) error {
	for i, res := range resources {
		if res.Src == "" || res.Dest == "" {
			return fmt.Errorf("shared resource %d: src and dest are required", i)
		}

		if res.Type != deploy.ResourceDirectory && res.Type != deploy.ResourceFile {
			return fmt.Errorf("shared resource %d: invalid type %q", i, res.Type)
		}

		if res.Mode != "" {
			if _, err := strconv.ParseUint(res.Mode, 8, 32); err != nil {
				return fmt.Errorf("shared resource %d: invalid mode %q: %w", i, res.Mode, err)
			}
		}
	}

	return nil
}

// applyDefaults fills zero values with production defaults.
func applyDefaults(cfg *Config) {
	if cfg.Release.FetchTimeout <= 0 {
		cfg.Release.FetchTimeout = DefaultFetchTimeout
	}

	if cfg.Release.FetchRetries <= 0 {
		cfg.Release.FetchRetries = DefaultFetchRetries
	}

	if cfg.Service.RestartTimeout <= 0 {
		cfg.Service.RestartTimeout = DefaultRestartTimeout
	}

	if cfg.Migrations.SettingsTable == "" {
		cfg.Migrations.SettingsTable = DefaultSettingsTable
	}
}
