package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
)

// minimalManifest is a valid full-mode manifest for tests.
const minimalManifest = `
release:
  version: "1.2"
  artifact_url: https://example/app-1.2.tar.gz
paths:
  releases_root: /srv/webapp/releases
  live_root: /srv/webapp/current
maintenance:
  flag_file: /srv/webapp/shared/.maintenance
service:
  restart_command: ["systemctl", "restart", "php-fpm"]
`

func writeManifest(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

// TestLoad_Defaults verifies defaults are applied to a minimal manifest.
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeManifest(t, minimalManifest))
	require.NoError(t, err)

	require.Equal(t, deploy.ModeFull, cfg.Mode)
	require.Equal(t, DefaultFetchTimeout, cfg.Release.FetchTimeout)
	require.Equal(t, DefaultFetchRetries, cfg.Release.FetchRetries)
	require.Equal(t, DefaultRestartTimeout, cfg.Service.RestartTimeout)
	require.Equal(t, DefaultSettingsTable, cfg.Migrations.SettingsTable)
}

// TestLoad_EnvOverlay verifies secrets from the environment win over the manifest.
func TestLoad_EnvOverlay(t *testing.T) {
	t.Setenv(envDBPassword, "s3cret")
	t.Setenv(envCryptoKey, "k3y")

	manifest := minimalManifest + `
database:
  host: db.local
  user: webapp
  password: from-manifest
  name: webapp
`
	cfg, err := Load(writeManifest(t, manifest))
	require.NoError(t, err)
	require.Equal(t, "s3cret", cfg.Database.Password)
	require.Equal(t, "k3y", cfg.Database.CryptoKey)
}

// TestLoad_DotenvFile verifies a .env file next to the manifest seeds secrets.
func TestLoad_DotenvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte(minimalManifest), 0o600))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, DefaultEnvFilename),
		[]byte(envDBPassword+"=dotenv-secret\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "dotenv-secret", cfg.Database.Password)
}

// TestValidate_Rejections verifies broken manifests are rejected with a reason.
func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"missing version":    func(c *Config) { c.Release.Version = "" },
		"missing URL":        func(c *Config) { c.Release.ArtifactURL = "" },
		"bad URL":            func(c *Config) { c.Release.ArtifactURL = "not a url" },
		"missing roots":      func(c *Config) { c.Paths.ReleasesRoot = "" },
		"missing live root":  func(c *Config) { c.Paths.LiveRoot = "" },
		"missing flag":       func(c *Config) { c.Maintenance.FlagFile = "" },
		"bad mode":           func(c *Config) { c.Mode = deploy.Mode("partial") },
		"missing restart":    func(c *Config) { c.Service.RestartCommand = nil },
		"jobs without tab":   func(c *Config) { c.Cron.Jobs = []deploy.ScheduledJob{{Name: "a", Schedule: "* * * * *", Command: "x"}} },
		"job without name":   func(c *Config) { c.Cron.TabFile = "/etc/cron.d/app"; c.Cron.Jobs = []deploy.ScheduledJob{{Schedule: "* * * * *", Command: "x"}} },
		"bad resource type":  func(c *Config) { c.SharedResources = []deploy.SharedResource{{Src: "/a", Dest: "b", Type: "link"}} },
		"bad resource mode":  func(c *Config) { c.SharedResources = []deploy.SharedResource{{Src: "/a", Dest: "b", Type: deploy.ResourceDirectory, Mode: "rwx"}} },
		"resource wo source": func(c *Config) { c.SharedResources = []deploy.SharedResource{{Dest: "b", Type: deploy.ResourceFile}} },
	}

	for name, mutate := range cases {
		mutate := mutate

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			mutate(cfg)
			require.Error(t, Validate(cfg))
		})
	}
}

// TestValidate_ConfigOnlyNeedsNoArtifact verifies config-only mode skips URL checks.
func TestValidate_ConfigOnlyNeedsNoArtifact(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Mode = deploy.ModeConfigOnly
	cfg.Release.ArtifactURL = ""
	require.NoError(t, Validate(cfg))
}

// TestDatabaseConfig_DSN verifies DSN composition and the default port.
func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	db := DatabaseConfig{Host: "db.local", User: "webapp", Password: "pw", Name: "webapp"}
	require.Equal(t, "webapp:pw@tcp(db.local:3306)/webapp", db.DSN())

	db.Port = 3307
	require.Equal(t, "webapp:pw@tcp(db.local:3307)/webapp", db.DSN())
}

func validConfig() *Config {
	return &Config{
		Release: ReleaseConfig{
			Version:     "1.2",
			ArtifactURL: "https://example/app-1.2.tar.gz",
		},
		Paths: PathsConfig{
			ReleasesRoot: "/srv/webapp/releases",
			LiveRoot:     "/srv/webapp/current",
		},
		Maintenance: MaintenanceConfig{FlagFile: "/srv/webapp/shared/.maintenance"},
		Service: ServiceConfig{
			RestartCommand: []string{"systemctl", "restart", "php-fpm"},
			RestartTimeout: time.Second,
		},
	}
}
