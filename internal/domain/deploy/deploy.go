package deploy

import "path/filepath"

// Mode selects how much of the pipeline a run performs.
type Mode string

const (
	// ModeFull fetches and prepares the release before cutover.
	ModeFull Mode = "full"
	// ModeConfigOnly skips fetch and prepare entirely; cutover, shared-resource
	// reconciliation and migrations still run against the existing release.
	ModeConfigOnly Mode = "config-only"
)

// Valid reports whether the mode is one of the known values.
func (m Mode) Valid() bool {
	return m == ModeFull || m == ModeConfigOnly
}

// Release is one immutable, versioned deployment of the application tree.
// It is identified by its directory under the releases root and is never
// mutated after cutover.
type Release struct {
	// Version names the release, e.g. "1.2".
	Version string
	// Path is the release directory, releasesRoot/<version>.
	Path string
}

// PreparedMarkerName is written into a release directory as the final act of
// preparation. A release directory without it is not a valid cutover target.
const PreparedMarkerName = ".webdeploy-prepared"

// NewRelease builds a Release rooted under releasesRoot.
func NewRelease(releasesRoot, version string) Release {
	return Release{
		Version: version,
		Path:    filepath.Join(releasesRoot, version),
	}
}

// MarkerPath returns the path of the prepared marker inside the release tree.
func (r Release) MarkerPath() string {
	return filepath.Join(r.Path, PreparedMarkerName)
}

// ResourceType distinguishes shared-resource kinds.
type ResourceType string

const (
	// ResourceDirectory is a persistent directory (uploads, logs, sessions).
	ResourceDirectory ResourceType = "directory"
	// ResourceFile is a persistent single file (e.g. a sqlite session store).
	ResourceFile ResourceType = "file"
)

// SharedResource declares persistent state living outside the release tree
// that must be relinked into every new release.
//
// Invariant: Dest is always either absent or a symlink to Src; it is never a
// real file or directory shadowing Src.
type SharedResource struct {
	// Src is the absolute path on stable storage.
	Src string `yaml:"src"`
	// Dest is the link location, relative to the release directory.
	Dest string `yaml:"dest"`
	// Type is the resource kind, directory or file.
	Type ResourceType `yaml:"type"`
	// Owner and Group are applied to Src when it has to be created.
	Owner string `yaml:"owner"`
	Group string `yaml:"group"`
	// Mode is the octal permission string applied to Src, e.g. "0770".
	Mode string `yaml:"mode"`
}

// ScheduledJob declares one cron entry owned by the external scheduler but
// suspended and resumed by the maintenance controller.
type ScheduledJob struct {
	// Name identifies the job inside the managed crontab file.
	Name string `yaml:"name"`
	// Schedule is a five-field cron expression.
	Schedule string `yaml:"schedule"`
	// User is the account the scheduler runs the command as.
	User string `yaml:"user"`
	// Command is the shell command line.
	Command string `yaml:"command"`
}

// SettingEntry is one enforced configuration row, upserted by
// (path, scope, scope_id) on every deployment. Enforcement is a forced
// overwrite: manual changes to an enforced key are discarded each run.
type SettingEntry struct {
	Path    string `yaml:"path"`
	Scope   string `yaml:"scope"`
	ScopeID int    `yaml:"scope_id"`
	Value   string `yaml:"value"`
}

// Actor records who ran a deployment, for the journal.
type Actor struct {
	Hostname string `json:"hostname"`
	Username string `json:"username"`
}
