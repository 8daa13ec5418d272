package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oshokin/webdeploy/internal/domain/deploy"
)

// DefaultFilename is the journal file kept under the releases root.
const DefaultFilename = "deploy-journal.json"

// filePermissions restricts the journal to the deploying user.
const filePermissions = 0o600

// maxRecords bounds the journal; older runs are dropped from the front.
const maxRecords = 50

// ErrNotFound is returned when the journal file does not exist yet.
var ErrNotFound = errors.New("journal not found")

// StepResult records the outcome of one pipeline step.
type StepResult struct {
	// Name is the pipeline step name, e.g. "cutover".
	Name string `json:"name"`
	// Status is "ok", "skipped" or "failed".
	Status string `json:"status"`
	// Error holds the failure message for failed steps.
	Error string `json:"error,omitempty"`
}

// Record is one deployment run.
type Record struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`
	// Release is the target release version.
	Release string `json:"release"`
	// Mode is the run mode, full or config-only.
	Mode string `json:"mode"`
	// Actor is who ran the deployment.
	Actor deploy.Actor `json:"actor"`
	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Success reports whether every step completed.
	Success bool `json:"success"`
	// Steps are the per-step outcomes in execution order.
	Steps []StepResult `json:"steps"`
}

// Repository defines persistence operations for the deployment journal.
type Repository interface {
	Load(ctx context.Context) ([]Record, error)
	Append(ctx context.Context, record Record) error
}

// FileRepository persists the journal to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the journal file.
	path string
	// mu protects concurrent access to the journal file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads all journal records from disk.
func (r *FileRepository) Load(_ context.Context) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load()
}

// Append adds a record to the journal, creating the file when absent and
// trimming the oldest entries beyond the retention bound.
func (r *FileRepository) Append(_ context.Context, record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.load()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	records = append(records, record)
	if len(records) > maxRecords {
		records = records[len(records)-maxRecords:]
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}

	if err = os.WriteFile(r.path, data, filePermissions); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}

	return nil
}

// load reads and decodes the journal file. Callers must hold the mutex.
func (r *FileRepository) load() ([]Record, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read journal: %w", err)
	}

	var records []Record
	if err = json.Unmarshal(contents, &records); err != nil {
		return nil, fmt.Errorf("decode journal: %w", err)
	}

	return records, nil
}
