// Package file provides file-based persistence: one JSON document per
// aggregate under root/{workflows,workspaces,runs,schedules}/<id>.json.
// Suited to local development and tests; a single process owns the root.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dukex/operand/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the
// file system.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	workspaceRepo *WorkspaceRepository
	runRepo       *RunRepository
	scheduleRepo  *ScheduleRepository
}

// NewPersistence creates a new instance of Persistence with the specified
// root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		workspaceRepo: NewWorkspaceRepository(cleanRoot),
		runRepo:       NewRunRepository(cleanRoot),
		scheduleRepo:  NewScheduleRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) WorkspaceRepository() persistence.WorkspaceRepository {
	return fp.workspaceRepo
}

func (fp *Persistence) RunRepository() persistence.RunRepository {
	return fp.runRepo
}

func (fp *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return fp.scheduleRepo
}

// readDocument loads root/<kind>/<id>.json into out. Missing files surface
// as notFound.
func readDocument(root, kind, id string, out any, notFound error) error {
	filePath := filepath.Clean(path.Join(root, kind, id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return notFound
		}

		return fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", kind, id, err)
	}

	return nil
}

// writeDocument stores a document at root/<kind>/<id>.json, creating the
// directory on first use. The bytes land in a temp file in the same
// directory first and are renamed over the target, so a crash mid-write
// never leaves a truncated document behind.
func writeDocument(root, kind, id string, doc any) error {
	dir := path.Join(root, kind)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", kind, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", kind, id, err)
	}

	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s %s: %w", kind, id, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to close temp file for %s %s: %w", kind, id, err)
	}

	if err := os.Rename(tmp.Name(), path.Join(dir, id+".json")); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace %s %s: %w", kind, id, err)
	}

	return nil
}

// deleteDocument removes root/<kind>/<id>.json; missing files are not an
// error.
func deleteDocument(root, kind, id string) error {
	err := os.Remove(path.Join(root, kind, id+".json"))
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}

	return nil
}

// listDocumentIDs returns the IDs of every document of a kind. A missing
// kind directory means no documents yet.
func listDocumentIDs(root, kind string) ([]string, error) {
	dir := path.Join(root, kind)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", kind, err)
	}

	ids := make([]string, 0, len(jsonFiles))
	for _, file := range jsonFiles {
		ids = append(ids, strings.TrimSuffix(file, ".json"))
	}

	return ids, nil
}
