package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sitebuilder/internal/domain/apperr"
	"sitebuilder/internal/domain/entity"
	"sitebuilder/internal/infrastructure/metrics"
)

// Workspace owns the task-keyed working directories under a root.
type Workspace struct {
	basePath string
}

func (w *Workspace) GetBasePath() string {
	return w.basePath
}

func NewWorkspace(basePath string) (*Workspace, error) {
	info, err := os.Stat(basePath)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(basePath, 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", basePath, mkErr)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to check directory %s: %w", basePath, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("path %s exists but is not a directory", basePath)
	}

	return &Workspace{basePath: basePath}, nil
}

// Dir is the working directory of a task. The name must already be
// validated as a single path segment.
func (w *Workspace) Dir(task string) string {
	return filepath.Join(w.basePath, task)
}

// WriteFiles writes each generated file under dir, creating parent
// directories. Files written before a failure are left in place.
func (w *Workspace) WriteFiles(ctx context.Context, dir string, files []entity.GeneratedFile) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		filePath, err := SafeJoin(dir, file.Path)
		if err != nil {
			return err
		}
		if err := writeFile(filePath, file.Content); err != nil {
			metrics.IncError("workspace", "write_file")
			return fmt.Errorf("failed to write file %s: %w", file.Path, err)
		}
	}
	return nil
}

// WriteDeployDescriptor writes the Pages workflow, replacing whatever the
// generated files put there.
func (w *Workspace) WriteDeployDescriptor(dir string) error {
	path := filepath.Join(dir, filepath.FromSlash(entity.PagesWorkflowPath))
	if err := writeFile(path, entity.PagesWorkflow); err != nil {
		metrics.IncError("workspace", "write_workflow")
		return fmt.Errorf("failed to write pages workflow: %w", err)
	}
	return nil
}

// WriteLicenseAndReadme writes LICENSE and README.md for the repository.
func (w *Workspace) WriteLicenseAndReadme(dir, title, summary string) error {
	license := fmt.Sprintf(entity.MITLicense, time.Now().Year())
	if err := writeFile(filepath.Join(dir, "LICENSE"), license); err != nil {
		return fmt.Errorf("failed to write LICENSE: %w", err)
	}
	if err := writeFile(filepath.Join(dir, "README.md"), entity.Readme(title, summary)); err != nil {
		return fmt.Errorf("failed to write README.md: %w", err)
	}
	return nil
}

// SafeJoin resolves rel under dir and rejects anything that would land
// outside it or inside the repository metadata.
func SafeJoin(dir, rel string) (string, error) {
	clean := filepath.FromSlash(rel)
	if !filepath.IsLocal(clean) {
		return "", apperr.Wrap(apperr.KindMalformedResponse, "workspace", fmt.Errorf("%q: %w", rel, apperr.ErrUnsafePath))
	}
	first := strings.SplitN(filepath.ToSlash(filepath.Clean(clean)), "/", 2)[0]
	// Case-insensitive filesystems resolve ".GIT" to the same directory.
	if strings.EqualFold(first, ".git") {
		return "", apperr.Wrap(apperr.KindMalformedResponse, "workspace", fmt.Errorf("%q: %w", rel, apperr.ErrUnsafePath))
	}
	return filepath.Join(dir, clean), nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
