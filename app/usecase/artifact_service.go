package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"sitebuilder/internal/domain/entity"
	"sitebuilder/internal/domain/repository"
	"sitebuilder/internal/infrastructure/metrics"
	"sitebuilder/internal/infrastructure/validator"
)

// Workspace is the local storage of task working directories.
type Workspace interface {
	Dir(task string) string
	WriteFiles(ctx context.Context, dir string, files []entity.GeneratedFile) error
	WriteDeployDescriptor(dir string) error
	WriteLicenseAndReadme(dir, title, summary string) error
}

type ArtifactService struct {
	llm       repository.LLMGenerator
	validator repository.ArtifactValidator
	workspace Workspace
	logger    *slog.Logger
}

func NewArtifactService(llm repository.LLMGenerator, v repository.ArtifactValidator, ws Workspace, logger *slog.Logger) *ArtifactService {
	return &ArtifactService{llm: llm, validator: v, workspace: ws, logger: logger}
}

// Materialize generates the site for brief and writes it into dir
// together with the Pages deploy workflow.
func (s *ArtifactService) Materialize(ctx context.Context, dir, brief string) error {
	artifact, err := s.llm.Generate(ctx, brief, entity.StaticSitePrompt)
	if err != nil {
		return fmt.Errorf("llm generate: %w", err)
	}

	notes, err := s.validator.Validate(ctx, artifact)
	if err != nil {
		return fmt.Errorf("validate artifact: %w", err)
	}
	for _, n := range notes {
		s.logger.Warn("artifact note", "file", n.File, "line", n.Line, "note", n.Message)
	}

	if err := s.workspace.WriteFiles(ctx, dir, artifact.Files); err != nil {
		return fmt.Errorf("write files: %w", err)
	}
	if err := s.workspace.WriteDeployDescriptor(dir); err != nil {
		return err
	}

	written, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(entity.PagesWorkflowPath)))
	if err != nil {
		return fmt.Errorf("read back pages workflow: %w", err)
	}
	if err := validator.ValidateWorkflow(string(written)); err != nil {
		metrics.IncError("artifact", "workflow_invalid")
		return fmt.Errorf("pages workflow: %w", err)
	}

	s.logger.Info("artifact written", "dir", dir, "files", len(artifact.Files), "model", artifact.Model)
	return nil
}
