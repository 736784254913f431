package validator

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"sitebuilder/internal/domain/entity"
	"sitebuilder/internal/domain/repository"
	"sitebuilder/internal/infrastructure/metrics"
	"sitebuilder/internal/infrastructure/store/filesystem"
)

var SensitiveKeywords = []string{"password", "secret", "api_key", "apikey", "access_key", "token"}

// assignment of a quoted literal to a sensitive-looking name, e.g.
// const API_KEY = "sk-..."
var sensitiveAssign = regexp.MustCompile(`(?i)([a-z_]*(?:` + strings.Join(SensitiveKeywords, "|") + `)[a-z_]*)\s*[:=]\s*["'][^"']{8,}["']`)

// ArtifactAnalyzer rejects artifacts that cannot be written safely and
// reports softer findings as notes.
type ArtifactAnalyzer struct{}

var _ repository.ArtifactValidator = (*ArtifactAnalyzer)(nil)

func NewArtifactAnalyzer() *ArtifactAnalyzer {
	return &ArtifactAnalyzer{}
}

func (a *ArtifactAnalyzer) Validate(_ context.Context, artifact entity.Artifact) ([]entity.ValidationNote, error) {
	var notes []entity.ValidationNote
	seen := make(map[string]bool, len(artifact.Files))
	hasIndex := false

	for _, file := range artifact.Files {
		if _, err := filesystem.SafeJoin(".", file.Path); err != nil {
			metrics.IncError("validator", "unsafe_path")
			return nil, err
		}

		p := path.Clean(strings.ReplaceAll(file.Path, "\\", "/"))
		if seen[p] {
			notes = append(notes, entity.ValidationNote{File: file.Path, Message: "duplicate path, last entry wins"})
		}
		seen[p] = true
		switch p {
		case "index.html":
			hasIndex = true
		case entity.PagesWorkflowPath:
			notes = append(notes, entity.ValidationNote{File: file.Path, Message: "replaced by the Pages deploy workflow"})
		}

		switch strings.ToLower(path.Ext(p)) {
		case ".yml", ".yaml":
			notes = append(notes, a.analyzeYAML(file)...)
		}
		notes = append(notes, a.analyzeSecrets(file)...)
	}

	if !hasIndex {
		notes = append(notes, entity.ValidationNote{File: "index.html", Message: "artifact has no top-level index.html"})
	}
	return notes, nil
}

func (a *ArtifactAnalyzer) analyzeYAML(file entity.GeneratedFile) []entity.ValidationNote {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(file.Content), &doc); err != nil {
		return []entity.ValidationNote{{File: file.Path, Message: fmt.Sprintf("invalid YAML: %v", err)}}
	}
	return nil
}

func (a *ArtifactAnalyzer) analyzeSecrets(file entity.GeneratedFile) []entity.ValidationNote {
	var notes []entity.ValidationNote
	for i, line := range strings.Split(file.Content, "\n") {
		if m := sensitiveAssign.FindStringSubmatch(line); m != nil {
			notes = append(notes, entity.ValidationNote{
				File:    file.Path,
				Line:    i + 1,
				Message: fmt.Sprintf("potential hardcoded sensitive value in %s", m[1]),
			})
		}
	}
	return notes
}

// ValidateWorkflow checks that the Pages workflow parses and triggers on
// pushes to main.
func ValidateWorkflow(content string) error {
	var wf struct {
		On struct {
			Push struct {
				Branches []string `yaml:"branches"`
			} `yaml:"push"`
		} `yaml:"on"`
		Jobs map[string]struct {
			Steps []struct {
				Uses string `yaml:"uses"`
			} `yaml:"steps"`
		} `yaml:"jobs"`
	}
	if err := yaml.Unmarshal([]byte(content), &wf); err != nil {
		return fmt.Errorf("parse workflow: %w", err)
	}
	onMain := false
	for _, b := range wf.On.Push.Branches {
		if b == "main" {
			onMain = true
		}
	}
	if !onMain {
		return fmt.Errorf("workflow does not run on push to main")
	}
	var uses []string
	for _, job := range wf.Jobs {
		for _, step := range job.Steps {
			uses = append(uses, step.Uses)
		}
	}
	for _, want := range []string{"actions/checkout", "actions/upload-pages-artifact", "actions/deploy-pages"} {
		found := false
		for _, u := range uses {
			if strings.HasPrefix(u, want+"@") {
				found = true
			}
		}
		if !found {
			return fmt.Errorf("workflow missing step %s", want)
		}
	}
	return nil
}
