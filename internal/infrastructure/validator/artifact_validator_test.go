package validator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sitebuilder/internal/domain/apperr"
	"sitebuilder/internal/domain/entity"
)

func TestValidateAcceptsPlainSite(t *testing.T) {
	art := entity.Artifact{Files: []entity.GeneratedFile{
		{Path: "index.html", Content: "<h1>Hi</h1>"},
		{Path: "styles.css", Content: "h1{color:red}"},
	}}
	notes, err := NewArtifactAnalyzer().Validate(context.Background(), art)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("notes = %+v, want none", notes)
	}
}

func TestValidateRejectsUnsafePaths(t *testing.T) {
	for _, p := range []string{"../x.html", "/abs.html", ".git/hooks/post-commit"} {
		t.Run(p, func(t *testing.T) {
			art := entity.Artifact{Files: []entity.GeneratedFile{{Path: "index.html"}, {Path: p, Content: "x"}}}
			_, err := NewArtifactAnalyzer().Validate(context.Background(), art)
			if !errors.Is(err, apperr.ErrUnsafePath) || !apperr.Is(err, apperr.KindMalformedResponse) {
				t.Fatalf("err = %v, want unsafe path", err)
			}
		})
	}
}

func TestValidateNotes(t *testing.T) {
	art := entity.Artifact{Files: []entity.GeneratedFile{
		{Path: "app.js", Content: "const x = 1;\nconst API_KEY = \"sk-1234567890abcdef\";\n"},
		{Path: "config.yml", Content: "a: [1, 2\n"},
		{Path: "app.js", Content: "// again"},
	}}
	notes, err := NewArtifactAnalyzer().Validate(context.Background(), art)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	var msgs []string
	for _, n := range notes {
		msgs = append(msgs, n.File+": "+n.Message)
	}
	joined := strings.Join(msgs, "\n")
	for _, want := range []string{"app.js: potential hardcoded sensitive value in API_KEY", "config.yml: invalid YAML", "app.js: duplicate path", "index.html: artifact has no top-level index.html"} {
		if !strings.Contains(joined, want) {
			t.Errorf("notes missing %q:\n%s", want, joined)
		}
	}
	for _, n := range notes {
		if strings.Contains(n.Message, "API_KEY") && n.Line != 2 {
			t.Errorf("secret note line = %d, want 2", n.Line)
		}
	}
}

func TestValidateWorkflow(t *testing.T) {
	if err := ValidateWorkflow(entity.PagesWorkflow); err != nil {
		t.Fatalf("built-in workflow invalid: %v", err)
	}
	bad := []string{
		"name: x\non: [push\n",
		"on:\n  push:\n    branches: [dev]\njobs: {}\n",
		"on:\n  push:\n    branches: [main]\njobs:\n  build:\n    steps:\n      - uses: actions/checkout@v4\n",
	}
	for _, content := range bad {
		if err := ValidateWorkflow(content); err == nil {
			t.Errorf("ValidateWorkflow(%q) = nil, want error", content)
		}
	}
}
