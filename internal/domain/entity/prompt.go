package entity

import "fmt"

type Prompt struct {
	ID   string
	Text string
}

const staticSiteSystemPrompt = "You generate minimal, production-ready static web apps.\n" +
	"Return a single JSON object EXACTLY like: " +
	`{"files":[{"path":"index.html","content":"..."}]}` + "\n" +
	"Only return JSON, no markdown, no explanations.\n" +
	"Keep JavaScript inline in index.html unless the brief clearly needs extra files.\n" +
	"Prefer no external CDNs unless requested."

const staticSiteUserTemplate = "Brief: %s\n" +
	"Output requirements:\n" +
	"- Must include an index.html that completes the brief.\n" +
	"- You may add extra files (e.g., styles.css) if helpful.\n" +
	"- The JSON you return must be parseable by a strict JSON parser."

var StaticSitePrompt = Prompt{
	ID:   "static-site",
	Text: staticSiteSystemPrompt,
}

// UserPrompt embeds the brief verbatim.
func UserPrompt(brief string) string {
	return fmt.Sprintf(staticSiteUserTemplate, brief)
}

// PagesWorkflowPath is where the deploy descriptor is written, relative to
// the working directory.
const PagesWorkflowPath = ".github/workflows/pages.yml"

// PagesWorkflow deploys the repository root to GitHub Pages on every push
// to main.
const PagesWorkflow = `name: Deploy to GitHub Pages
on:
  push:
    branches: ["main"]
permissions:
  contents: read
  pages: write
  id-token: write
concurrency:
  group: "pages"
  cancel-in-progress: true
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - name: Checkout
        uses: actions/checkout@v4
      - name: Upload artifact
        uses: actions/upload-pages-artifact@v3
        with:
          path: .
  deploy:
    needs: build
    runs-on: ubuntu-latest
    permissions:
      pages: write
      id-token: write
    environment:
      name: github-pages
      url: ${{ steps.deployment.outputs.page_url }}
    steps:
      - name: Deploy to GitHub Pages
        id: deployment
        uses: actions/deploy-pages@v4
`

const MITLicense = "MIT License\n\nCopyright (c) %d\n\nPermission is hereby granted, free of charge, " +
	"to any person obtaining a copy of this software and associated documentation files " +
	"(the 'Software'), to deal in the Software without restriction, including without " +
	"limitation the rights to use, copy, modify, merge, publish, distribute, sublicense, " +
	"and/or sell copies of the Software.\n"

// Readme renders README.md for a generated repository.
func Readme(title, summary string) string {
	return fmt.Sprintf("# %s\n\n%s\n\n## License\nMIT\n", title, summary)
}

func ReadmeSummary(task string, round int) string {
	return fmt.Sprintf("Auto-generated for task '%s' (round %d).", task, round)
}
