package entity

// GeneratedFile is one file of the generated site, path relative to the
// working directory.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Artifact is the ordered file list produced by the model for one round.
type Artifact struct {
	Files []GeneratedFile `json:"files"`
	Model string          `json:"model"`
}

// ValidationNote is a non-fatal finding about a generated file.
type ValidationNote struct {
	File    string `json:"file"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}
