package entity

import "time"

// Stage is a state of the round pipeline.
type Stage string

const (
	StageUnverified        Stage = "unverified"
	StageRepoSynced        Stage = "repo_synced"
	StageArtifactGenerated Stage = "artifact_generated"
	StageAncillaryWritten  Stage = "ancillary_written"
	StagePublishEnabled    Stage = "publish_enabled"
	StagePushed            Stage = "pushed"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

// StageEvent is broadcast to websocket watchers of a task.
type StageEvent struct {
	RoundID string    `json:"round_id"`
	Task    string    `json:"task"`
	Round   int       `json:"round"`
	Stage   Stage     `json:"stage"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}
