package entity

import (
	"time"

	"github.com/google/uuid"
)

type RoundStatus string

const (
	RoundStatusRunning RoundStatus = "running"
	RoundStatusOK      RoundStatus = "ok"
	RoundStatusFailed  RoundStatus = "failed"
)

// RoundRecord is the history entry of one handled round.
type RoundRecord struct {
	ID         string      `json:"id" bson:"id"`
	Task       string      `json:"task" bson:"task"`
	Round      int         `json:"round" bson:"round"`
	Nonce      string      `json:"nonce" bson:"nonce"`
	Email      string      `json:"email" bson:"email"`
	Status     RoundStatus `json:"status" bson:"status"`
	RepoURL    string      `json:"repo_url,omitempty" bson:"repo_url,omitempty"`
	PagesURL   string      `json:"pages_url,omitempty" bson:"pages_url,omitempty"`
	CommitSHA  string      `json:"commit_sha,omitempty" bson:"commit_sha,omitempty"`
	Error      string      `json:"error,omitempty" bson:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at" bson:"started_at"`
	FinishedAt time.Time   `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
}

func NewRoundRecord(task string, req TaskRequest) *RoundRecord {
	return &RoundRecord{
		ID:        uuid.New().String(),
		Task:      task,
		Round:     req.Round,
		Nonce:     req.Nonce,
		Email:     req.Email,
		Status:    RoundStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

func (r *RoundRecord) Succeed(res TaskResult) {
	r.Status = RoundStatusOK
	r.RepoURL = res.RepoURL
	r.PagesURL = res.PagesURL
	r.CommitSHA = res.CommitSHA
	r.FinishedAt = time.Now().UTC()
}

func (r *RoundRecord) Fail(err error) {
	r.Status = RoundStatusFailed
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = time.Now().UTC()
}
