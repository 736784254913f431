package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sitebuilder/internal/domain/apperr"
	"sitebuilder/internal/domain/entity"
	"sitebuilder/internal/domain/repository"
	"sitebuilder/internal/infrastructure/metrics"
)

type TaskUsecase interface {
	Run(ctx context.Context, req entity.TaskRequest) (entity.TaskResult, error)
	ListRounds(ctx context.Context, task string) ([]*entity.RoundRecord, error)
}

// RepoSynchronizer prepares the remote repository and local working copy.
type RepoSynchronizer interface {
	Ensure(ctx context.Context, name, dir string) error
}

// ArtifactMaterializer writes the generated site into a working directory.
type ArtifactMaterializer interface {
	Materialize(ctx context.Context, dir, brief string) error
}

// CommitPublisher commits the working directory and pushes it.
type CommitPublisher interface {
	Publish(ctx context.Context, dir string) (string, error)
}

// ResultNotifier delivers the round result to the caller's callback URL.
type ResultNotifier interface {
	PostWithBackoff(ctx context.Context, url string, payload interface{}) (string, error)
}

type TaskServiceConfig struct {
	// Owner is the GitHub account that owns the task repositories.
	Owner string
	// Host is the GitHub web host used in repository URLs.
	Host string
	// NotifyEvaluation enables callbacks to the request's evaluation_url.
	NotifyEvaluation bool
}

var _ TaskUsecase = (*TaskService)(nil)

// TaskService runs one round of a task: verify, sync the repository,
// generate, write LICENSE/README, enable Pages, push, report.
type TaskService struct {
	verifier  SecretVerifier
	sync      RepoSynchronizer
	artifacts ArtifactMaterializer
	workspace Workspace
	pages     repository.HostingAPI
	publisher CommitPublisher
	rounds    repository.RoundRepository
	events    repository.EventPublisher
	notifier  ResultNotifier
	cfg       TaskServiceConfig
	logger    *slog.Logger

	locks      *taskLocks
	background sync.WaitGroup
}

func NewTaskService(
	verifier SecretVerifier,
	syncer RepoSynchronizer,
	artifacts ArtifactMaterializer,
	ws Workspace,
	pages repository.HostingAPI,
	publisher CommitPublisher,
	rounds repository.RoundRepository,
	events repository.EventPublisher,
	notifier ResultNotifier,
	cfg TaskServiceConfig,
	logger *slog.Logger,
) *TaskService {
	if cfg.Host == "" {
		cfg.Host = "github.com"
	}
	return &TaskService{
		verifier:  verifier,
		sync:      syncer,
		artifacts: artifacts,
		workspace: ws,
		pages:     pages,
		publisher: publisher,
		rounds:    rounds,
		events:    events,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		locks:     newTaskLocks(),
	}
}

// Run handles one round. Secret and task name are checked before anything
// touches disk or the network. Rounds of the same task run one at a time.
func (s *TaskService) Run(ctx context.Context, req entity.TaskRequest) (entity.TaskResult, error) {
	if !s.verifier.Verify(req.Secret) {
		metrics.IncRound("unauthorized")
		return entity.TaskResult{}, apperr.New(apperr.KindAuthorization, "task", "Invalid secret")
	}
	name, err := req.RepoName()
	if err != nil {
		metrics.IncRound("invalid")
		return entity.TaskResult{}, err
	}
	if err := req.Validate(); err != nil {
		metrics.IncRound("invalid")
		return entity.TaskResult{}, err
	}

	unlock := s.locks.Lock(name)
	defer unlock()

	// Remote mutations are not transactional; a client disconnect must
	// not stop a round half-way.
	ctx = context.WithoutCancel(ctx)

	metrics.IncActiveRounds()
	defer metrics.DecActiveRounds()

	rec := entity.NewRoundRecord(name, req)
	s.saveRound(ctx, rec)
	logger := s.logger.With("task", name, "round", req.Round, "round_id", rec.ID)
	logger.Info("round started", "nonce", req.Nonce)
	start := time.Now()

	res, err := s.runPipeline(ctx, logger, rec, name, req)
	if err != nil {
		rec.Fail(err)
		s.saveRound(ctx, rec)
		s.emit(rec, entity.StageFailed, err)
		metrics.IncRound("failed")
		metrics.IncError("task_service", string(apperr.KindOf(err)))
		logger.Error("round failed", "kind", apperr.KindOf(err), "err", err, "duration", time.Since(start))
		return entity.TaskResult{}, err
	}

	rec.Succeed(res)
	s.saveRound(ctx, rec)
	s.emit(rec, entity.StageDone, nil)
	metrics.IncRound("ok")
	logger.Info("round done", "commit_sha", res.CommitSHA, "pages_url", res.PagesURL, "duration", time.Since(start))

	if s.cfg.NotifyEvaluation && req.EvaluationURL != "" && s.notifier != nil {
		s.notifyAsync(ctx, logger, req.EvaluationURL, res)
	}
	return res, nil
}

func (s *TaskService) runPipeline(ctx context.Context, logger *slog.Logger, rec *entity.RoundRecord, name string, req entity.TaskRequest) (entity.TaskResult, error) {
	dir := s.workspace.Dir(name)

	if err := s.stage(rec, entity.StageRepoSynced, func() error {
		return s.sync.Ensure(ctx, name, dir)
	}); err != nil {
		return entity.TaskResult{}, fmt.Errorf("ensure repo: %w", err)
	}

	if err := s.stage(rec, entity.StageArtifactGenerated, func() error {
		return s.artifacts.Materialize(ctx, dir, req.Brief)
	}); err != nil {
		return entity.TaskResult{}, fmt.Errorf("materialize app: %w", err)
	}

	// LICENSE and README are cosmetic; a failure is logged and the round goes on.
	if err := s.stage(rec, entity.StageAncillaryWritten, func() error {
		return s.workspace.WriteLicenseAndReadme(dir, name, entity.ReadmeSummary(name, req.Round))
	}); err != nil {
		logger.Warn("write license and readme failed", "err", err)
	}

	if err := s.stage(rec, entity.StagePublishEnabled, func() error {
		return s.pages.EnablePages(ctx, s.cfg.Owner, name)
	}); err != nil {
		return entity.TaskResult{}, fmt.Errorf("enable pages: %w", err)
	}

	var sha string
	if err := s.stage(rec, entity.StagePushed, func() error {
		var err error
		sha, err = s.publisher.Publish(ctx, dir)
		return err
	}); err != nil {
		return entity.TaskResult{}, fmt.Errorf("publish: %w", err)
	}

	return entity.TaskResult{
		Status:    "ok",
		Email:     req.Email,
		Task:      req.Task,
		Round:     req.Round,
		Nonce:     req.Nonce,
		RepoURL:   entity.RepoURL(s.cfg.Host, s.cfg.Owner, name),
		CommitSHA: sha,
		PagesURL:  entity.PagesURL(s.cfg.Owner, name),
	}, nil
}

// stage runs fn, records its duration and announces the state it reached.
func (s *TaskService) stage(rec *entity.RoundRecord, stage entity.Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveStage(string(stage), time.Since(start))
	if err != nil {
		return err
	}
	s.emit(rec, stage, nil)
	return nil
}

func (s *TaskService) emit(rec *entity.RoundRecord, stage entity.Stage, err error) {
	if s.events == nil {
		return
	}
	ev := entity.StageEvent{
		RoundID: rec.ID,
		Task:    rec.Task,
		Round:   rec.Round,
		Stage:   stage,
		At:      time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	s.events.Publish(ev)
}

func (s *TaskService) saveRound(ctx context.Context, rec *entity.RoundRecord) {
	if s.rounds == nil {
		return
	}
	if err := s.rounds.Save(ctx, rec); err != nil {
		s.logger.Warn("save round record failed", "task", rec.Task, "round_id", rec.ID, "err", err)
	}
}

type evaluationPayload struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

func (s *TaskService) notifyAsync(ctx context.Context, logger *slog.Logger, url string, res entity.TaskResult) {
	payload := evaluationPayload{
		Email:     res.Email,
		Task:      res.Task,
		Round:     res.Round,
		Nonce:     res.Nonce,
		RepoURL:   res.RepoURL,
		CommitSHA: res.CommitSHA,
		PagesURL:  res.PagesURL,
	}
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.notifier.PostWithBackoff(ctx, url, payload); err != nil {
			logger.Warn("evaluation callback failed", "url", url, "err", err)
			return
		}
		logger.Info("evaluation callback delivered", "url", url)
	}()
}

// Wait blocks until background callbacks have finished.
func (s *TaskService) Wait() {
	s.background.Wait()
}

func (s *TaskService) ListRounds(ctx context.Context, task string) ([]*entity.RoundRecord, error) {
	name, err := entity.TaskRequest{Task: task}.RepoName()
	if err != nil {
		return nil, err
	}
	if s.rounds == nil {
		return nil, nil
	}
	rounds, err := s.rounds.ListByTask(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("list rounds for %s: %w", name, err)
	}
	return rounds, nil
}
