package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"sitebuilder/internal/domain/apperr"
	"sitebuilder/internal/domain/entity"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTasks struct {
	got    []entity.TaskRequest
	res    entity.TaskResult
	err    error
	rounds []*entity.RoundRecord
}

func (f *fakeTasks) Run(ctx context.Context, req entity.TaskRequest) (entity.TaskResult, error) {
	f.got = append(f.got, req)
	return f.res, f.err
}

func (f *fakeTasks) ListRounds(ctx context.Context, task string) ([]*entity.RoundRecord, error) {
	if _, err := (entity.TaskRequest{Task: task}).RepoName(); err != nil {
		return nil, err
	}
	return f.rounds, f.err
}

func newTestRouter(tasks *fakeTasks) *mux.Router {
	r := mux.NewRouter()
	NewTaskHandler(tasks, NewHub(quietLogger()), quietLogger()).RegisterRoutes(r)
	return r
}

func postTask(t *testing.T, r http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/task", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleTaskSuccess(t *testing.T) {
	tasks := &fakeTasks{res: entity.TaskResult{
		Status:    "ok",
		Task:      "demo-site",
		Round:     1,
		RepoURL:   "https://github.com/octo/demo-site",
		CommitSHA: "abc123",
		PagesURL:  "https://octo.github.io/demo-site/",
	}}
	r := newTestRouter(tasks)

	rec := postTask(t, r, `{"secret":"s","task":"demo-site","round":1,"brief":"hi","checks":["a"],"attachments":[{"name":"x.png","url":"data:"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got entity.TaskResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got != tasks.res {
		t.Errorf("result = %+v, want %+v", got, tasks.res)
	}
	if len(tasks.got) != 1 || tasks.got[0].Brief != "hi" || len(tasks.got[0].Attachments) != 1 {
		t.Errorf("request passed = %+v", tasks.got)
	}
}

func TestHandleTaskErrorStatus(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		code  int
		plain bool
	}{
		{"bad secret", apperr.New(apperr.KindAuthorization, "task", "Invalid secret"), http.StatusUnauthorized, false},
		{"blank task", apperr.New(apperr.KindValidation, "task", "empty task/repo name"), http.StatusBadRequest, false},
		{"llm shape", apperr.Wrap(apperr.KindMalformedResponse, "llm", apperr.ErrMissingFiles), http.StatusInternalServerError, true},
		{"git failure", apperr.New(apperr.KindLocalTool, "git push", "exit 1"), http.StatusInternalServerError, true},
		{"config", apperr.New(apperr.KindConfiguration, "github", "GITHUB_TOKEN missing"), http.StatusInternalServerError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeTasks{err: tt.err})
			rec := postTask(t, r, `{"secret":"s","task":"   ","round":1}`)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d", rec.Code, tt.code)
			}
			isJSON := strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json")
			if tt.plain == isJSON {
				t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
			}
		})
	}
}

func TestHandleTaskBadJSON(t *testing.T) {
	tasks := &fakeTasks{}
	rec := postTask(t, newTestRouter(tasks), `{"task":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(tasks.got) != 0 {
		t.Error("usecase called for undecodable body")
	}
}

func TestHandleRoot(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&fakeTasks{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusOK || body["status"] != "ok" || body["message"] == "" {
		t.Errorf("status = %d, body = %v", rec.Code, body)
	}
}

func TestHandleListRounds(t *testing.T) {
	tasks := &fakeTasks{rounds: []*entity.RoundRecord{
		{ID: "r1", Task: "demo-site", Round: 1, Status: entity.RoundStatusOK},
		{ID: "r2", Task: "demo-site", Round: 2, Status: entity.RoundStatusFailed, Error: "boom"},
	}}
	r := newTestRouter(tasks)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/demo-site/rounds", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []entity.RoundRecord
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Error != "boom" {
		t.Errorf("rounds = %+v", got)
	}

	rec = httptest.NewRecorder()
	newTestRouter(&fakeTasks{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/unknown/rounds", nil))
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("empty history body = %q, want []", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/.hidden/rounds", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid task status = %d, want 400", rec.Code)
	}
}

func TestHandleHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&fakeTasks{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Errorf("metrics status = %d", rec.Code)
	}
}
