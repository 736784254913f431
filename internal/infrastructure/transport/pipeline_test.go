package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"sitebuilder/app/usecase"
	"sitebuilder/internal/domain/entity"
	"sitebuilder/internal/infrastructure/llm"
	"sitebuilder/internal/infrastructure/store/filesystem"
	"sitebuilder/internal/infrastructure/store/memory"
	"sitebuilder/internal/infrastructure/validator"
)

// stubRemote stands in for the synchronizer, the GitHub API and the pusher.
type stubRemote struct {
	mu        sync.Mutex
	ensured   []string
	created   []string
	pagesFor  []string
	published []string
}

func (s *stubRemote) Ensure(ctx context.Context, name, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured = append(s.ensured, name)
	return os.MkdirAll(dir, 0o755)
}

func (s *stubRemote) CreateRepo(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, name)
	return nil
}

func (s *stubRemote) EnablePages(ctx context.Context, owner, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pagesFor = append(s.pagesFor, owner+"/"+name)
	return nil
}

func (s *stubRemote) Publish(ctx context.Context, dir string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, dir)
	return "abc123", nil
}

func (s *stubRemote) publishCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

// scriptedChat answers chat completions with one message content per call.
func scriptedChat(t *testing.T, contents ...string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := calls
		calls++
		mu.Unlock()
		if i >= len(contents) {
			t.Errorf("unexpected chat call %d", i+1)
			http.Error(w, "no more replies", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []interface{}{
				map[string]interface{}{
					"message": map[string]interface{}{"role": "assistant", "content": contents[i]},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPipelineRouter(t *testing.T, chatURL string, remote *stubRemote) (*mux.Router, *filesystem.Workspace) {
	t.Helper()
	ws, err := filesystem.NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	gen := llm.NewOpenAIGenerator("key", chatURL, "test-model", 0, 5*time.Second, quietLogger())
	artifacts := usecase.NewArtifactService(gen, validator.NewArtifactAnalyzer(), ws, quietLogger())
	hub := NewHub(quietLogger())
	svc := usecase.NewTaskService(
		usecase.NewSecretVerifier("s3cret"),
		remote,
		artifacts,
		ws,
		remote,
		remote,
		memory.NewRoundRepo(),
		hub,
		nil,
		usecase.TaskServiceConfig{Owner: "octo", Host: "github.com"},
		quietLogger(),
	)
	r := mux.NewRouter()
	NewTaskHandler(svc, hub, quietLogger()).RegisterRoutes(r)
	return r, ws
}

func TestTaskRoundThroughRealService(t *testing.T) {
	chat := scriptedChat(t,
		`{"files":[{"path":"index.html","content":"<h1>Hi</h1>"}]}`,
		`{"files":[]}`,
	)
	remote := &stubRemote{}
	r, ws := newPipelineRouter(t, chat.URL, remote)
	index := filepath.Join(ws.Dir("demo-site"), "index.html")

	t.Run("first round publishes", func(t *testing.T) {
		rec := postTask(t, r, `{"secret":"s3cret","task":"demo-site","round":1,"nonce":"n-1","brief":"say hi"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		var got map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got["repo_url"] != "https://github.com/octo/demo-site" {
			t.Errorf("repo_url = %v", got["repo_url"])
		}
		if got["pages_url"] != "https://octo.github.io/demo-site/" {
			t.Errorf("pages_url = %v", got["pages_url"])
		}
		if got["commit_sha"] != "abc123" {
			t.Errorf("commit_sha = %v", got["commit_sha"])
		}

		body, err := os.ReadFile(index)
		if err != nil {
			t.Fatalf("index.html not written: %v", err)
		}
		if string(body) != "<h1>Hi</h1>" {
			t.Errorf("index.html = %q", body)
		}
		if _, err := os.Stat(filepath.Join(ws.Dir("demo-site"), filepath.FromSlash(entity.PagesWorkflowPath))); err != nil {
			t.Errorf("pages workflow not written: %v", err)
		}
		if len(remote.pagesFor) != 1 || remote.pagesFor[0] != "octo/demo-site" {
			t.Errorf("pages enabled for %v", remote.pagesFor)
		}
		if remote.publishCount() != 1 {
			t.Errorf("publish calls = %d, want 1", remote.publishCount())
		}
	})

	t.Run("empty file list fails without publishing", func(t *testing.T) {
		rec := postTask(t, r, `{"secret":"s3cret","task":"demo-site","round":2,"nonce":"n-2","brief":"change it"}`)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if remote.publishCount() != 1 {
			t.Errorf("publish calls = %d, want 1", remote.publishCount())
		}
		body, err := os.ReadFile(index)
		if err != nil {
			t.Fatal(err)
		}
		if string(body) != "<h1>Hi</h1>" {
			t.Errorf("index.html changed to %q", body)
		}
	})
}
