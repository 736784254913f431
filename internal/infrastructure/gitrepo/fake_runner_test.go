package gitrepo

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"sitebuilder/internal/domain/apperr"
)

// fakeRunner is a scripted Runner. Responses are queued per joined
// command line; unscripted commands succeed with empty output.
type fakeRunner struct {
	calls     []string
	responses map[string][]fakeResponse
}

type fakeResponse struct {
	Out string
	Err error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: map[string][]fakeResponse{}}
}

func (f *fakeRunner) on(cmd string, responses ...fakeResponse) *fakeRunner {
	f.responses[cmd] = append(f.responses[cmd], responses...)
	return f
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	cmd := strings.Join(args, " ")
	f.calls = append(f.calls, cmd)
	queue := f.responses[cmd]
	if len(queue) == 0 {
		return "", nil
	}
	resp := queue[0]
	f.responses[cmd] = queue[1:]
	return resp.Out, resp.Err
}

func (f *fakeRunner) count(cmd string) int {
	n := 0
	for _, c := range f.calls {
		if c == cmd {
			n++
		}
	}
	return n
}

func gitFailure(op string) fakeResponse {
	return fakeResponse{Err: apperr.New(apperr.KindLocalTool, op, "exit status 1")}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
