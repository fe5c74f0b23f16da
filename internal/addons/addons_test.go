package addons

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/kiln/internal/build"
	"github.com/conneroisu/kiln/internal/config"
	kerrors "github.com/conneroisu/kiln/internal/errors"
)

type call struct {
	dir     string
	command string
	env     []string
}

func recordingRunner(calls *[]call, err error) Runner {
	return func(_ context.Context, dir, command string, env []string) ([]byte, error) {
		*calls = append(*calls, call{dir: dir, command: command, env: env})
		return []byte("out"), err
	}
}

func TestExecAddonHooks(t *testing.T) {
	var calls []call
	a := NewExecAddon(config.AddonConfig{
		Name:        "lint",
		PreBuild:    "lint pre",
		OutputReady: "lint ready",
	}, "/project", recordingRunner(&calls, nil), nil)

	ctx := context.Background()
	require.NoError(t, a.PreBuild(ctx, build.Request{Environment: "production", InvalidatedFile: "app/x.js"}))
	require.NoError(t, a.PostBuild(ctx, build.Result{Directory: "/tmp/out"}))
	require.NoError(t, a.OutputReady(ctx, build.Result{Directory: "/tmp/out"}))

	require.Len(t, calls, 2)
	assert.Equal(t, "lint pre", calls[0].command)
	assert.Equal(t, "/project", calls[0].dir)
	assert.Contains(t, calls[0].env, "KILN_ENV=production")
	assert.Contains(t, calls[0].env, "KILN_INVALIDATED_FILE=app/x.js")
	assert.Contains(t, calls[0].env, "KILN_HOOK=pre_build")
	assert.Equal(t, "lint ready", calls[1].command)
	assert.Contains(t, calls[1].env, "KILN_OUTPUT_DIR=/tmp/out")
}

func TestExecAddonHookFailure(t *testing.T) {
	var calls []call
	a := NewExecAddon(config.AddonConfig{Name: "bad", PreBuild: "false", BuildError: "notify"},
		"/project", recordingRunner(&calls, errors.New("exit status 1")), nil)

	err := a.PreBuild(context.Background(), build.Request{})
	require.Error(t, err)
	assert.True(t, kerrors.IsBuildError(err))
	assert.Contains(t, err.Error(), "addon bad pre_build hook failed")

	a.BuildError(context.Background(), err)
	require.Len(t, calls, 2)
	assert.Equal(t, "notify", calls[1].command)
}

func TestServerMiddlewareSetsHeaders(t *testing.T) {
	a := NewExecAddon(config.AddonConfig{Name: "cors", Headers: map[string]string{"access-control-allow-origin": "*"}},
		"/project", nil, nil)
	h := a.ServerMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestFromConfigKeepsOrder(t *testing.T) {
	list := FromConfig([]config.AddonConfig{{Name: "b"}, {Name: "a"}}, "/p", nil, nil)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Name())
	assert.Equal(t, "a", list[1].Name())

	_, ok := list[0].(build.ServerMiddlewarer)
	assert.True(t, ok)
}
