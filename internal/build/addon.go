package build

import (
	"context"
	"net/http"
)

// Addon is a build collaborator. It opts into lifecycle hooks by also
// implementing any of the hook interfaces below.
type Addon interface {
	Name() string
}

// PreBuilder runs before the pipeline.
type PreBuilder interface {
	PreBuild(ctx context.Context, req Request) error
}

// PostBuilder runs after the pipeline and before output sync.
type PostBuilder interface {
	PostBuild(ctx context.Context, res Result) error
}

// OutputReadier runs after output has been synced to the output path.
type OutputReadier interface {
	OutputReady(ctx context.Context, res Result) error
}

// BuildErrorer is told about a failed build. It cannot change the outcome.
type BuildErrorer interface {
	BuildError(ctx context.Context, err error)
}

// ServerMiddlewarer wraps the development server handler chain.
type ServerMiddlewarer interface {
	ServerMiddleware(next http.Handler) http.Handler
}
