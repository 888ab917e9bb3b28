package server

import (
	"context"
	"net/http"
	"strings"
)

// Caller identity is taken from the X-Actor-Id header. The API trusts its
// deployment boundary; requests without the header act as "anonymous".
const anonymousActor = "anonymous"

type actorKey struct{}

func withActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorID(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return anonymousActor
}

func principalMiddleware(basePath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			actor := strings.TrimSpace(req.Header.Get("X-Actor-Id"))
			if actor == "" {
				actor = anonymousActor
			}
			next.ServeHTTP(w, req.WithContext(withActor(req.Context(), actor)))
		})
	}
}
