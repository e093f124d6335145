package obs

import "context"

type routePatternKey struct{}

// WithRoutePattern stores the matched chi route pattern for metrics labeling.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePattern returns the stored route pattern, or "" when none was recorded.
func RoutePattern(ctx context.Context) string {
	v, _ := ctx.Value(routePatternKey{}).(string)
	return v
}
