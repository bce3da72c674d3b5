package services

import "context"

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	jobKey       contextKey = "job"
	stepKey      contextKey = "step"
	comicIDKey   contextKey = "comic_id"
	requestIDKey contextKey = "request_id"
)

// WithRunID annotates context with the job run identifier.
func WithRunID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the job run identifier if present.
func RunIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(runIDKey).(int64)
	return v, ok
}

// WithJob annotates context with the job name.
func WithJob(ctx context.Context, job string) context.Context {
	if job == "" {
		return ctx
	}
	return context.WithValue(ctx, jobKey, job)
}

// JobFromContext returns the job name if present.
func JobFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(jobKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStep annotates context with the step name.
func WithStep(ctx context.Context, step string) context.Context {
	if step == "" {
		return ctx
	}
	return context.WithValue(ctx, stepKey, step)
}

// StepFromContext returns the step name if present.
func StepFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stepKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithComicID annotates context with the comic record identifier.
func WithComicID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, comicIDKey, id)
}

// ComicIDFromContext extracts the comic record identifier if present.
func ComicIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(comicIDKey).(int64)
	return v, ok
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
