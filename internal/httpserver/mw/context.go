package mw

import "context"

type callerKey struct{}

func withCallerSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, callerKey{}, sink)
}

func callerSink(ctx context.Context) *string {
	s, _ := ctx.Value(callerKey{}).(*string)
	return s
}
