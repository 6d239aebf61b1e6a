package middleware

import "context"

// userHolder is filled in further down the chain; the Logger reads it once
// the handler returns.
type userHolder struct {
	id  int64
	set bool
}

type holderKey struct{}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

func userHolderFrom(ctx context.Context) *userHolder {
	h, _ := ctx.Value(holderKey{}).(*userHolder)
	return h
}
