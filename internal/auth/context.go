package auth

import (
	"context"
)

type accountKey struct{}

func ContextWithAccount(ctx context.Context, accountNumber string) context.Context {
	return context.WithValue(ctx, accountKey{}, accountNumber)
}

func AccountFromContext(ctx context.Context) (string, bool) {
	number, ok := ctx.Value(accountKey{}).(string)
	return number, ok
}
