package resultcache

import "context"

type scopeContextKey struct{}

// WithScope attaches c to ctx so code deeper in the call chain, such as
// lifecycle handlers, reuses the cache of the current unit of work.
func WithScope(ctx context.Context, c *ResultCache) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, scopeContextKey{}, c)
}

// FromContext returns the ResultCache attached by WithScope.
func FromContext(ctx context.Context) (*ResultCache, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(scopeContextKey{}).(*ResultCache)
	return c, ok && c != nil
}

// Run creates a scope, attaches it to ctx, calls fn and closes the scope.
// The error from fn wins over the error from Close.
func Run(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) (err error) {
	c, err := New(opts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := c.Close(context.WithoutCancel(ctx)); err == nil {
			err = closeErr
		}
	}()
	return fn(WithScope(ctx, c))
}
