package cacheinfra

import (
	"context"
	"reflect"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

const textCodeInvalidFetchFn = "INVALID_FETCH_FN"

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// SturdycService is a cache.CacheService backed by a sturdyc client. A fetch
// that returns an error leaves the key absent.
type SturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService validates cfg and builds the sturdyc client.
func NewSturdycService(cfg Config) (*SturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.sturdycOptions()...,
	)

	return &SturdycService{client: client}, nil
}

// GetOrFetch returns the value stored under key, or calls fetchFn and stores
// its result. fetchFn must have the shape func(context.Context) (T, error).
func (s *SturdycService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	if err := validateFetchFn(fetchFn); err != nil {
		return nil, err
	}

	return s.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return callFetchFn(ctx, fetchFn)
	})
}

// Delete removes key.
func (s *SturdycService) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// DeleteByPrefix removes every key starting with prefix.
func (s *SturdycService) DeleteByPrefix(_ context.Context, prefix string) error {
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
		}
	}
	return nil
}

// InvalidateKeys removes each of keys.
func (s *SturdycService) InvalidateKeys(_ context.Context, keys []string) error {
	for _, key := range keys {
		s.client.Delete(key)
	}
	return nil
}

// Keys lists the keys currently held.
func (s *SturdycService) Keys() []string {
	return s.client.ScanKeys()
}

func validateFetchFn(fetchFn any) error {
	if fetchFn == nil {
		return invalidFetchFn("cannot be nil")
	}

	fnType := reflect.TypeOf(fetchFn)
	if fnType.Kind() != reflect.Func {
		return invalidFetchFn("must be a function")
	}
	if fnType.NumIn() != 1 || fnType.NumOut() != 2 {
		return invalidFetchFn("must have signature func(context.Context) (T, error)")
	}
	if !fnType.In(0).Implements(contextType) {
		return invalidFetchFn("first parameter must be context.Context")
	}
	if !fnType.Out(1).Implements(errorType) {
		return invalidFetchFn("second return value must be error")
	}
	return nil
}

func invalidFetchFn(msg string) error {
	return goerrors.New("fetchFn "+msg, goerrors.CategoryBadInput).
		WithTextCode(textCodeInvalidFetchFn)
}

// callFetchFn invokes a pre-validated fetch function, taking the direct path
// for func(context.Context) (any, error).
func callFetchFn(ctx context.Context, fetchFn any) (any, error) {
	if fn, ok := fetchFn.(func(context.Context) (any, error)); ok {
		return fn(ctx)
	}

	results := reflect.ValueOf(fetchFn).Call([]reflect.Value{reflect.ValueOf(ctx)})

	var result any
	if v := results[0]; v.IsValid() && v.CanInterface() {
		result = v.Interface()
	}

	var err error
	if e := results[1]; e.IsValid() && !e.IsNil() {
		err = e.Interface().(error)
	}
	return result, err
}
