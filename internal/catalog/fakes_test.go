package catalog

import (
	"context"
	"sync/atomic"

	"catalogd/internal/model"
)

// catalogFunc adapts a function to CatalogSource. call counts from 1.
type catalogFunc struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int32) ([]RawRecord, error)
}

func (c *catalogFunc) FetchCatalog(ctx context.Context, _ model.Kind) ([]RawRecord, error) {
	return c.fn(ctx, c.calls.Add(1))
}

type registrationFunc struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int32) ([]RawRegistration, error)
}

func (r *registrationFunc) FetchRegistrations(ctx context.Context, _ model.Kind) ([]RawRegistration, error) {
	return r.fn(ctx, r.calls.Add(1))
}

func staticCatalog(recs []RawRecord, err error) *catalogFunc {
	return &catalogFunc{fn: func(context.Context, int32) ([]RawRecord, error) { return recs, err }}
}

func staticRegistrations(regs []RawRegistration, err error) *registrationFunc {
	return &registrationFunc{fn: func(context.Context, int32) ([]RawRegistration, error) { return regs, err }}
}
