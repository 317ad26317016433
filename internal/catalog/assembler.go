package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appLog "catalogd/internal/log"
	"catalogd/internal/model"
)

const defaultRegistrationTimeout = time.Second

// CatalogSource returns the raw records of one catalog kind.
type CatalogSource interface {
	FetchCatalog(ctx context.Context, kind model.Kind) ([]RawRecord, error)
}

// RegistrationSource returns the current user's registrations for one kind.
type RegistrationSource interface {
	FetchRegistrations(ctx context.Context, kind model.Kind) ([]RawRegistration, error)
}

// Assembler fetches both inputs concurrently and runs Build over them.
type Assembler struct {
	Catalog CatalogSource

	// Location is used for zone-less timestamps. Nil means time.Local.
	Location *time.Location

	// RegistrationTimeout bounds how long Run waits for registrations
	// before proceeding without them. Zero means 1s.
	RegistrationTimeout time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Assembler) registrationTimeout() time.Duration {
	if a.RegistrationTimeout <= 0 {
		return defaultRegistrationTimeout
	}
	return a.RegistrationTimeout
}

// Run performs one render cycle. regs may be nil for anonymous users.
//
// A catalog failure returns an error wrapping ErrCatalogFetchFailed and an
// empty SortedCatalog. Registration failures and timeouts are logged and
// absorbed.
func (a *Assembler) Run(ctx context.Context, kind model.Kind, regs RegistrationSource, criteria FilterCriteria) (SortedCatalog, error) {
	runID := uuid.NewString()
	now := a.now()

	var (
		records       []RawRecord
		registrations []RawRegistration
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := a.Catalog.FetchCatalog(gctx, kind)
		if err != nil {
			return err
		}
		records = recs
		return nil
	})
	if regs != nil {
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(gctx, a.registrationTimeout())
			defer cancel()
			list, err := fetchRegistrations(rctx, regs, kind)
			if err != nil {
				appLog.Info("catalog: continuing without registrations", "run_id", runID, "kind", kind, "reason", err.Error())
				return nil
			}
			registrations = list
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		appLog.Error("catalog: fetch failed", err, "run_id", runID, "kind", kind)
		return SortedCatalog{}, catalogFailure(err)
	}

	out := Build(BuildInput{
		Kind:          kind,
		Records:       records,
		Registrations: registrations,
		Criteria:      criteria,
		Now:           now,
		Location:      a.Location,
	})

	appLog.Info("catalog: run completed",
		"run_id", runID,
		"kind", kind,
		"fetched", len(records),
		"excluded", len(out.Excluded),
		"emitted", len(out.Items),
		"registrations_known", out.RegistrationsKnown,
	)
	return out, nil
}

// fetchRegistrations wraps every failure as ErrRegistrationUnavailable and
// turns a successful empty answer into a non-nil slice so callers can tell
// "no registrations" from "unknown".
func fetchRegistrations(ctx context.Context, regs RegistrationSource, kind model.Kind) ([]RawRegistration, error) {
	list, err := regs.FetchRegistrations(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistrationUnavailable, err)
	}
	if list == nil {
		list = []RawRegistration{}
	}
	return list, nil
}
