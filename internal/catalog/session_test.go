package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"catalogd/internal/model"
)

func recvUpdate(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u := <-ch:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetches to settle")
	}
}

func TestSessionLateRegistrationsRerunMerge(t *testing.T) {
	release := make(chan struct{})
	updates := make(chan Update, 10)

	sess := NewSession(SessionConfig{
		Kind:    model.KindEvent,
		Catalog: staticCatalog([]RawRecord{event("42", testNow.Add(time.Hour), nil, nil)}, nil),
		Registrations: &registrationFunc{fn: func(ctx context.Context, _ int32) ([]RawRegistration, error) {
			<-release
			return []RawRegistration{{"id": 42}}, nil
		}},
		Now:      func() time.Time { return testNow },
		OnUpdate: func(u Update) { updates <- u },
	})
	defer sess.Close()

	assert.Equal(t, sess.Snapshot(testNow).State, StateLoading)

	done, err := sess.Load(context.Background())
	assert.NilError(t, err)

	first := recvUpdate(t, updates)
	assert.Equal(t, first.State, StateReady)
	assert.Assert(t, !first.Catalog.RegistrationsKnown)
	assert.Assert(t, !first.Catalog.Items[0].IsRegistered)

	close(release)
	second := recvUpdate(t, updates)
	assert.Equal(t, second.State, StateReady)
	assert.Assert(t, second.Catalog.RegistrationsKnown)
	assert.Assert(t, second.Catalog.Items[0].IsRegistered)

	waitDone(t, done)
}

func TestSessionRegistrationsBeforeCatalog(t *testing.T) {
	release := make(chan struct{})
	regsFetched := make(chan struct{})
	updates := make(chan Update, 10)

	sess := NewSession(SessionConfig{
		Kind: model.KindEvent,
		Catalog: &catalogFunc{fn: func(ctx context.Context, _ int32) ([]RawRecord, error) {
			<-release
			return []RawRecord{event("7", testNow.Add(time.Hour), nil, nil)}, nil
		}},
		Registrations: &registrationFunc{fn: func(ctx context.Context, _ int32) ([]RawRegistration, error) {
			defer close(regsFetched)
			return []RawRegistration{{"id": "7"}}, nil
		}},
		Now:      func() time.Time { return testNow },
		OnUpdate: func(u Update) { updates <- u },
	})
	defer sess.Close()

	done, err := sess.Load(context.Background())
	assert.NilError(t, err)
	<-regsFetched
	close(release)
	waitDone(t, done)

	// Whichever result landed last, the final update carries both.
	var last Update
	for len(updates) > 0 {
		last = <-updates
	}
	assert.Equal(t, last.State, StateReady)
	assert.Assert(t, last.Catalog.RegistrationsKnown)
	assert.Assert(t, last.Catalog.Items[0].IsRegistered)
	assert.Assert(t, sess.Snapshot(testNow).Catalog.Items[0].IsRegistered)
}

func TestSessionDiscardsStaleGeneration(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	updates := make(chan Update, 10)

	cat := &catalogFunc{fn: func(ctx context.Context, call int32) ([]RawRecord, error) {
		if call == 1 {
			close(firstStarted)
			// Ignores cancellation to simulate a response already in flight.
			<-releaseFirst
			return []RawRecord{event("old", testNow, nil, nil)}, nil
		}
		return []RawRecord{event("new", testNow, nil, nil)}, nil
	}}
	sess := NewSession(SessionConfig{
		Kind:     model.KindEvent,
		Catalog:  cat,
		Now:      func() time.Time { return testNow },
		OnUpdate: func(u Update) { updates <- u },
	})
	defer sess.Close()

	first, err := sess.Load(context.Background())
	assert.NilError(t, err)
	<-firstStarted
	second, err := sess.Load(context.Background())
	assert.NilError(t, err)

	upd := recvUpdate(t, updates)
	assert.DeepEqual(t, ids(upd.Catalog.Items), []string{"new"})

	close(releaseFirst)
	waitDone(t, first)
	waitDone(t, second)

	assert.Equal(t, len(updates), 0)
	assert.DeepEqual(t, ids(sess.Snapshot(testNow).Catalog.Items), []string{"new"})
}

func TestSessionCloseDiscardsInFlight(t *testing.T) {
	release := make(chan struct{})
	sawCancel := make(chan struct{})
	updates := make(chan Update, 10)

	sess := NewSession(SessionConfig{
		Kind: model.KindEvent,
		Catalog: &catalogFunc{fn: func(ctx context.Context, _ int32) ([]RawRecord, error) {
			<-ctx.Done()
			close(sawCancel)
			<-release
			return []RawRecord{event("late", testNow, nil, nil)}, nil
		}},
		Now:      func() time.Time { return testNow },
		OnUpdate: func(u Update) { updates <- u },
	})

	done, err := sess.Load(context.Background())
	assert.NilError(t, err)
	sess.Close()
	<-sawCancel
	close(release)
	waitDone(t, done)

	assert.Equal(t, len(updates), 0)
	assert.Equal(t, sess.Snapshot(testNow).State, StateLoading)

	_, err = sess.Load(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionCatalogFailureClearsData(t *testing.T) {
	upstream := errors.New("503 from upstream")
	cat := &catalogFunc{fn: func(ctx context.Context, call int32) ([]RawRecord, error) {
		if call == 1 {
			return []RawRecord{event("1", testNow, nil, nil)}, nil
		}
		return nil, upstream
	}}
	sess := NewSession(SessionConfig{Kind: model.KindEvent, Catalog: cat, Now: func() time.Time { return testNow }})
	defer sess.Close()

	done, err := sess.Load(context.Background())
	assert.NilError(t, err)
	waitDone(t, done)
	assert.Equal(t, sess.Snapshot(testNow).State, StateReady)

	done, err = sess.Load(context.Background())
	assert.NilError(t, err)
	waitDone(t, done)

	upd := sess.Snapshot(testNow)
	assert.Equal(t, upd.State, StateError)
	assert.ErrorIs(t, upd.Err, ErrCatalogFetchFailed)
	assert.ErrorIs(t, upd.Err, upstream)
	assert.Equal(t, len(upd.Catalog.Items), 0)
}

func TestSessionSnapshotUsesReadTime(t *testing.T) {
	start := testNow.Add(time.Hour)
	sess := NewSession(SessionConfig{
		Kind:    model.KindEvent,
		Catalog: staticCatalog([]RawRecord{event("1", start, nil, nil)}, nil),
		Now:     func() time.Time { return testNow },
	})
	defer sess.Close()

	done, err := sess.Load(context.Background())
	assert.NilError(t, err)
	waitDone(t, done)

	assert.Equal(t, sess.Snapshot(testNow).Catalog.Items[0].Status, model.StatusUpcoming)
	assert.Equal(t, sess.Snapshot(start.Add(30*time.Minute)).Catalog.Items[0].Status, model.StatusLive)
	assert.Equal(t, sess.Snapshot(start.Add(3*time.Hour)).Catalog.Items[0].Status, model.StatusCompleted)
}

func TestSessionSetCriteria(t *testing.T) {
	records := []RawRecord{
		event("1", testNow, nil, map[string]any{"mode": "online"}),
		event("2", testNow, nil, map[string]any{"mode": "offline"}),
	}
	sess := NewSession(SessionConfig{
		Kind:    model.KindEvent,
		Catalog: staticCatalog(records, nil),
		Now:     func() time.Time { return testNow },
	})
	defer sess.Close()

	done, err := sess.Load(context.Background())
	assert.NilError(t, err)
	waitDone(t, done)

	upd := sess.SetCriteria(FilterCriteria{Mode: "offline"})
	assert.DeepEqual(t, ids(upd.Catalog.Items), []string{"2"})

	upd = sess.SetCriteria(FilterCriteria{})
	assert.Equal(t, len(upd.Catalog.Items), 2)
}
