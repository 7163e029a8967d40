package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/Shivanand-hulikatti/enrollhub/internal/model"
	"github.com/Shivanand-hulikatti/enrollhub/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestCreateResourceRules(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	cases := []struct {
		name string
		req  model.CreateResourceRequest
	}{
		{"event without seats", model.CreateResourceRequest{Kind: model.KindEvent, Title: "x", PricingType: model.PricingFree}},
		{"course with seats", model.CreateResourceRequest{Kind: model.KindCourse, Title: "x", PricingType: model.PricingFree, TotalSeats: intPtr(5)}},
		{"paid without price", model.CreateResourceRequest{Kind: model.KindProduct, Title: "x", PricingType: model.PricingPaid}},
		{"unknown kind", model.CreateResourceRequest{Kind: "webinar", Title: "x", PricingType: model.PricingFree}},
		{"zero seats", model.CreateResourceRequest{Kind: model.KindEvent, Title: "x", PricingType: model.PricingFree, TotalSeats: intPtr(0)}},
		{"blank title", model.CreateResourceRequest{Kind: model.KindProduct, Title: "   ", PricingType: model.PricingFree}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.resources.Create(ctx, tc.req)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	r, err := f.resources.Create(ctx, model.CreateResourceRequest{
		Kind:        model.KindProduct,
		Title:       "Sticker pack",
		PricingType: model.PricingFree,
		Price:       floatPtr(99),
	})
	require.NoError(t, err)
	require.Nil(t, r.Price, "free resources drop the price")
	require.Zero(t, r.RegisteredCount)
	require.False(t, r.IsDeleted)
}

func TestGetResourceUsesCache(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	ev := f.event(t, 3, model.PricingFree)

	got, err := f.resources.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, ev.ID, got.ID)

	cached, err := f.cache.GetResource(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, ev.Title, cached.Title)

	// A free submission takes a seat and must evict the stale copy.
	_, err = f.registrations.Submit(ctx, ev.ID, submitReq("u1"))
	require.NoError(t, err)

	got, err = f.resources.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.RegisteredCount)

	_, err = f.resources.Get(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetResourceDropsFillRacingACommit(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	ev := f.event(t, 3, model.PricingFree)

	// A seat is taken after Get read the store but before it filled the cache.
	f.cache.beforeFill = func() {
		_, err := f.registrations.Submit(ctx, ev.ID, submitReq("racer"))
		require.NoError(t, err)
	}

	got, err := f.resources.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Zero(t, got.RegisteredCount)
	require.False(t, f.cache.cached(ev.ID), "stale copy must not be cached")

	got, err = f.resources.Get(ctx, ev.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.RegisteredCount)
	require.True(t, f.cache.cached(ev.ID))
}

func TestExistsSeesDeleteRacingAFill(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	c := f.course(t, model.PricingFree)

	f.cache.beforeFill = func() {
		_, err := f.resources.Delete(ctx, c.ID, false)
		require.NoError(t, err)
	}

	exists, err := f.resources.Exists(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, exists, "read happened before the delete")

	exists, err = f.resources.Exists(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestListResources(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	ev := f.event(t, 3, model.PricingFree)
	f.course(t, model.PricingFree)

	_, err := f.resources.Delete(ctx, ev.ID, false)
	require.NoError(t, err)

	live, err := f.resources.List(ctx, model.ResourceFilter{})
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.Equal(t, model.KindCourse, live[0].Kind)

	all, err := f.resources.List(ctx, model.ResourceFilter{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 2)

	events, err := f.resources.List(ctx, model.ResourceFilter{Kind: model.KindEvent, IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].IsDeleted)

	_, err = f.resources.List(ctx, model.ResourceFilter{Kind: "webinar"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateResourceKeepsCounterAndGuardsSeats(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	ev := f.event(t, 5, model.PricingFree)

	for i := range 3 {
		_, err := f.registrations.Submit(ctx, ev.ID, submitReq(fmt.Sprintf("user-%d", i)))
		require.NoError(t, err)
	}

	_, err := f.resources.Update(ctx, ev.ID, model.UpdateResourceRequest{
		Title:       "Go Meetup",
		PricingType: model.PricingFree,
		TotalSeats:  intPtr(2),
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	updated, err := f.resources.Update(ctx, ev.ID, model.UpdateResourceRequest{
		Title:       "Go Meetup #2",
		PricingType: model.PricingFree,
		TotalSeats:  intPtr(3),
	})
	require.NoError(t, err)
	require.Equal(t, "Go Meetup #2", updated.Title)
	require.Equal(t, 3, updated.RegisteredCount)
	require.True(t, updated.IsFull())

	_, err = f.registrations.Submit(ctx, ev.ID, submitReq("late"))
	require.ErrorIs(t, err, repository.ErrCapacityExceeded)
	require.Equal(t, 4, f.cache.invalidations(ev.ID), "one invalidation per seat taken plus the update")
}

func TestUpdateDeletedResourceIsNotFound(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	c := f.course(t, model.PricingFree)

	_, err := f.resources.Delete(ctx, c.ID, false)
	require.NoError(t, err)

	_, err = f.resources.Update(ctx, c.ID, model.UpdateResourceRequest{Title: "x", PricingType: model.PricingFree})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteResourceCascadeInBatches(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	ev := f.event(t, 10, model.PricingFree)
	other := f.event(t, 10, model.PricingFree)

	for i := range 5 {
		_, err := f.registrations.Submit(ctx, ev.ID, submitReq(fmt.Sprintf("user-%d", i)))
		require.NoError(t, err)
	}
	_, err := f.registrations.Submit(ctx, other.ID, submitReq("keeper"))
	require.NoError(t, err)

	res, err := f.resources.Delete(ctx, ev.ID, true)
	require.NoError(t, err)
	require.Equal(t, 5, res.RemovedRegistrations)

	gone := f.reload(t, ev.ID)
	require.True(t, gone.IsDeleted)
	require.True(t, gone.PurgeRegistrations)

	left, err := f.registrations.List(ctx, model.RegistrationFilter{ResourceID: ev.ID})
	require.NoError(t, err)
	require.Empty(t, left)

	kept, err := f.registrations.List(ctx, model.RegistrationFilter{ResourceID: other.ID})
	require.NoError(t, err)
	require.Len(t, kept, 1)

	exists, err := f.resources.Exists(ctx, ev.ID)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestDeleteResourceWithoutCascadeKeepsRegistrations(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	c := f.course(t, model.PricingFree)

	_, err := f.registrations.Submit(ctx, c.ID, submitReq("u1"))
	require.NoError(t, err)

	res, err := f.resources.Delete(ctx, c.ID, false)
	require.NoError(t, err)
	require.Zero(t, res.RemovedRegistrations)

	regs, err := f.registrations.List(ctx, model.RegistrationFilter{ResourceID: c.ID})
	require.NoError(t, err)
	require.Len(t, regs, 1)

	_, err = f.resources.Delete(ctx, "missing", true)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPurgeOrphans(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	raced := f.event(t, 10, model.PricingFree)
	kept := f.course(t, model.PricingFree)
	live := f.course(t, model.PricingFree)

	for i := range 5 {
		_, err := f.registrations.Submit(ctx, raced.ID, submitReq(fmt.Sprintf("user-%d", i)))
		require.NoError(t, err)
	}
	_, err := f.registrations.Submit(ctx, kept.ID, submitReq("u1"))
	require.NoError(t, err)
	_, err = f.registrations.Submit(ctx, live.ID, submitReq("u1"))
	require.NoError(t, err)

	// Simulate a cascade interrupted after the flag was set but before the
	// registrations were removed.
	require.NoError(t, f.store.SoftDeleteResource(ctx, raced.ID, true))
	require.NoError(t, f.store.SoftDeleteResource(ctx, kept.ID, false))

	n, err := f.purge.PurgeOrphans(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	n, err = f.purge.PurgeOrphans(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	all, err := f.registrations.List(ctx, model.RegistrationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestPurgeOrphansStopsOnCancel(t *testing.T) {
	f := newFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.purge.PurgeOrphans(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
