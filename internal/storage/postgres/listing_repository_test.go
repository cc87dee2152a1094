package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/AlexMacD6/ConsignCrew-sub005/internal/domain"
	"github.com/AlexMacD6/ConsignCrew-sub005/internal/testutil"
)

func TestListingRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewListingRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	buyer := "11111111-1111-1111-1111-111111111111"
	otherBuyer := "22222222-2222-2222-2222-222222222222"

	t.Run("GetListing returns the row with markdowns", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id := testutil.InsertListing(t, ctx, pool, domain.Listing{
			Title: "Walnut desk", BasePrice: 120, ReservePrice: 60,
			Markdowns: []domain.MarkdownStep{
				{AfterDays: 7, Price: 100},
				{AfterDays: 14, Price: 80},
			},
		})

		listing, err := repo.GetListing(ctx, id)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if listing.Title != "Walnut desk" || listing.BasePrice != 120 {
			t.Fatalf("unexpected listing: %+v", listing)
		}
		if len(listing.Markdowns) != 2 || listing.Markdowns[0].AfterDays != 7 {
			t.Fatalf("expected markdowns ordered by after_days, got %+v", listing.Markdowns)
		}

		_, err = repo.GetListing(ctx, "00000000-0000-0000-0000-000000000001")
		if err != domain.ErrListingNotFound {
			t.Fatalf("expected ErrListingNotFound, got %v", err)
		}
		_, err = repo.GetListing(ctx, "not-a-uuid")
		if err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("AcquireHold wins exactly once", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id := testutil.InsertListing(t, ctx, pool, domain.Listing{Title: "Chair", BasePrice: 40})
		until := now.Add(10 * time.Minute)

		ok, err := repo.AcquireHold(ctx, id, buyer, 1, until, now)
		if err != nil || !ok {
			t.Fatalf("expected first acquire to succeed, ok=%v err=%v", ok, err)
		}

		ok, err = repo.AcquireHold(ctx, id, otherBuyer, 1, until, now)
		if err != nil {
			t.Fatalf("second acquire: %v", err)
		}
		if ok {
			t.Fatalf("expected second buyer to lose the race")
		}

		listing, err := repo.GetListing(ctx, id)
		if err != nil {
			t.Fatalf("get after acquire: %v", err)
		}
		if listing.Status != domain.ListingStatusProcessing || listing.HeldBy != buyer {
			t.Fatalf("expected listing held by first buyer, got %+v", listing)
		}
	})

	t.Run("holding buyer cannot stack a second hold", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id := testutil.InsertListing(t, ctx, pool, domain.Listing{Title: "Chair", BasePrice: 40})
		until := now.Add(10 * time.Minute)

		if ok, err := repo.AcquireHold(ctx, id, buyer, 1, until, now); err != nil || !ok {
			t.Fatalf("first acquire: ok=%v err=%v", ok, err)
		}

		later := now.Add(20 * time.Minute)
		ok, err := repo.AcquireHold(ctx, id, buyer, 1, later, now.Add(5*time.Minute))
		if err != nil {
			t.Fatalf("second acquire: %v", err)
		}
		if ok {
			t.Fatalf("expected the live hold to block its own buyer")
		}

		listing, _ := repo.GetListing(ctx, id)
		if listing.HeldUntil == nil || !listing.HeldUntil.Equal(until) {
			t.Fatalf("expected held_until untouched at %v, got %v", until, listing.HeldUntil)
		}
	})

	t.Run("lapsed hold on an active listing is reclaimable", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		past := now.Add(-time.Minute)
		id := testutil.InsertListing(t, ctx, pool, domain.Listing{
			Title: "Chair", BasePrice: 40,
			IsHeld: true, HeldUntil: &past, HeldBy: buyer,
		})

		ok, err := repo.AcquireHold(ctx, id, otherBuyer, 1, now.Add(10*time.Minute), now)
		if err != nil || !ok {
			t.Fatalf("expected acquire after lapse, ok=%v err=%v", ok, err)
		}
	})

	t.Run("insufficient quantity never matches", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id := testutil.InsertListing(t, ctx, pool, domain.Listing{Title: "Chair", BasePrice: 40, Quantity: 1})

		ok, err := repo.AcquireHold(ctx, id, buyer, 2, now.Add(10*time.Minute), now)
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		if ok {
			t.Fatalf("expected quantity guard to reject")
		}
	})

	t.Run("ReleaseHold restores active and is idempotent", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id := testutil.InsertListing(t, ctx, pool, domain.Listing{Title: "Chair", BasePrice: 40})
		if ok, err := repo.AcquireHold(ctx, id, buyer, 1, now.Add(10*time.Minute), now); err != nil || !ok {
			t.Fatalf("acquire: ok=%v err=%v", ok, err)
		}

		if err := repo.ReleaseHold(ctx, id); err != nil {
			t.Fatalf("release: %v", err)
		}
		if err := repo.ReleaseHold(ctx, id); err != nil {
			t.Fatalf("second release: %v", err)
		}

		listing, _ := repo.GetListing(ctx, id)
		if listing.Status != domain.ListingStatusActive || listing.IsHeld || listing.HeldBy != "" {
			t.Fatalf("expected released listing, got %+v", listing)
		}
	})

	t.Run("FinalizeHold marks sold and keeps the hold", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id := testutil.InsertListing(t, ctx, pool, domain.Listing{Title: "Chair", BasePrice: 40})
		if ok, err := repo.AcquireHold(ctx, id, buyer, 1, now.Add(10*time.Minute), now); err != nil || !ok {
			t.Fatalf("acquire: ok=%v err=%v", ok, err)
		}

		if err := repo.FinalizeHold(ctx, id); err != nil {
			t.Fatalf("finalize: %v", err)
		}

		listing, _ := repo.GetListing(ctx, id)
		if listing.Status != domain.ListingStatusSold || !listing.IsHeld || listing.HeldUntil != nil {
			t.Fatalf("expected sold listing with a permanent hold, got %+v", listing)
		}

		// A sold listing never matches the acquire predicate again.
		ok, err := repo.AcquireHold(ctx, id, otherBuyer, 1, now.Add(10*time.Minute), now)
		if err != nil {
			t.Fatalf("acquire on sold: %v", err)
		}
		if ok {
			t.Fatalf("expected sold listing to be unacquirable")
		}

		// And release does not resurrect it either.
		if err := repo.ReleaseHold(ctx, id); err != nil {
			t.Fatalf("release on sold: %v", err)
		}
		listing, _ = repo.GetListing(ctx, id)
		if listing.Status != domain.ListingStatusSold {
			t.Fatalf("expected listing to stay sold, got %s", listing.Status)
		}
	})

	t.Run("ExtendHold only for the holding buyer", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id := testutil.InsertListing(t, ctx, pool, domain.Listing{Title: "Chair", BasePrice: 40})
		if ok, err := repo.AcquireHold(ctx, id, buyer, 1, now.Add(10*time.Minute), now); err != nil || !ok {
			t.Fatalf("acquire: ok=%v err=%v", ok, err)
		}

		later := now.Add(20 * time.Minute)
		ok, err := repo.ExtendHold(ctx, id, buyer, later, now)
		if err != nil || !ok {
			t.Fatalf("expected extend by holder, ok=%v err=%v", ok, err)
		}

		ok, err = repo.ExtendHold(ctx, id, otherBuyer, later, now)
		if err != nil {
			t.Fatalf("extend by other: %v", err)
		}
		if ok {
			t.Fatalf("expected another buyer's extend to be rejected")
		}
	})
}
