package bidding

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"auctionhouse/internal/auctionerrors"
)

type sinkRecorder struct {
	bids   []string // "<listing>/<bidder>/<amount>"
	closed []string
}

func (s *sinkRecorder) BidAccepted(_ context.Context, listingID, bidderID string, amount decimal.Decimal, _ time.Time) {
	s.bids = append(s.bids, listingID+"/"+bidderID+"/"+amount.StringFixed(2))
}

func (s *sinkRecorder) ListingClosed(_ context.Context, listingID string) {
	s.closed = append(s.closed, listingID)
}

func newTestService(t *testing.T) (IBiddingService, sqlmock.Sqlmock, *sinkRecorder) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sink := &sinkRecorder{}
	return NewBiddingService(db, sink), mock, sink
}

func expectLockedListing(mock sqlmock.Sqlmock, id string, starting, current string, active bool, endDate time.Time) {
	mock.ExpectQuery("SELECT starting_bid, current_price, is_active, end_date FROM listings WHERE id = .. FOR UPDATE").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"starting_bid", "current_price", "is_active", "end_date"}).
			AddRow(starting, current, active, endDate))
}

func TestPlaceBid_FirstBidAboveStartingPrice(t *testing.T) {
	svc, mock, sink := newTestService(t)
	now := time.Date(2025, 7, 28, 12, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("15.00")

	mock.ExpectBegin()
	expectLockedListing(mock, "l1", "10.00", "10.00", true, now.Add(48*time.Hour))
	mock.ExpectExec("INSERT INTO bids").
		WithArgs(sqlmock.AnyArg(), "l1", "userA", amount, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE listings SET current_price").
		WithArgs("l1", amount).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	bid, err := svc.PlaceBid(context.Background(), "l1", "userA", amount, now)
	require.NoError(t, err)
	require.True(t, bid.Amount.Equal(amount))
	require.Equal(t, "l1", bid.ListingID)
	require.Equal(t, []string{"l1/userA/15.00"}, sink.bids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBid_NotAboveCurrentPrice(t *testing.T) {
	svc, mock, sink := newTestService(t)
	now := time.Date(2025, 7, 28, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		amount string
	}{
		{"below_current", "12.00"},
		{"equal_to_current", "15.00"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock.ExpectBegin()
			expectLockedListing(mock, "l1", "10.00", "15.00", true, now.Add(48*time.Hour))
			mock.ExpectRollback()

			_, err := svc.PlaceBid(context.Background(), "l1", "userB",
				decimal.RequireFromString(tc.amount), now)
			require.ErrorIs(t, err, auctionerrors.ErrBidBelowCurrent)
			require.ErrorIs(t, err, auctionerrors.ErrValidation)
		})
	}
	// Rejected bids leave no ledger entry and no event.
	require.Empty(t, sink.bids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBid_BelowStartingBid(t *testing.T) {
	svc, mock, _ := newTestService(t)
	now := time.Date(2025, 7, 28, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectLockedListing(mock, "l1", "20.00", "10.00", true, now.Add(48*time.Hour))
	mock.ExpectRollback()

	_, err := svc.PlaceBid(context.Background(), "l1", "userB",
		decimal.RequireFromString("12.00"), now)
	require.ErrorIs(t, err, auctionerrors.ErrBidBelowStarting)
	require.ErrorIs(t, err, auctionerrors.ErrValidation)
}

func TestPlaceBid_ClosedListing(t *testing.T) {
	svc, mock, sink := newTestService(t)
	now := time.Date(2025, 7, 28, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectLockedListing(mock, "l1", "10.00", "15.00", false, now.Add(-time.Hour))
	mock.ExpectRollback()

	_, err := svc.PlaceBid(context.Background(), "l1", "userB",
		decimal.RequireFromString("20.00"), now)
	require.ErrorIs(t, err, auctionerrors.ErrListingClosed)
	require.Empty(t, sink.bids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBid_ExpiredListingSettlesUnderLock(t *testing.T) {
	svc, mock, sink := newTestService(t)
	now := time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectLockedListing(mock, "l1", "10.00", "15.00", true, now.Add(-time.Minute))
	mock.ExpectExec("UPDATE listings SET is_active = FALSE").
		WithArgs("l1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := svc.PlaceBid(context.Background(), "l1", "userB",
		decimal.RequireFromString("20.00"), now)
	require.ErrorIs(t, err, auctionerrors.ErrListingClosed)
	require.Empty(t, sink.bids)
	require.Equal(t, []string{"l1"}, sink.closed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceBid_UnknownListing(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT starting_bid, current_price, is_active, end_date FROM listings WHERE id = .. FOR UPDATE").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"starting_bid", "current_price", "is_active", "end_date"}))
	mock.ExpectRollback()

	_, err := svc.PlaceBid(context.Background(), "missing", "userB",
		decimal.RequireFromString("20.00"), time.Now())
	require.ErrorIs(t, err, auctionerrors.ErrNotFound)
}

func TestPlaceBid_RejectsBadAmountsBeforeTouchingStorage(t *testing.T) {
	svc, mock, _ := newTestService(t)

	tests := []struct {
		name   string
		bidder string
		amount string
		want   error
	}{
		{"zero", "userA", "0", auctionerrors.ErrNonPositiveAmount},
		{"negative", "userA", "-5.00", auctionerrors.ErrNonPositiveAmount},
		{"sub_cent_precision", "userA", "10.999", auctionerrors.ErrValidation},
		{"missing_bidder", "", "10.00", auctionerrors.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PlaceBid(context.Background(), "l1", tc.bidder,
				decimal.RequireFromString(tc.amount), time.Now())
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHighestBid_ReturnsMaxAmount(t *testing.T) {
	svc, mock, _ := newTestService(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT 1 FROM listings WHERE id").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT id, listing_id, bidder_id, amount, created_at FROM bids").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "listing_id", "bidder_id", "amount", "created_at"}).
			AddRow("b2", "l1", "userB", "20.00", now))

	b, err := svc.HighestBid(context.Background(), "l1")
	require.NoError(t, err)
	require.Equal(t, "userB", b.BidderID)
	require.True(t, b.Amount.Equal(decimal.RequireFromString("20.00")))
}

func TestHighestBid_NoBids(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("SELECT 1 FROM listings WHERE id").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT id, listing_id, bidder_id, amount, created_at FROM bids").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "listing_id", "bidder_id", "amount", "created_at"}))

	_, err := svc.HighestBid(context.Background(), "l1")
	require.ErrorIs(t, err, auctionerrors.ErrNoBids)
}

func TestWinner_ClosedListingWithBids(t *testing.T) {
	svc, mock, _ := newTestService(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT is_active FROM listings WHERE id").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(false))
	mock.ExpectQuery("SELECT 1 FROM listings WHERE id").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT id, listing_id, bidder_id, amount, created_at FROM bids").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "listing_id", "bidder_id", "amount", "created_at"}).
			AddRow("b2", "l1", "userB", "20.00", now))

	winnerID, err := svc.Winner(context.Background(), "l1")
	require.NoError(t, err)
	require.Equal(t, "userB", winnerID)
}

func TestWinner_UndefinedWhileActiveOrWithoutBids(t *testing.T) {
	t.Run("still_active", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.ExpectQuery("SELECT is_active FROM listings WHERE id").
			WithArgs("l1").
			WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))

		_, err := svc.Winner(context.Background(), "l1")
		require.ErrorIs(t, err, auctionerrors.ErrNoWinner)
	})

	t.Run("closed_without_bids", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.ExpectQuery("SELECT is_active FROM listings WHERE id").
			WithArgs("l1").
			WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(false))
		mock.ExpectQuery("SELECT 1 FROM listings WHERE id").
			WithArgs("l1").
			WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
		mock.ExpectQuery("SELECT id, listing_id, bidder_id, amount, created_at FROM bids").
			WithArgs("l1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "listing_id", "bidder_id", "amount", "created_at"}))

		_, err := svc.Winner(context.Background(), "l1")
		require.ErrorIs(t, err, auctionerrors.ErrNoWinner)
	})

	t.Run("unknown_listing", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.ExpectQuery("SELECT is_active FROM listings WHERE id").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"is_active"}))

		_, err := svc.Winner(context.Background(), "missing")
		require.ErrorIs(t, err, auctionerrors.ErrNotFound)
	})
}

func TestListBids_OrderedLedger(t *testing.T) {
	svc, mock, _ := newTestService(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT 1 FROM listings WHERE id").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT id, listing_id, bidder_id, amount, created_at FROM bids").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "listing_id", "bidder_id", "amount", "created_at"}).
			AddRow("b2", "l1", "userB", "20.00", now).
			AddRow("b1", "l1", "userA", "10.00", now.Add(-time.Minute)))

	bids, err := svc.ListBids(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, "userB", bids[0].BidderID)
	require.True(t, bids[0].Amount.GreaterThan(bids[1].Amount))
}
