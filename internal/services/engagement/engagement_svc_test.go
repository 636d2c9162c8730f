package engagement

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"auctionhouse/internal/auctionerrors"
)

func newTestService(t *testing.T) (IEngagementService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEngagementService(db), mock
}

func TestAddComment(t *testing.T) {
	svc, mock := newTestService(t)
	now := time.Date(2025, 7, 28, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT 1 FROM listings WHERE id").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("INSERT INTO comments").
		WithArgs(sqlmock.AnyArg(), "l1", "userA", "Is shipping included?", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, err := svc.AddComment(context.Background(), "l1", "userA", "Is shipping included?", now)
	require.NoError(t, err)
	require.Equal(t, "l1", c.ListingID)
	require.NotEmpty(t, c.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddComment_Validation(t *testing.T) {
	svc, mock := newTestService(t)

	_, err := svc.AddComment(context.Background(), "l1", "", "hello", time.Now())
	require.ErrorIs(t, err, auctionerrors.ErrValidation)

	_, err = svc.AddComment(context.Background(), "l1", "userA", "   ", time.Now())
	require.ErrorIs(t, err, auctionerrors.ErrValidation)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddComment_UnknownListing(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("SELECT 1 FROM listings WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	_, err := svc.AddComment(context.Background(), "missing", "userA", "hello", time.Now())
	require.ErrorIs(t, err, auctionerrors.ErrNotFound)
}

func TestToggleWatch_AddsThenRemoves(t *testing.T) {
	svc, mock := newTestService(t)

	// Not yet watching: delete matches nothing, insert follows.
	mock.ExpectQuery("SELECT 1 FROM listings WHERE id").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("DELETE FROM watchlist").
		WithArgs("userA", "l1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO watchlist").
		WithArgs("userA", "l1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	watching, err := svc.ToggleWatch(context.Background(), "userA", "l1")
	require.NoError(t, err)
	require.True(t, watching)

	// Watching: delete removes the row and no insert happens.
	mock.ExpectQuery("SELECT 1 FROM listings WHERE id").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("DELETE FROM watchlist").
		WithArgs("userA", "l1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	watching, err = svc.ToggleWatch(context.Background(), "userA", "l1")
	require.NoError(t, err)
	require.False(t, watching)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsWatching(t *testing.T) {
	svc, mock := newTestService(t)

	mock.ExpectQuery("SELECT 1 FROM watchlist").
		WithArgs("userA", "l1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	watching, err := svc.IsWatching(context.Background(), "userA", "l1")
	require.NoError(t, err)
	require.True(t, watching)

	mock.ExpectQuery("SELECT 1 FROM watchlist").
		WithArgs("userA", "l2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	watching, err = svc.IsWatching(context.Background(), "userA", "l2")
	require.NoError(t, err)
	require.False(t, watching)
}

func TestWatchlist(t *testing.T) {
	svc, mock := newTestService(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM watchlist w").
		WithArgs("userA").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "description", "category", "image_url", "creator_id",
			"starting_bid", "current_price", "created_at", "duration_days", "end_date", "is_active",
		}).AddRow("l1", "Lamp", "", "", "", "user1",
			"10.00", "15.00", now, 7, now.Add(7*24*time.Hour), true))

	out, err := svc.Watchlist(context.Background(), "userA")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "l1", out[0].ID)
}
