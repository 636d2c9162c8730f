package bidding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auctionhouse/internal/auctionerrors"
)

type Bid struct {
	ID        string          `json:"id"`
	ListingID string          `json:"listing_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at" example:"2025-07-27T16:05:05Z"`
}

// EventSink receives committed bid events.
type EventSink interface {
	BidAccepted(ctx context.Context, listingID, bidderID string, amount decimal.Decimal, at time.Time)
	ListingClosed(ctx context.Context, listingID string)
}

type IBiddingService interface {
	PlaceBid(ctx context.Context, listingID, bidderID string, amount decimal.Decimal, now time.Time) (*Bid, error)
	ListBids(ctx context.Context, listingID string) ([]Bid, error)
	HighestBid(ctx context.Context, listingID string) (*Bid, error)
	Winner(ctx context.Context, listingID string) (string, error)
}

type biddingService struct {
	db     *sql.DB
	events EventSink
}

func NewBiddingService(db *sql.DB, events EventSink) IBiddingService {
	return &biddingService{db: db, events: events}
}

// PlaceBid validates and accepts a bid in a single transaction. The listing
// row is locked FOR UPDATE so two concurrent bidders cannot both validate
// against the same stale price: the second transaction blocks on the lock and
// re-reads the updated current_price, where an equal amount fails the
// strictly-greater check. The ledger insert and the price update commit
// together; a bid without its price update is never observable.
func (svc *biddingService) PlaceBid(ctx context.Context, listingID, bidderID string,
	amount decimal.Decimal, now time.Time) (*Bid, error) {

	if bidderID == "" {
		return nil, fmt.Errorf("place bid: %w: bidder_id is required", auctionerrors.ErrValidation)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("place bid on %s: %w", listingID, auctionerrors.ErrNonPositiveAmount)
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, fmt.Errorf("place bid on %s: %w: more than two decimal places", listingID, auctionerrors.ErrValidation)
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		startingBid  decimal.Decimal
		currentPrice decimal.Decimal
		active       bool
		endDate      time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT starting_bid, current_price, is_active, end_date
	       FROM listings WHERE id = $1 FOR UPDATE`,
		listingID).Scan(&startingBid, &currentPrice, &active, &endDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %s: %w", listingID, auctionerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("place bid on %s: %w", listingID, err)
	}

	if active && now.UTC().After(endDate) {
		// Expired under the lock: settle here rather than accept a late bid.
		if _, err := tx.ExecContext(ctx,
			`UPDATE listings SET is_active = FALSE WHERE id = $1`, listingID); err != nil {
			return nil, fmt.Errorf("place bid on %s: %w", listingID, err)
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		if svc.events != nil {
			svc.events.ListingClosed(ctx, listingID)
		}
		return nil, fmt.Errorf("place bid on %s: %w", listingID, auctionerrors.ErrListingClosed)
	}
	if !active {
		return nil, fmt.Errorf("place bid on %s: %w", listingID, auctionerrors.ErrListingClosed)
	}

	if amount.Cmp(currentPrice) <= 0 {
		return nil, fmt.Errorf("place bid on %s: %w (current price %s)",
			listingID, auctionerrors.ErrBidBelowCurrent, currentPrice.StringFixed(2))
	}
	if amount.Cmp(startingBid) < 0 {
		return nil, fmt.Errorf("place bid on %s: %w (starting bid %s)",
			listingID, auctionerrors.ErrBidBelowStarting, startingBid.StringFixed(2))
	}

	bid := &Bid{
		ID:        uuid.NewString(),
		ListingID: listingID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: now.UTC(),
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bids (id, listing_id, bidder_id, amount, created_at)
	      VALUES ($1, $2, $3, $4, $5)`,
		bid.ID, bid.ListingID, bid.BidderID, bid.Amount, bid.CreatedAt); err != nil {
		return nil, fmt.Errorf("place bid on %s: %w", listingID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET current_price = $2 WHERE id = $1`,
		listingID, bid.Amount); err != nil {
		return nil, fmt.Errorf("place bid on %s: %w", listingID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if svc.events != nil {
		svc.events.BidAccepted(ctx, listingID, bidderID, amount, bid.CreatedAt)
	}
	return bid, nil
}

// ListBids returns the ledger for a listing, most recent first.
func (svc *biddingService) ListBids(ctx context.Context, listingID string) ([]Bid, error) {
	if err := svc.listingExists(ctx, listingID); err != nil {
		return nil, err
	}

	rows, err := svc.db.QueryContext(ctx,
		`SELECT id, listing_id, bidder_id, amount, created_at
	       FROM bids WHERE listing_id = $1 ORDER BY amount DESC`, listingID)
	if err != nil {
		return nil, fmt.Errorf("list bids for %s: %w", listingID, err)
	}
	defer rows.Close()

	var bids []Bid
	for rows.Next() {
		var b Bid
		if err := rows.Scan(&b.ID, &b.ListingID, &b.BidderID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// HighestBid returns the maximum-amount bid. Accepted amounts strictly
// increase, so this is also the most recently accepted bid.
func (svc *biddingService) HighestBid(ctx context.Context, listingID string) (*Bid, error) {
	if err := svc.listingExists(ctx, listingID); err != nil {
		return nil, err
	}

	b := &Bid{}
	err := svc.db.QueryRowContext(ctx,
		`SELECT id, listing_id, bidder_id, amount, created_at
	       FROM bids WHERE listing_id = $1
	   ORDER BY amount DESC LIMIT 1`,
		listingID).Scan(&b.ID, &b.ListingID, &b.BidderID, &b.Amount, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %s: %w", listingID, auctionerrors.ErrNoBids)
	}
	if err != nil {
		return nil, fmt.Errorf("highest bid for %s: %w", listingID, err)
	}
	return b, nil
}

// Winner is defined only for a closed listing with at least one bid.
func (svc *biddingService) Winner(ctx context.Context, listingID string) (string, error) {
	var active bool
	err := svc.db.QueryRowContext(ctx,
		`SELECT is_active FROM listings WHERE id = $1`, listingID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("listing %s: %w", listingID, auctionerrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("winner for %s: %w", listingID, err)
	}
	if active {
		return "", fmt.Errorf("listing %s still active: %w", listingID, auctionerrors.ErrNoWinner)
	}

	highest, err := svc.HighestBid(ctx, listingID)
	if errors.Is(err, auctionerrors.ErrNoBids) {
		return "", fmt.Errorf("listing %s: %w", listingID, auctionerrors.ErrNoWinner)
	}
	if err != nil {
		return "", err
	}
	return highest.BidderID, nil
}

func (svc *biddingService) listingExists(ctx context.Context, listingID string) error {
	var one int
	err := svc.db.QueryRowContext(ctx,
		`SELECT 1 FROM listings WHERE id = $1`, listingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("listing %s: %w", listingID, auctionerrors.ErrNotFound)
	}
	return err
}
