package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"auctionhouse/internal/auctionerrors"
)

// State of a listing. CLOSED is terminal.
type State string

const (
	StateActive State = "ACTIVE"
	StateClosed State = "CLOSED"
)

const redisTimerKeyPrefix = "listing_t:"

type Listing struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	ImageURL     string          `json:"image_url"`
	CreatorID    string          `json:"creator_id"`
	StartingBid  decimal.Decimal `json:"starting_bid"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	CreatedAt    time.Time       `json:"created_at"    example:"2025-07-27T16:05:05Z"`
	DurationDays int             `json:"duration_days"`
	EndDate      time.Time       `json:"end_date"      example:"2025-08-03T16:05:05Z"`
	IsActive     bool            `json:"is_active"`
}

// NewListing carries the caller-supplied fields for CreateListing.
type NewListing struct {
	Title        string
	Description  string
	Category     string
	ImageURL     string
	CreatorID    string
	StartingBid  decimal.Decimal
	DurationDays int
}

// EventSink receives lifecycle notifications after they are committed.
type EventSink interface {
	ListingClosed(ctx context.Context, listingID string)
}

type IListingService interface {
	CreateListing(ctx context.Context, in NewListing, now time.Time) (*Listing, error)
	GetListing(ctx context.Context, id string, now time.Time) (*Listing, error)
	ListListings(ctx context.Context, status, category string, limit, offset int, now time.Time) ([]Listing, error)
	EnsureSettled(ctx context.Context, id string, now time.Time) (State, error)
	CloseListing(ctx context.Context, id, requesterID string, now time.Time) error
	SettleExpired(ctx context.Context, now time.Time) (int, error)
}

type listingService struct {
	db          *sql.DB
	rdc         *redis.Client
	events      EventSink
	defaultDays int
	maxDays     int
}

func NewListingService(db *sql.DB, rdc *redis.Client, events EventSink, defaultDays, maxDays int) IListingService {
	return &listingService{
		db:          db,
		rdc:         rdc,
		events:      events,
		defaultDays: defaultDays,
		maxDays:     maxDays,
	}
}

const listingColumns = `id, title, description, category, image_url, creator_id,
       starting_bid, current_price, created_at, duration_days, end_date, is_active`

// CreateListing seeds current_price from the starting bid and fixes end_date
// exactly once; end_date is never written again.
func (svc *listingService) CreateListing(ctx context.Context, in NewListing, now time.Time) (*Listing, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", auctionerrors.ErrValidation)
	}
	if in.CreatorID == "" {
		return nil, fmt.Errorf("%w: creator_id is required", auctionerrors.ErrValidation)
	}
	if in.StartingBid.Sign() <= 0 {
		return nil, fmt.Errorf("%w: starting_bid must be positive", auctionerrors.ErrValidation)
	}
	if !in.StartingBid.Equal(in.StartingBid.Round(2)) {
		return nil, fmt.Errorf("%w: starting_bid has more than two decimal places", auctionerrors.ErrValidation)
	}
	days := in.DurationDays
	if days == 0 {
		days = svc.defaultDays
	}
	if days < 1 || days > svc.maxDays {
		return nil, fmt.Errorf("%w: duration_days must be between 1 and %d", auctionerrors.ErrValidation, svc.maxDays)
	}

	l := &Listing{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		Category:     in.Category,
		ImageURL:     in.ImageURL,
		CreatorID:    in.CreatorID,
		StartingBid:  in.StartingBid,
		CurrentPrice: in.StartingBid,
		CreatedAt:    now.UTC(),
		DurationDays: days,
		EndDate:      now.UTC().Add(time.Duration(days) * 24 * time.Hour),
		IsActive:     true,
	}

	const ins = `
	  INSERT INTO listings (id, title, description, category, image_url, creator_id,
	                        starting_bid, current_price, created_at, duration_days,
	                        end_date, is_active)
	       VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,TRUE)`
	_, err := svc.db.ExecContext(ctx, ins,
		l.ID, l.Title, l.Description, l.Category, l.ImageURL, l.CreatorID,
		l.StartingBid, l.CurrentPrice, l.CreatedAt, l.DurationDays, l.EndDate)
	if err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	svc.armExpiryTimer(ctx, l.ID, l.EndDate, now)
	return l, nil
}

// armExpiryTimer sets the Redis TTL key watched by listingwatcher. Best effort:
// lazy settlement on every entry point keeps correctness if Redis is down.
func (svc *listingService) armExpiryTimer(ctx context.Context, id string, endDate, now time.Time) {
	if svc.rdc == nil {
		return
	}
	ttl := endDate.Sub(now)
	if ttl <= 0 {
		return
	}
	if err := svc.rdc.Set(ctx, redisTimerKeyPrefix+id, 1, ttl).Err(); err != nil {
		zap.L().Warn("listing.arm_timer", zap.String("id", id), zap.Error(err))
	}
}

// EnsureSettled lazily transitions an expired listing to CLOSED. Idempotent:
// the conditional update matches zero rows once is_active is already false, so
// a repeat call settles nothing and only reads.
func (svc *listingService) EnsureSettled(ctx context.Context, id string, now time.Time) (State, error) {
	res, err := svc.db.ExecContext(ctx,
		`UPDATE listings SET is_active = FALSE WHERE id = $1 AND is_active AND end_date < $2`,
		id, now.UTC())
	if err != nil {
		return "", fmt.Errorf("settle listing %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 && svc.events != nil {
		svc.events.ListingClosed(ctx, id)
	}

	var active bool
	err = svc.db.QueryRowContext(ctx, `SELECT is_active FROM listings WHERE id = $1`, id).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("listing %s: %w", id, auctionerrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("settle listing %s: %w", id, err)
	}
	if active {
		return StateActive, nil
	}
	return StateClosed, nil
}

// CloseListing is the explicit creator close. Expiry is settled first under
// the row lock, so a close attempt after end_date fails with ErrInvalidState
// like any other close of an already-closed listing.
func (svc *listingService) CloseListing(ctx context.Context, id, requesterID string, now time.Time) error {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var creatorID string
	var active bool
	var endDate time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT creator_id, is_active, end_date FROM listings WHERE id = $1 FOR UPDATE`,
		id).Scan(&creatorID, &active, &endDate)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("listing %s: %w", id, auctionerrors.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("close listing %s: %w", id, err)
	}

	if requesterID != creatorID {
		return fmt.Errorf("close listing %s: %w", id, auctionerrors.ErrPermission)
	}

	if active && now.UTC().After(endDate) {
		// Expired but not yet settled: settle, then refuse the manual close.
		if _, err := tx.ExecContext(ctx,
			`UPDATE listings SET is_active = FALSE WHERE id = $1`, id); err != nil {
			return fmt.Errorf("close listing %s: %w", id, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		if svc.events != nil {
			svc.events.ListingClosed(ctx, id)
		}
		return fmt.Errorf("close listing %s: %w", id, auctionerrors.ErrInvalidState)
	}
	if !active {
		return fmt.Errorf("close listing %s: %w", id, auctionerrors.ErrInvalidState)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE listings SET is_active = FALSE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("close listing %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if svc.rdc != nil {
		_ = svc.rdc.Del(ctx, redisTimerKeyPrefix+id).Err()
	}
	if svc.events != nil {
		svc.events.ListingClosed(ctx, id)
	}
	return nil
}

func (svc *listingService) GetListing(ctx context.Context, id string, now time.Time) (*Listing, error) {
	if _, err := svc.EnsureSettled(ctx, id, now); err != nil {
		return nil, err
	}

	row := svc.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %s: %w", id, auctionerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	return l, nil
}

// SettleExpired bulk-closes every expired active listing. Used by the index
// and watchlist reads and by the background sweep.
func (svc *listingService) SettleExpired(ctx context.Context, now time.Time) (int, error) {
	rows, err := svc.db.QueryContext(ctx,
		`UPDATE listings SET is_active = FALSE
	      WHERE is_active AND end_date < $1
	  RETURNING id`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("settle expired: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if svc.events != nil {
		for _, id := range ids {
			svc.events.ListingClosed(ctx, id)
		}
	}
	return len(ids), nil
}

func (svc *listingService) ListListings(ctx context.Context, status, category string,
	limit, offset int, now time.Time) ([]Listing, error) {

	if _, err := svc.SettleExpired(ctx, now); err != nil {
		return nil, err
	}

	if limit == 0 {
		limit = 10
	}

	base := `SELECT ` + listingColumns + ` FROM listings`
	var conds []string
	var args []any
	switch State(status) {
	case StateActive:
		conds = append(conds, "is_active")
	case StateClosed:
		conds = append(conds, "NOT is_active")
	}
	if category != "" {
		args = append(args, category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(conds) > 0 {
		base += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit, offset)
	base += fmt.Sprintf(" ORDER BY end_date DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := svc.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	list := make([]Listing, 0, limit)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *l)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*Listing, error) {
	l := &Listing{}
	err := row.Scan(&l.ID, &l.Title, &l.Description, &l.Category, &l.ImageURL,
		&l.CreatorID, &l.StartingBid, &l.CurrentPrice, &l.CreatedAt,
		&l.DurationDays, &l.EndDate, &l.IsActive)
	if err != nil {
		return nil, err
	}
	return l, nil
}
