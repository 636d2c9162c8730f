package engagement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"auctionhouse/internal/auctionerrors"
	"auctionhouse/internal/services/listing"
)

type Comment struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type IEngagementService interface {
	AddComment(ctx context.Context, listingID, authorID, content string, now time.Time) (*Comment, error)
	ListComments(ctx context.Context, listingID string) ([]Comment, error)
	ToggleWatch(ctx context.Context, userID, listingID string) (bool, error)
	IsWatching(ctx context.Context, userID, listingID string) (bool, error)
	Watchlist(ctx context.Context, userID string) ([]listing.Listing, error)
}

type engagementService struct {
	db *sql.DB
}

func NewEngagementService(db *sql.DB) IEngagementService {
	return &engagementService{db: db}
}

func (svc *engagementService) AddComment(ctx context.Context, listingID, authorID, content string, now time.Time) (*Comment, error) {
	if authorID == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("add comment: %w: author_id and content are required", auctionerrors.ErrValidation)
	}
	if err := svc.listingExists(ctx, listingID); err != nil {
		return nil, err
	}

	c := &Comment{
		ID:        uuid.NewString(),
		ListingID: listingID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: now.UTC(),
	}
	_, err := svc.db.ExecContext(ctx,
		`INSERT INTO comments (id, listing_id, author_id, content, created_at)
	      VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.ListingID, c.AuthorID, c.Content, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add comment to %s: %w", listingID, err)
	}
	return c, nil
}

func (svc *engagementService) ListComments(ctx context.Context, listingID string) ([]Comment, error) {
	if err := svc.listingExists(ctx, listingID); err != nil {
		return nil, err
	}

	rows, err := svc.db.QueryContext(ctx,
		`SELECT id, listing_id, author_id, content, created_at
	       FROM comments WHERE listing_id = $1 ORDER BY created_at`, listingID)
	if err != nil {
		return nil, fmt.Errorf("list comments for %s: %w", listingID, err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ListingID, &c.AuthorID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ToggleWatch flips watchlist membership and reports whether the user is
// watching after the call.
func (svc *engagementService) ToggleWatch(ctx context.Context, userID, listingID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("toggle watch: %w: user_id is required", auctionerrors.ErrValidation)
	}
	if err := svc.listingExists(ctx, listingID); err != nil {
		return false, err
	}

	res, err := svc.db.ExecContext(ctx,
		`DELETE FROM watchlist WHERE user_id = $1 AND listing_id = $2`, userID, listingID)
	if err != nil {
		return false, fmt.Errorf("toggle watch %s/%s: %w", userID, listingID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}

	_, err = svc.db.ExecContext(ctx,
		`INSERT INTO watchlist (user_id, listing_id) VALUES ($1, $2)
	      ON CONFLICT DO NOTHING`, userID, listingID)
	if err != nil {
		return false, fmt.Errorf("toggle watch %s/%s: %w", userID, listingID, err)
	}
	return true, nil
}

func (svc *engagementService) IsWatching(ctx context.Context, userID, listingID string) (bool, error) {
	var one int
	err := svc.db.QueryRowContext(ctx,
		`SELECT 1 FROM watchlist WHERE user_id = $1 AND listing_id = $2`,
		userID, listingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is watching %s/%s: %w", userID, listingID, err)
	}
	return true, nil
}

func (svc *engagementService) Watchlist(ctx context.Context, userID string) ([]listing.Listing, error) {
	rows, err := svc.db.QueryContext(ctx,
		`SELECT l.id, l.title, l.description, l.category, l.image_url, l.creator_id,
	            l.starting_bid, l.current_price, l.created_at, l.duration_days,
	            l.end_date, l.is_active
	       FROM watchlist w
	       JOIN listings l ON l.id = w.listing_id
	      WHERE w.user_id = $1
	   ORDER BY l.end_date DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("watchlist for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []listing.Listing
	for rows.Next() {
		var l listing.Listing
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &l.Category, &l.ImageURL,
			&l.CreatorID, &l.StartingBid, &l.CurrentPrice, &l.CreatedAt,
			&l.DurationDays, &l.EndDate, &l.IsActive); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (svc *engagementService) listingExists(ctx context.Context, listingID string) error {
	var one int
	err := svc.db.QueryRowContext(ctx,
		`SELECT 1 FROM listings WHERE id = $1`, listingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("listing %s: %w", listingID, auctionerrors.ErrNotFound)
	}
	return err
}
