package listinghandler

import "github.com/shopspring/decimal"

type CreateListingBody struct {
	Title        string          `json:"title"         binding:"required"       example:"Vintage camera"`
	Description  string          `json:"description"                            example:"Working Leica M3"`
	Category     string          `json:"category"                               example:"photography"`
	ImageURL     string          `json:"image_url"                              example:"https://example.com/m3.jpg"`
	CreatorID    string          `json:"creator_id"    binding:"required"       example:"user123"`
	StartingBid  decimal.Decimal `json:"starting_bid"  binding:"required"       swaggertype:"string" example:"10.00"`
	DurationDays int             `json:"duration_days" binding:"gte=0,lte=30"   example:"7"`
} // @name CreateListingRequest

type PlaceBidBody struct {
	BidderID string          `json:"bidder_id" binding:"required" example:"user123"`
	Amount   decimal.Decimal `json:"amount"    binding:"required" swaggertype:"string" example:"15.00"`
} // @name PlaceBidRequest

type CloseListingBody struct {
	RequesterID string `json:"requester_id" binding:"required" example:"user123"`
} // @name CloseListingRequest

type AddCommentBody struct {
	AuthorID string `json:"author_id" binding:"required" example:"user123"`
	Content  string `json:"content"   binding:"required" example:"Is shipping included?"`
} // @name AddCommentRequest

type ToggleWatchBody struct {
	UserID string `json:"user_id" binding:"required" example:"user123"`
} // @name ToggleWatchRequest

type WatchStateResponse struct {
	Watching bool `json:"watching"`
} // @name WatchStateResponse

type WinnerResponse struct {
	WinnerID string `json:"winner_id" example:"user123"`
} // @name WinnerResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListListingsQuery struct {
	Status   string `form:"status"   binding:"omitempty,oneof=ACTIVE CLOSED"`
	Category string `form:"category" binding:"omitempty"`
	Limit    int    `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset   int    `form:"offset,default=0"  binding:"gte=0"`
} // @name ListListingsQuery
