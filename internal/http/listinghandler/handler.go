package listinghandler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"auctionhouse/internal/auctionerrors"
	"auctionhouse/internal/services/bidding"
	"auctionhouse/internal/services/engagement"
	"auctionhouse/internal/services/listing"
)

type Handler struct {
	listings   listing.IListingService
	bids       bidding.IBiddingService
	engagement engagement.IEngagementService
}

func New(l listing.IListingService, b bidding.IBiddingService, e engagement.IEngagementService) *Handler {
	return &Handler{listings: l, bids: b, engagement: e}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/listings", h.list)
	r.POST("/listings", h.create)
	r.GET("/listings/:id", h.info)
	r.POST("/listings/:id/close", h.close)
	r.POST("/listings/:id/bid", h.bid)
	r.GET("/listings/:id/bids", h.listBids)
	r.GET("/listings/:id/winner", h.winner)
	r.POST("/listings/:id/comments", h.addComment)
	r.GET("/listings/:id/comments", h.listComments)
	r.POST("/listings/:id/watchlist", h.toggleWatch)
	r.GET("/users/:id/watchlist", h.watchlist)
}

// statusFor maps core errors onto HTTP statuses. Storage errors without a
// known kind surface as 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auctionerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auctionerrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, auctionerrors.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, auctionerrors.ErrListingClosed),
		errors.Is(err, auctionerrors.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, auctionerrors.ErrNoWinner),
		errors.Is(err, auctionerrors.ErrNoBids):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(ginCtx *gin.Context, err error) {
	ginCtx.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
}

// @Summary		Create a listing
// @Description	Creates a listing; current price is seeded from the starting bid and the end date is fixed from the duration.
// @Tags			Listings
// @Param			body	body		CreateListingBody	true	"Listing payload"
// @Success		201		{object}	listing.Listing
// @Failure		400		{object}	ErrorResponse
// @Router			/listings [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateListingBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	l, err := h.listings.CreateListing(ginCtx.Request.Context(), listing.NewListing{
		Title:        body.Title,
		Description:  body.Description,
		Category:     body.Category,
		ImageURL:     body.ImageURL,
		CreatorID:    body.CreatorID,
		StartingBid:  body.StartingBid,
		DurationDays: body.DurationDays,
	}, time.Now())
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, l)
}

// @Summary		Get listing details
// @Description	Returns a single listing; an expired listing is settled to CLOSED before it is returned.
// @Tags			Listings
// @Param			id	path		string	true	"Listing ID"
// @Success		200	{object}	listing.Listing
// @Failure		404	{object}	ErrorResponse
// @Router			/listings/{id} [get]
func (h *Handler) info(ginCtx *gin.Context) {
	l, err := h.listings.GetListing(ginCtx.Request.Context(), ginCtx.Param("id"), time.Now())
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, l)
}

// @Summary		List listings
// @Description	Paginated listing index, optionally filtered by status and category. Expired listings are settled first.
// @Tags			Listings
// @Param			status		query		string	false	"Status filter"	Enums(ACTIVE,CLOSED)
// @Param			category	query		string	false	"Category filter"
// @Param			limit		query		int		false	"Max results (0-100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset		query		int		false	"Offset"				minimum(0)	default(0)
// @Success		200			{array}		listing.Listing
// @Failure		400			{object}	ErrorResponse
// @Router			/listings [get]
func (h *Handler) list(ginCtx *gin.Context) {
	var q ListListingsQuery
	if err := ginCtx.ShouldBindQuery(&q); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.listings.ListListings(ginCtx.Request.Context(),
		q.Status, q.Category, q.Limit, q.Offset, time.Now())
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, out)
}

// @Summary		Close a listing
// @Description	Creator closes the listing early. Fails for non-creators and for listings that are already closed.
// @Tags			Listings
// @Param			id		path	string				true	"Listing ID"
// @Param			body	body	CloseListingBody	true	"Requester payload"
// @Success		204
// @Failure		403	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Router			/listings/{id}/close [post]
func (h *Handler) close(ginCtx *gin.Context) {
	var body CloseListingBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	err := h.listings.CloseListing(ginCtx.Request.Context(),
		ginCtx.Param("id"), body.RequesterID, time.Now())
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusNoContent)
}

// @Summary		Place a bid
// @Description	Accepts a bid strictly greater than the current price and at least the starting bid.
// @Tags			Bids
// @Param			id		path		string			true	"Listing ID"
// @Param			body	body		PlaceBidBody	true	"Bid payload"
// @Success		201		{object}	bidding.Bid
// @Failure		400		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/listings/{id}/bid [post]
func (h *Handler) bid(ginCtx *gin.Context) {
	var body PlaceBidBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	b, err := h.bids.PlaceBid(ginCtx.Request.Context(),
		ginCtx.Param("id"), body.BidderID, body.Amount, time.Now())
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, b)
}

// @Summary		List bids
// @Description	Returns the bid ledger for a listing, highest first.
// @Tags			Bids
// @Param			id	path		string	true	"Listing ID"
// @Success		200	{array}		bidding.Bid
// @Failure		404	{object}	ErrorResponse
// @Router			/listings/{id}/bids [get]
func (h *Handler) listBids(ginCtx *gin.Context) {
	bids, err := h.bids.ListBids(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, bids)
}

// @Summary		Get the winner
// @Description	Returns the highest bidder of a closed listing. 404 while the listing is still active or has no bids.
// @Tags			Bids
// @Param			id	path		string	true	"Listing ID"
// @Success		200	{object}	WinnerResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/listings/{id}/winner [get]
func (h *Handler) winner(ginCtx *gin.Context) {
	ctx := ginCtx.Request.Context()
	id := ginCtx.Param("id")
	if _, err := h.listings.EnsureSettled(ctx, id, time.Now()); err != nil {
		abortWith(ginCtx, err)
		return
	}
	winnerID, err := h.bids.Winner(ctx, id)
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, WinnerResponse{WinnerID: winnerID})
}

// @Summary		Add a comment
// @Tags			Engagement
// @Param			id		path		string			true	"Listing ID"
// @Param			body	body		AddCommentBody	true	"Comment payload"
// @Success		201		{object}	engagement.Comment
// @Failure		404		{object}	ErrorResponse
// @Router			/listings/{id}/comments [post]
func (h *Handler) addComment(ginCtx *gin.Context) {
	var body AddCommentBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c, err := h.engagement.AddComment(ginCtx.Request.Context(),
		ginCtx.Param("id"), body.AuthorID, body.Content, time.Now())
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, c)
}

// @Summary		List comments
// @Tags			Engagement
// @Param			id	path		string	true	"Listing ID"
// @Success		200	{array}		engagement.Comment
// @Failure		404	{object}	ErrorResponse
// @Router			/listings/{id}/comments [get]
func (h *Handler) listComments(ginCtx *gin.Context) {
	out, err := h.engagement.ListComments(ginCtx.Request.Context(), ginCtx.Param("id"))
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, out)
}

// @Summary		Toggle watchlist membership
// @Tags			Engagement
// @Param			id		path		string			true	"Listing ID"
// @Param			body	body		ToggleWatchBody	true	"User payload"
// @Success		200		{object}	WatchStateResponse
// @Failure		404		{object}	ErrorResponse
// @Router			/listings/{id}/watchlist [post]
func (h *Handler) toggleWatch(ginCtx *gin.Context) {
	var body ToggleWatchBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	watching, err := h.engagement.ToggleWatch(ginCtx.Request.Context(),
		body.UserID, ginCtx.Param("id"))
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, WatchStateResponse{Watching: watching})
}

// @Summary		Get a user's watchlist
// @Description	Returns watched listings; expired listings are settled before rendering.
// @Tags			Engagement
// @Param			id	path		string	true	"User ID"
// @Success		200	{array}		listing.Listing
// @Failure		500	{object}	ErrorResponse
// @Router			/users/{id}/watchlist [get]
func (h *Handler) watchlist(ginCtx *gin.Context) {
	ctx := ginCtx.Request.Context()
	if _, err := h.listings.SettleExpired(ctx, time.Now()); err != nil {
		abortWith(ginCtx, err)
		return
	}
	out, err := h.engagement.Watchlist(ctx, ginCtx.Param("id"))
	if err != nil {
		abortWith(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, out)
}
