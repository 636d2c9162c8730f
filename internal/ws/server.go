package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auctionhouse/internal/auctionerrors"
	"auctionhouse/internal/services/bidding"
	"auctionhouse/internal/services/listing"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 12 * time.Second
	pingPeriod = 3 * time.Second // must be < pongWait
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true }, // dev-only
}

// ConnContext carries the per-connection identity into event handlers.
type ConnContext struct {
	ListingID string
	UserID    string
	Server    *WsServer
}

type WsServer struct {
	hub        *Hub
	subMgr     *subscriptionManager
	router     *Router
	listingSvc listing.IListingService
	biddingSvc bidding.IBiddingService
}

func NewWsServer(h *Hub, rdc *redis.Client, listingSvc listing.IListingService,
	biddingSvc bidding.IBiddingService) *WsServer {
	router := NewRouter()
	srv := &WsServer{
		hub:        h,
		subMgr:     newSubscriptionManager(rdc, h),
		router:     router,
		listingSvc: listingSvc,
		biddingSvc: biddingSvc,
	}
	srv.registerHandlers()
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	listingID := ginCtx.Query("listing_id")
	userID := ginCtx.Query("user_id")
	if listingID == "" || userID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "listing_id and user_id are required"})
		return
	}

	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(512)

	// Client joined.
	wsConn := &clientConn{rawConn: rawConn}
	s.hub.Join(listingID, wsConn)
	s.subMgr.Subscribe(listingID) // may be a no-op (already subscribed)

	// Initial snapshot.
	if err := s.pushInitialSnapshot(ginCtx.Request.Context(), listingID, wsConn); err != nil &&
		!strings.Contains(err.Error(), auctionerrors.ErrNotFound.Error()) {
		zap.L().Warn("ws.snapshot", zap.Error(err))
	}

	go s.reader(listingID, userID, wsConn)
	go s.pinger(wsConn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	Register(
		s.router,
		"listings/bid",
		func(ctx context.Context, cc *ConnContext, req BidRequest) (AckBody, error) {
			_, err := s.biddingSvc.PlaceBid(ctx, cc.ListingID, cc.UserID, req.Amount, time.Now())
			return AckBody{}, err
		},
	)
}

// pushInitialSnapshot sends the settled listing state so a joining client
// does not have to wait for the next bid to learn the current price.
func (s *WsServer) pushInitialSnapshot(ctx context.Context, id string, conn *clientConn) error {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()

	dto, err := s.listingSvc.GetListing(ctx, id, time.Now())
	if err != nil {
		return err
	}
	return conn.writeJSON(gin.H{
		"event": "listings/snapshot",
		"body":  dto,
	})
}

func (s *WsServer) reader(listingID, userID string, conn *clientConn) {
	defer func() {
		s.hub.Leave(listingID, conn)
		s.subMgr.Unsubscribe(listingID)
	}()

	cc := &ConnContext{ListingID: listingID, UserID: userID, Server: s}

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := conn.rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": "error",
				"body":  ErrorBody{Error: err.Error()},
			})
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.ping(); err != nil {
			_ = conn.rawConn.Close()
			return
		}
	}
}
