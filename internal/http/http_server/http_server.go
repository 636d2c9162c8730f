package http_server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files

	"auctionhouse/internal/http/listinghandler"
	"auctionhouse/internal/services/bidding"
	"auctionhouse/internal/services/engagement"
	"auctionhouse/internal/services/listing"
	"auctionhouse/internal/ws"
)

type httpServer struct {
	listenPort    uint16
	srv           http.Server
	ln            net.Listener
	listingSvc    listing.IListingService
	biddingSvc    bidding.IBiddingService
	engagementSvc engagement.IEngagementService
	wsSrv         *ws.WsServer
	ctx           context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, wsSrv *ws.WsServer,
	listingSvc listing.IListingService, biddingSvc bidding.IBiddingService,
	engagementSvc engagement.IEngagementService) *httpServer {
	return &httpServer{
		listenPort:    listenPort,
		wsSrv:         wsSrv,
		listingSvc:    listingSvc,
		biddingSvc:    biddingSvc,
		engagementSvc: engagementSvc,
		ctx:           ctx,
	}
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	routerEngine := gin.New()

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// websocket endpoint
	routerEngine.GET("/ws", h.wsSrv.Handle)

	// REST API
	lh := listinghandler.New(h.listingSvc, h.biddingSvc, h.engagementSvc)
	lh.Register(routerEngine)

	h.srv = http.Server{
		Handler: routerEngine,
	}

	return h.srv.Serve(h.ln)
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn't finish in time
	}

	if ctx.Err() == context.DeadlineExceeded {
		zap.L().Error("http_dispose", zap.Error(errors.New("shutdown timed out")))
		log.Println("shutdown timeout (10 s)")
	}

	return nil
}
