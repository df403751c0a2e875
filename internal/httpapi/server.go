// Package httpapi exposes the booking service over HTTP for the web
// client: auth, hall availability, bookings, menu, checkout, and cards.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GrandCafeLabs/tablebook/pkg/tablebook"
)

// Server wires the gin router around the domain service.
type Server struct {
	cfg     Config
	service *tablebook.Service
	catalog tablebook.Catalog
	logger  *zap.Logger
	nowFn   func() time.Time
	router  *gin.Engine
}

// NewServer builds the router. The config must already be validated.
func NewServer(cfg Config, service *tablebook.Service, catalog tablebook.Catalog, logger *zap.Logger) *Server {
	server := &Server{
		cfg:     cfg,
		service: service,
		catalog: catalog,
		logger:  logger,
		nowFn:   time.Now,
	}
	server.router = server.setupRouter()
	return server
}

// Handler returns the HTTP handler for tests and embedding.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Run serves until the context is cancelled, then drains connections.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    server.cfg.ListenAddr,
		Handler: server.router,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("http api listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (server *Server) setupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     server.cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/api/auth/register", server.handleRegister)
	router.POST("/api/auth/login", server.handleLogin)
	router.GET("/api/menu", server.handleMenu)
	router.GET("/api/menu/:id", server.handleMenuItem)
	router.GET("/api/tables", server.handleTables)
	router.GET("/api/availability", server.handleAvailability)

	api := router.Group("/api")
	api.Use(sessionMiddleware(server.cfg))

	api.GET("/account", server.handleAccount)
	api.GET("/booking/state", server.handleBookingState)
	api.POST("/bookings", server.handleBook)
	api.DELETE("/bookings", server.handleCancelBooking)
	api.GET("/notifications", server.handleNotifications)
	api.POST("/checkout/preview", server.handleCheckoutPreview)
	api.POST("/checkout/confirm", server.handleCheckoutConfirm)
	api.POST("/cards", server.handleAddCard)
	api.DELETE("/cards", server.handleRemoveCard)

	return router
}

func (server *Server) handleRegister(ctx *gin.Context) {
	var request registerRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	account, err := server.service.Register(ctx.Request.Context(), request.Name, request.Phone, request.Password)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	server.respondSession(ctx, http.StatusCreated, account)
}

func (server *Server) handleLogin(ctx *gin.Context) {
	var request loginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	account, err := server.service.Authenticate(ctx.Request.Context(), request.Phone, request.Password)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	server.respondSession(ctx, http.StatusOK, account)
}

func (server *Server) respondSession(ctx *gin.Context, status int, account tablebook.Account) {
	token, err := issueSessionToken(server.cfg, account.ID, server.nowFn())
	if err != nil {
		server.logger.Error("sign session token", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, errorResponse("internal", "token signing failed"))
		return
	}
	ctx.JSON(status, gin.H{
		"token":   token,
		"account": accountPayloadFrom(account),
	})
}

func (server *Server) handleMenu(ctx *gin.Context) {
	items := server.catalog.Items()
	payload := make([]menuItemPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, menuItemPayloadFrom(item))
	}
	ctx.JSON(http.StatusOK, gin.H{"items": payload})
}

func (server *Server) handleMenuItem(ctx *gin.Context) {
	var params struct {
		ID int `uri:"id" binding:"required"`
	}
	if err := ctx.ShouldBindUri(&params); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "bad menu id"))
		return
	}
	item, ok := server.catalog.Lookup(params.ID)
	if !ok {
		ctx.JSON(http.StatusNotFound, errorResponse("not_found", "unknown menu item"))
		return
	}
	ctx.JSON(http.StatusOK, menuItemPayloadFrom(item))
}

func (server *Server) handleTables(ctx *gin.Context) {
	tables := tablebook.HallTables()
	payload := make([]tablePayload, 0, len(tables))
	for _, table := range tables {
		payload = append(payload, tablePayload{
			ID:       int(table.ID),
			Label:    table.Label,
			Seats:    table.Seats,
			ByWindow: table.ByWindow,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"tables": payload})
}

func (server *Server) handleAvailability(ctx *gin.Context) {
	date := ctx.Query("date")
	timeOfDay := ctx.Query("time")
	occupied, err := server.service.TableOccupancy(ctx.Request.Context(), date, timeOfDay)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	tableIDs := make([]int, 0, len(occupied))
	for _, tableID := range occupied {
		tableIDs = append(tableIDs, int(tableID))
	}
	ctx.JSON(http.StatusOK, gin.H{"occupied": tableIDs})
}

func (server *Server) handleAccount(ctx *gin.Context) {
	guestID, ok := guestIDFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	account, err := server.service.AccountOf(ctx.Request.Context(), guestID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, accountPayloadFrom(account))
}

func (server *Server) handleBookingState(ctx *gin.Context) {
	guestID, ok := guestIDFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	lifecycle, err := server.service.LifecycleOf(ctx.Request.Context(), guestID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	payload := gin.H{"state": string(lifecycle.State)}
	if lifecycle.Reservation != nil {
		payload["reservation"] = reservationPayloadFrom(*lifecycle.Reservation)
	}
	ctx.JSON(http.StatusOK, payload)
}

func (server *Server) handleBook(ctx *gin.Context) {
	guestID, ok := guestIDFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request bookRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	reservation, err := server.service.ProposeBooking(
		ctx.Request.Context(),
		tablebook.TableID(request.TableID),
		request.Date,
		request.Time,
		request.HolderName,
		guestID,
	)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, reservationPayloadFrom(reservation))
}

func (server *Server) handleCancelBooking(ctx *gin.Context) {
	guestID, ok := guestIDFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request cancelRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	removed, err := server.service.CancelBooking(
		ctx.Request.Context(),
		guestID,
		tablebook.TableID(request.TableID),
		request.Date,
		request.Time,
	)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (server *Server) handleNotifications(ctx *gin.Context) {
	guestID, ok := guestIDFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	bookings, err := server.service.BookingsOf(ctx.Request.Context(), guestID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	preparing, err := server.service.PreparingOrdersOf(ctx.Request.Context(), guestID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	bookingPayloads := make([]reservationPayload, 0, len(bookings))
	for _, booking := range bookings {
		bookingPayloads = append(bookingPayloads, reservationPayloadFrom(booking))
	}
	preparingPayloads := make([]preparingOrderPayload, 0, len(preparing))
	for _, order := range preparing {
		preparingPayloads = append(preparingPayloads, preparingOrderPayloadFrom(order))
	}
	ctx.JSON(http.StatusOK, gin.H{
		"bookings":  bookingPayloads,
		"preparing": preparingPayloads,
	})
}

func (server *Server) handleCheckoutPreview(ctx *gin.Context) {
	guestID, ok := guestIDFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request checkoutPreviewRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	serving, err := tablebook.ParseServingChoice(request.Serving.Mode, request.Serving.CustomTime)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	lines := make([]tablebook.CartLine, 0, len(request.Items))
	for _, item := range request.Items {
		lines = append(lines, tablebook.CartLine{MenuID: item.ID, Quantity: item.Quantity})
	}
	preview, err := server.service.BuildCheckoutPreview(
		ctx.Request.Context(),
		guestID,
		lines,
		request.UsePoints,
		request.Comment,
		serving,
	)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, previewPayloadFrom(preview))
}

func (server *Server) handleCheckoutConfirm(ctx *gin.Context) {
	guestID, ok := guestIDFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	order, err := server.service.ConfirmCheckout(ctx.Request.Context(), guestID)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, orderPayloadFrom(order))
}

func (server *Server) handleAddCard(ctx *gin.Context) {
	guestID, ok := guestIDFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request addCardRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	card, err := server.service.AddCard(ctx.Request.Context(), guestID, request.Number, request.Expiry, request.Holder)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, cardPayloadFrom(card))
}

func (server *Server) handleRemoveCard(ctx *gin.Context) {
	guestID, ok := guestIDFrom(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing session"))
		return
	}
	var request removeCardRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	var createdAt *time.Time
	if request.CreatedAt != "" {
		parsed, err := time.Parse(time.RFC3339, request.CreatedAt)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "bad created_at timestamp"))
			return
		}
		createdAt = &parsed
	}
	card, err := server.service.RemoveCard(ctx.Request.Context(), guestID, createdAt, request.Last4)
	if err != nil {
		server.respondDomainError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, cardPayloadFrom(card))
}

func (server *Server) respondDomainError(ctx *gin.Context, err error) {
	status, code := classifyDomainError(err)
	if status == http.StatusInternalServerError {
		server.logger.Error("request failed", zap.Error(err))
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func classifyDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, tablebook.ErrInvalidDateTime),
		errors.Is(err, tablebook.ErrInvalidHolderName),
		errors.Is(err, tablebook.ErrUnknownTable),
		errors.Is(err, tablebook.ErrBookingInPast),
		errors.Is(err, tablebook.ErrInvalidQuantity),
		errors.Is(err, tablebook.ErrCommentTooLong),
		errors.Is(err, tablebook.ErrInvalidServingMode),
		errors.Is(err, tablebook.ErrServingOutsideWindow),
		errors.Is(err, tablebook.ErrInvalidCardNumber),
		errors.Is(err, tablebook.ErrInvalidExpiry),
		errors.Is(err, tablebook.ErrInvalidRegistration):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, tablebook.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, tablebook.ErrTableUnavailable):
		return http.StatusConflict, "table_unavailable"
	case errors.Is(err, tablebook.ErrPhoneTaken):
		return http.StatusConflict, "phone_taken"
	case errors.Is(err, tablebook.ErrNoBooking):
		return http.StatusConflict, "no_booking"
	case errors.Is(err, tablebook.ErrBookingExpired):
		return http.StatusConflict, "expired_booking"
	case errors.Is(err, tablebook.ErrEmptyCart):
		return http.StatusConflict, "empty_cart"
	case errors.Is(err, tablebook.ErrNoActiveCard):
		return http.StatusConflict, "no_card"
	case errors.Is(err, tablebook.ErrStaleCheckout):
		return http.StatusConflict, "stale_checkout"
	case errors.Is(err, tablebook.ErrCardNotFound),
		errors.Is(err, tablebook.ErrAccountNotFound):
		return http.StatusNotFound, "not_found"
	}
	return http.StatusInternalServerError, "internal"
}

func errorResponse(code string, message string) gin.H {
	return gin.H{"error": gin.H{"code": code, "message": message}}
}
