package handler

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/core/service"
	"github.com/rl1809/rent-market/internal/port"
)

const idempotencyHeader = "Idempotency-Key"

type HTTPHandler struct {
	market   *service.Market
	cache    port.CacheRepository
	auth     *Authenticator
	validate *validator.Validate
	log      *zap.Logger
	timeout  time.Duration
}

type BookingHTTPRequest struct {
	RentStart string `json:"rent_start" validate:"required,datetime=2006-01-02 15:04:05"`
	RentEnd   string `json:"rent_end" validate:"required,datetime=2006-01-02 15:04:05"`
}

type QuoteHTTPQuery struct {
	Start string `query:"start" validate:"required,datetime=2006-01-02 15:04:05"`
	End   string `query:"end" validate:"required,datetime=2006-01-02 15:04:05"`
}

type AvailabilityHTTPResponse struct {
	ProductID string  `json:"product_id"`
	Status    string  `json:"status"`
	RentStart *string `json:"rent_start,omitempty"`
	RentEnd   *string `json:"rent_end,omitempty"`
}

type BookingHTTPResponse struct {
	BookingID string  `json:"booking_id"`
	ProductID string  `json:"product_id"`
	RentStart string  `json:"rent_start"`
	RentEnd   string  `json:"rent_end"`
	Units     int64   `json:"units"`
	Unit      string  `json:"unit"`
	TotalRent float64 `json:"total_rent"`
}

type QuoteHTTPResponse struct {
	Units int64   `json:"units"`
	Unit  string  `json:"unit"`
	Rate  float64 `json:"rate"`
	Total float64 `json:"total"`
}

type PurchaseHTTPResponse struct {
	PurchaseID  string `json:"purchase_id"`
	ProductID   string `json:"product_id"`
	BuyerID     string `json:"buyer_id"`
	PurchasedAt string `json:"purchased_at"`
}

// NewHTTPHandler wires the REST surface. cache may be nil, which disables
// Idempotency-Key handling.
func NewHTTPHandler(market *service.Market, cache port.CacheRepository, auth *Authenticator, log *zap.Logger, timeout time.Duration) *HTTPHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPHandler{
		market:   market,
		cache:    cache,
		auth:     auth,
		validate: validator.New(),
		log:      log,
		timeout:  timeout,
	}
}

// NewApp builds the fiber application with every route registered.
func (h *HTTPHandler) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "rent-market",
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
	})
	app.Use(recover.New())
	app.Use(h.requestLogger)

	api := app.Group("/api/v1")
	api.Get("/health", h.HealthCheck)

	products := api.Group("/products", h.auth.Middleware())
	products.Get("/:id/availability", h.Availability)
	products.Get("/:id/quote", h.Quote)
	products.Post("/:id/bookings", h.idempotent, h.Book)
	products.Post("/:id/purchase", h.idempotent, h.Purchase)
	products.Delete("/:id", h.idempotent, h.Delete)

	app.Use(func(c *fiber.Ctx) error {
		return errorResponse(c, fiber.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	return app
}

func (h *HTTPHandler) HealthCheck(c *fiber.Ctx) error {
	return successResponse(c, fiber.StatusOK, "ok", fiber.Map{"status": "ok"})
}

func (h *HTTPHandler) Availability(c *fiber.Ctx) error {
	productID, err := h.productID(c)
	if err != nil {
		return badRequest(c, "Invalid product ID", map[string]any{"product_id": productID})
	}
	ctx, cancel := h.context(c)
	defer cancel()

	res, err := h.market.Lookup(ctx, productID)
	if err != nil {
		return internalError(c)
	}
	if res.Rejected != nil {
		return rejectionResponse(c, res.Rejected)
	}

	out := AvailabilityHTTPResponse{ProductID: productID, Status: string(res.Availability.Status)}
	if res.Availability.RentStart != nil && res.Availability.RentEnd != nil {
		start := domain.FormatDateTime(*res.Availability.RentStart)
		end := domain.FormatDateTime(*res.Availability.RentEnd)
		out.RentStart, out.RentEnd = &start, &end
	}
	return successResponse(c, fiber.StatusOK, "Availability resolved", out)
}

func (h *HTTPHandler) Quote(c *fiber.Ctx) error {
	productID, err := h.productID(c)
	if err != nil {
		return badRequest(c, "Invalid product ID", map[string]any{"product_id": productID})
	}

	var query QuoteHTTPQuery
	if err := c.QueryParser(&query); err != nil {
		return badRequest(c, "Invalid query", map[string]any{"parse_error": err.Error()})
	}
	if err := h.validate.Struct(query); err != nil {
		return badRequest(c, "Validation error", map[string]any{"errors": err.Error()})
	}
	start, end, err := h.interval(query.Start, query.End)
	if err != nil {
		return badRequest(c, "Invalid date-time", map[string]any{"errors": err.Error()})
	}

	ctx, cancel := h.context(c)
	defer cancel()

	quote, rejected, err := h.market.Quote(ctx, productID, start, end)
	if err != nil {
		return internalError(c)
	}
	if rejected != nil {
		return rejectionResponse(c, rejected)
	}
	return successResponse(c, fiber.StatusOK, "Quote calculated", QuoteHTTPResponse{
		Units: quote.Units,
		Unit:  string(quote.Unit),
		Rate:  quote.Rate,
		Total: quote.Total,
	})
}

func (h *HTTPHandler) Book(c *fiber.Ctx) error {
	productID, err := h.productID(c)
	if err != nil {
		return badRequest(c, "Invalid product ID", map[string]any{"product_id": productID})
	}

	var request BookingHTTPRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, "Invalid request body", map[string]any{"parse_error": err.Error()})
	}
	if err := h.validate.Struct(request); err != nil {
		return badRequest(c, "Validation error", map[string]any{"errors": err.Error()})
	}
	start, end, err := h.interval(request.RentStart, request.RentEnd)
	if err != nil {
		return badRequest(c, "Invalid date-time", map[string]any{"errors": err.Error()})
	}

	ctx, cancel := h.context(c)
	defer cancel()

	res, err := h.market.TryBook(ctx, service.BookingRequest{
		ProductID: productID,
		RenterID:  callerID(c),
		Start:     start,
		End:       end,
	})
	if err != nil {
		return internalError(c)
	}
	if res.Rejected != nil {
		return rejectionResponse(c, res.Rejected)
	}

	b := res.Booking
	return successResponse(c, fiber.StatusCreated, res.Message, BookingHTTPResponse{
		BookingID: b.ID,
		ProductID: b.ProductID,
		RentStart: domain.FormatDateTime(b.Start),
		RentEnd:   domain.FormatDateTime(b.End),
		Units:     b.Units,
		Unit:      string(b.Unit),
		TotalRent: b.Total,
	})
}

func (h *HTTPHandler) Purchase(c *fiber.Ctx) error {
	productID, err := h.productID(c)
	if err != nil {
		return badRequest(c, "Invalid product ID", map[string]any{"product_id": productID})
	}
	ctx, cancel := h.context(c)
	defer cancel()

	res, err := h.market.TryPurchase(ctx, service.PurchaseRequest{ProductID: productID, BuyerID: callerID(c)})
	if err != nil {
		return internalError(c)
	}
	if res.Rejected != nil {
		return rejectionResponse(c, res.Rejected)
	}

	p := res.Purchase
	return successResponse(c, fiber.StatusCreated, res.Message, PurchaseHTTPResponse{
		PurchaseID:  p.ID,
		ProductID:   p.ProductID,
		BuyerID:     p.BuyerID,
		PurchasedAt: domain.FormatDateTime(p.PurchasedAt),
	})
}

func (h *HTTPHandler) Delete(c *fiber.Ctx) error {
	productID, err := h.productID(c)
	if err != nil {
		return badRequest(c, "Invalid product ID", map[string]any{"product_id": productID})
	}
	ctx, cancel := h.context(c)
	defer cancel()

	res, err := h.market.TryDelete(ctx, service.DeleteRequest{ProductID: productID, CallerID: callerID(c)})
	if err != nil {
		return internalError(c)
	}
	if res.Rejected != nil {
		return rejectionResponse(c, res.Rejected)
	}
	return successResponse(c, fiber.StatusOK, res.Message, nil)
}

// idempotent rejects a replayed Idempotency-Key for the same caller. The
// key is claimed before the operation runs and released again when the
// operation fails with a server error, so the caller may retry.
func (h *HTTPHandler) idempotent(c *fiber.Ctx) error {
	key := c.Get(idempotencyHeader)
	if key == "" || h.cache == nil {
		return c.Next()
	}

	scoped := callerID(c) + ":" + key
	ok, err := h.cache.SetIdempotency(c.UserContext(), scoped)
	if err != nil {
		// The cache is advisory; proceed without deduplication.
		h.log.Warn("idempotency check failed", zap.String("key", key), zap.Error(err))
		return c.Next()
	}
	if !ok {
		return errorResponse(c, fiber.StatusConflict, string(domain.ReasonDuplicateRequest), "duplicate request", nil)
	}

	err = c.Next()
	if err != nil || c.Response().StatusCode() >= fiber.StatusInternalServerError {
		if relErr := h.cache.ReleaseIdempotency(c.UserContext(), scoped); relErr != nil {
			h.log.Warn("idempotency release failed", zap.String("key", key), zap.Error(relErr))
		}
	}
	return err
}

func (h *HTTPHandler) productID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	return id, h.validate.Var(id, "required,max=64")
}

func (h *HTTPHandler) interval(rawStart, rawEnd string) (time.Time, time.Time, error) {
	loc := h.market.Location()
	start, err := domain.ParseDateTime(rawStart, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := domain.ParseDateTime(rawEnd, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (h *HTTPHandler) context(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.timeout)
}

func (h *HTTPHandler) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	h.log.Debug("http request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("latency", time.Since(start)),
		zap.String("request_id", getRequestID(c)))
	return err
}

func (h *HTTPHandler) errorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return errorResponse(c, e.Code, "HTTP_ERROR", e.Message, nil)
	}
	h.log.Error("unhandled http error", zap.String("path", c.Path()), zap.Error(err))
	return internalError(c)
}
