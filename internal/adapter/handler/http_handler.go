package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rl1809/inventory/internal/core/domain"
	"github.com/rl1809/inventory/internal/core/service"
)

const requestIDHeader = "X-Request-ID"

type HTTPHandler struct {
	coordinator       *service.Coordinator
	logger            zerolog.Logger
	lowStockThreshold int
}

func NewHTTPHandler(coordinator *service.Coordinator, logger zerolog.Logger, lowStockThreshold int) *HTTPHandler {
	return &HTTPHandler{
		coordinator:       coordinator,
		logger:            logger.With().Str("component", "http").Logger(),
		lowStockThreshold: lowStockThreshold,
	}
}

// NewRouter builds the gin engine with recovery, request logging and every route registered.
func NewRouter(h *HTTPHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.logger))
	h.Register(r)
	return r
}

func (h *HTTPHandler) Register(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")

	products := api.Group("/products")
	products.GET("", h.ListProducts)
	products.GET("/:code", h.GetProduct)
	products.POST("", h.CreateProduct)
	products.PUT("/:code", h.UpdateProduct)
	products.DELETE("/:code", h.DeleteProduct)

	suppliers := api.Group("/suppliers")
	suppliers.GET("", h.ListSuppliers)
	suppliers.GET("/:taxId", h.GetSupplier)
	suppliers.POST("", h.CreateSupplier)
	suppliers.PUT("/:taxId", h.UpdateSupplier)
	suppliers.DELETE("/:taxId", h.DeleteSupplier)

	transactions := api.Group("/transactions")
	transactions.GET("", h.ListTransactions)
	transactions.POST("", h.CreateTransaction)
	transactions.GET("/filter", h.FilterTransactions)
	transactions.GET("/report", h.FilterTransactions)
	transactions.GET("/:id", h.GetTransaction)

	reports := api.Group("/reports")
	reports.GET("/low-stock", h.LowStock)
	reports.GET("/low-stock/:threshold", h.LowStock)
	reports.GET("/valuation", h.Valuation)
	reports.GET("/near-expiry", h.NearExpiry)
	reports.GET("/inventory.xlsx", h.ExportWorkbook)

	api.POST("/snapshot", h.SaveSnapshot)
}

// RequestLogger tags each request with an id, reusing the caller's X-Request-ID when present,
// and logs one line once the request completes.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		c.Next()

		status := c.Writer.Status()
		event := logger.Info()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	if err := h.coordinator.CheckStore(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) ListProducts(c *gin.Context) {
	c.JSON(http.StatusOK, h.coordinator.ListProducts())
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	p, ok := h.coordinator.FindProduct(c.Param("code"))
	if !ok {
		writeError(c, service.ErrProductNotFound)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *HTTPHandler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Join(service.ErrInvalidProduct, err))
		return
	}

	product, err := req.toProduct()
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.coordinator.RegisterProduct(c.Request.Context(), product); err != nil {
		writeError(c, err)
		return
	}

	created, _ := h.coordinator.FindProduct(product.Code)
	c.JSON(http.StatusCreated, created)
}

func (h *HTTPHandler) UpdateProduct(c *gin.Context) {
	existing, ok := h.coordinator.FindProduct(c.Param("code"))
	if !ok {
		writeError(c, service.ErrProductNotFound)
		return
	}

	var req ProductUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Join(service.ErrInvalidProduct, err))
		return
	}
	req.applyTo(&existing)

	if err := h.coordinator.UpdateProduct(c.Request.Context(), existing); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, existing)
}

func (h *HTTPHandler) DeleteProduct(c *gin.Context) {
	if !h.coordinator.RemoveProduct(c.Param("code")) {
		writeError(c, service.ErrProductNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ListSuppliers(c *gin.Context) {
	c.JSON(http.StatusOK, h.coordinator.ListSuppliers())
}

func (h *HTTPHandler) GetSupplier(c *gin.Context) {
	s, ok := h.coordinator.FindSupplier(c.Param("taxId"))
	if !ok {
		writeError(c, service.ErrSupplierNotFound)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *HTTPHandler) CreateSupplier(c *gin.Context) {
	var s domain.Supplier
	if err := c.ShouldBindJSON(&s); err != nil {
		writeError(c, errors.Join(service.ErrInvalidSupplier, err))
		return
	}
	if err := h.coordinator.RegisterSupplier(c.Request.Context(), s); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *HTTPHandler) UpdateSupplier(c *gin.Context) {
	taxID := c.Param("taxId")
	if _, ok := h.coordinator.FindSupplier(taxID); !ok {
		writeError(c, service.ErrSupplierNotFound)
		return
	}

	var s domain.Supplier
	if err := c.ShouldBindJSON(&s); err != nil {
		writeError(c, errors.Join(service.ErrInvalidSupplier, err))
		return
	}
	s.TaxID = taxID

	if err := h.coordinator.RegisterSupplier(c.Request.Context(), s); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *HTTPHandler) DeleteSupplier(c *gin.Context) {
	if !h.coordinator.RemoveSupplier(c.Param("taxId")) {
		writeError(c, service.ErrSupplierNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ListTransactions(c *gin.Context) {
	c.JSON(http.StatusOK, h.coordinator.ListTransactions())
}

func (h *HTTPHandler) GetTransaction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, errors.Join(service.ErrInvalidTransaction, err))
		return
	}

	t, ok := h.coordinator.FindTransaction(id)
	if !ok {
		writeError(c, service.ErrTransactionNotFound)
		return
	}
	c.JSON(http.StatusOK, t)
}

// CreateTransaction answers 409 when an EXIT was refused for lack of stock. The
// transaction is still recorded and returned in the body.
func (h *HTTPHandler) CreateTransaction(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Join(service.ErrInvalidTransaction, err))
		return
	}

	t, err := req.toTransaction()
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.coordinator.ProcessTransaction(c.Request.Context(), t)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if !result.Applied {
		status = http.StatusConflict
	}
	c.JSON(status, TransactionResponse{
		Transaction: result.Transaction,
		Stock:       result.Stock,
		Applied:     result.Applied,
	})
}

func (h *HTTPHandler) FilterTransactions(c *gin.Context) {
	f, err := parseFilter(c.Query("kind"), c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, errors.Join(service.ErrInvalidTransaction, err))
		return
	}
	c.JSON(http.StatusOK, h.coordinator.FilterTransactions(f))
}

func (h *HTTPHandler) LowStock(c *gin.Context) {
	threshold := h.lowStockThreshold
	if raw := c.Param("threshold"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "threshold must be an integer"})
			return
		}
		threshold = n
	}
	c.JSON(http.StatusOK, h.coordinator.LowStock(threshold))
}

func (h *HTTPHandler) Valuation(c *gin.Context) {
	c.JSON(http.StatusOK, ValuationResponse{
		Total: h.coordinator.TotalValuation(),
		AsOf:  domain.CalendarDate(h.coordinator.Today()).Format(dateLayout),
	})
}

func (h *HTTPHandler) NearExpiry(c *gin.Context) {
	c.JSON(http.StatusOK, h.coordinator.NearExpiry())
}

func (h *HTTPHandler) SaveSnapshot(c *gin.Context) {
	if err := h.coordinator.SaveSnapshot(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "saved"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidProduct),
		errors.Is(err, service.ErrInvalidSupplier),
		errors.Is(err, service.ErrInvalidTransaction),
		errors.Is(err, service.ErrProductExpired):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrSupplierNotFound),
		errors.Is(err, service.ErrTransactionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateProduct):
		return http.StatusConflict
	case errors.Is(err, service.ErrStore):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrSnapshot):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
