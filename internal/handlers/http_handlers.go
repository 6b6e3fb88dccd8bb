package handlers

import (
	"errors"
	"net/http"
	"time"

	"spinwheel/internal/metrics"
	"spinwheel/internal/models"
	"spinwheel/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/shopspring/decimal"
)

// HTTPHandler holds the dependencies for the HTTP handlers, like the wheel service.
type HTTPHandler struct {
	service *services.WheelService
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.WheelService) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// RegisterPublicRoutes registers routes that are not scoped to a restaurant.
func (h *HTTPHandler) RegisterPublicRoutes(router gin.IRouter) {
	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/participations/:id", h.GetParticipation)
	router.POST("/participations/:id/spin", h.Spin)
}

// RegisterRestaurantRoutes registers routes scoped to one restaurant. The
// RestaurantMiddleware is applied to each group.
func (h *HTTPHandler) RegisterRestaurantRoutes(router gin.IRouter) {
	public := router.Group("/r/:slug", h.RestaurantMiddleware())
	public.GET("", h.ShowWheel)
	public.POST("/participations", h.EnterParticipation)

	staff := router.Group("/staff/restaurants/:rid", h.RestaurantMiddleware())
	staff.GET("/claims", h.FindClaims)
	staff.POST("/claims/:pid/confirm", h.ConfirmClaim)

	admin := router.Group("/admin/restaurants/:rid", h.RestaurantMiddleware())
	admin.GET("/prizes", h.ListPrizes)
	admin.POST("/prizes", h.CreatePrize)
	admin.PUT("/prizes/:id", h.UpdatePrize)
	admin.PATCH("/prizes/:id/active", h.SetPrizeActive)
}

func restaurantFrom(c *gin.Context) *models.Restaurant {
	return c.MustGet(restaurantKey).(*models.Restaurant)
}

// Health answers liveness probes.
func (h *HTTPHandler) Health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "up"})
}

// ShowWheel returns the restaurant and the segments of its wheel.
func (h *HTTPHandler) ShowWheel(c *gin.Context) {
	r := restaurantFrom(c)
	table, err := h.service.GetPrizeTable(c.Request.Context(), r.ID)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"restaurant": r,
		"segments":   table.Segments(),
		"loseWeight": table.LoseWeight(),
	})
}

type entryRequest struct {
	Phone       string `json:"phone"`
	Email       string `json:"email" binding:"omitempty,email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	City        string `json:"city"`
	AgeRange    string `json:"ageRange"`
	GDPRConsent bool   `json:"gdprConsent"`
}

// EnterParticipation handles the customer form submitted before the spin.
func (h *HTTPHandler) EnterParticipation(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.service.EnterParticipation(c.Request.Context(), restaurantFrom(c).ID, services.EntryForm{
		Phone:       req.Phone,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		City:        req.City,
		AgeRange:    req.AgeRange,
		GDPRConsent: req.GDPRConsent,
	})
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// GetParticipation returns a participation and its current status.
func (h *HTTPHandler) GetParticipation(c *gin.Context) {
	p, err := h.service.GetParticipation(c.Request.Context(), c.Param("id"))
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// Spin resolves the wheel for a participation. Replaying a spin (double
// click, client retry) returns the stored outcome with "replayed": true.
func (h *HTTPHandler) Spin(c *gin.Context) {
	res, err := h.service.ResolveSpin(c.Request.Context(), c.Param("id"))
	replayed := errors.Is(err, services.ErrAlreadyResolved)
	if err != nil && !replayed {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"participation": res.Participation,
		"prize":         res.Prize,
		"claimCode":     res.ClaimCode,
		"expiresAt":     res.ExpiresAt,
		"won":           res.Prize != nil,
		"replayed":      replayed,
	})
}

// FindClaims looks up pending prizes by ?code=, ?phone=, ?email= or a free
// text ?q= search.
func (h *HTTPHandler) FindClaims(c *gin.Context) {
	var (
		key services.LookupKey
		err error
	)
	switch {
	case c.Query("code") != "":
		key, err = services.NewLookupKey(services.LookupCode, c.Query("code"))
	case c.Query("phone") != "":
		key, err = services.NewLookupKey(services.LookupPhone, c.Query("phone"))
	case c.Query("email") != "":
		key, err = services.NewLookupKey(services.LookupEmail, c.Query("email"))
	default:
		key, err = services.ParseLookupKey(c.Query("q"))
	}
	if err != nil {
		failWith(c, err)
		return
	}

	found, err := h.service.RedeemClaim(c.Request.Context(), restaurantFrom(c).ID, key)
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"lookup": key.Kind, "participations": found})
}

// ConfirmClaim marks a prize as handed over by staff. A prize that was
// already handed over answers 409 with the original claim time.
func (h *HTTPHandler) ConfirmClaim(c *gin.Context) {
	r := restaurantFrom(c)
	claimedAt, err := h.service.ConfirmRedemption(c.Request.Context(), r.ID, c.Param("pid"))
	data := gin.H{"participationId": c.Param("pid"), "claimedAt": claimedAt.Format(time.RFC3339)}
	if errors.Is(err, services.ErrAlreadyClaimed) && !claimedAt.IsZero() {
		failWithData(c, err, data)
		return
	}
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, data)
}

// ListPrizes returns every prize of the restaurant with the current total.
func (h *HTTPHandler) ListPrizes(c *gin.Context) {
	r := restaurantFrom(c)
	prizes, err := h.service.ListPrizes(c.Request.Context(), r.ID)
	if err != nil {
		failWith(c, err)
		return
	}
	total := decimal.Zero
	for _, p := range prizes {
		if p.IsActive {
			total = total.Add(p.Percentage)
		}
	}
	ok(c, http.StatusOK, gin.H{"prizes": prizes, "activeTotal": total})
}

type prizeRequest struct {
	Name       string          `json:"name" binding:"required"`
	Percentage decimal.Decimal `json:"percentage"`
	Message    string          `json:"message"`
	IsActive   *bool           `json:"isActive"`
}

func (req prizeRequest) input() services.PrizeInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return services.PrizeInput{Name: req.Name, Percentage: req.Percentage, Message: req.Message, IsActive: active}
}

// CreatePrize adds a prize. Configurations above 100% are rejected with 422.
func (h *HTTPHandler) CreatePrize(c *gin.Context) {
	var req prizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.service.CreatePrize(c.Request.Context(), restaurantFrom(c).ID, req.input())
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// UpdatePrize replaces the editable fields of a prize.
func (h *HTTPHandler) UpdatePrize(c *gin.Context) {
	var req prizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.service.UpdatePrize(c.Request.Context(), restaurantFrom(c).ID, c.Param("id"), req.input())
	if err != nil {
		failWith(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// SetPrizeActive switches a prize on or off.
func (h *HTTPHandler) SetPrizeActive(c *gin.Context) {
	var req struct {
		IsActive *bool `json:"isActive" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.service.SetPrizeActive(c.Request.Context(), restaurantFrom(c).ID, c.Param("id"), *req.IsActive)
	if err != nil {
		failWith(c, err)
		return
	}
	logger.Infof("prize %s active=%t", p.ID, p.IsActive)
	ok(c, http.StatusOK, p)
}
