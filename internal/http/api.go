package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-profile/internal/auth"
	"user-profile/internal/domain"
	"user-profile/internal/login"
	"user-profile/internal/metrics"
	"user-profile/internal/service"
	"user-profile/internal/webservice"
)

const claimsKey = "auth.claims"

// Handler wires HTTP routes to domain services.
type Handler struct {
	users       service.UserService
	login       *login.DataSource
	issuer      *auth.Issuer
	metrics     *metrics.Metrics
	waitTimeout time.Duration
	logger      *logrus.Logger
}

type Options struct {
	Users       service.UserService
	Login       *login.DataSource
	Issuer      *auth.Issuer
	Metrics     *metrics.Metrics
	WaitTimeout time.Duration
	Logger      *logrus.Logger
}

func NewHandler(opts Options) *Handler {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Handler{
		users:       opts.Users,
		login:       opts.Login,
		issuer:      opts.Issuer,
		metrics:     opts.Metrics,
		waitTimeout: opts.WaitTimeout,
		logger:      opts.Logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.Use(requestLogger(h.logger))

	if h.metrics != nil {
		h.metrics.Register(router)
	}

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
		api.POST("/login", h.loginUser)
		api.POST("/logout", h.logoutUser)

		users := api.Group("/users", h.requireAuth())
		users.GET("", h.listRecent)
		users.GET("/:id", h.getUser)
		users.GET("/:id/live", h.getLiveUser)
		users.POST("/:id/refresh", h.refreshUser)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token"`
	ExpiresAt   string `json:"expires_at"`
}

type UserResponse struct {
	ID        string  `json:"id"`
	Login     string  `json:"login,omitempty"`
	Name      string  `json:"name,omitempty"`
	Company   string  `json:"company,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Bio       string  `json:"bio,omitempty"`
	FetchedAt *string `json:"fetched_at,omitempty"`
	Stale     bool    `json:"stale,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("request handled")
	}
}

func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := h.issuer.Parse(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func (h *Handler) loginUser(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.login.Login(req.Username, req.Password)
	if err != nil {
		h.logger.Errorf("login: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	token, expiresAt, err := h.issuer.Issue(user.UserID, user.DisplayName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
		Token:       token,
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	h.login.Logout()
	c.Status(http.StatusNoContent)
}

func (h *Handler) getUser(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.waitTimeout)
	defer cancel()

	res, err := h.users.LoadUser(id).WaitFor(ctx, domain.Resource[*domain.User].Done)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "user not loaded in time"})
		return
	}

	if res.Status == domain.ResourceSuccess {
		c.JSON(http.StatusOK, userToResponse(res.Data))
		return
	}

	if res.Data != nil {
		resp := userToResponse(res.Data)
		resp.Stale = true
		resp.Error = res.Err.Error()
		c.JSON(http.StatusOK, resp)
		return
	}

	switch {
	case errors.Is(res.Err, webservice.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": res.Err.Error()})
	case errors.Is(res.Err, service.ErrInvalidUserID):
		c.JSON(http.StatusBadRequest, gin.H{"error": res.Err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": res.Err.Error()})
	}
}

func (h *Handler) getLiveUser(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.waitTimeout)
	defer cancel()

	user, err := h.users.GetUser(id).Wait(ctx)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "user not available"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, userToResponse(user))
}

func (h *Handler) refreshUser(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := h.users.RefreshUser(id); err != nil {
		if errors.Is(err, service.ErrInvalidUserID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"refreshing": id})
}

func (h *Handler) listRecent(c *gin.Context) {
	since := time.Now().Add(-domain.FreshTimeout)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since, expected RFC3339"})
			return
		}
		since = parsed
	}

	users, err := h.users.ListRecent(c.Request.Context(), since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(&users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func userToResponse(user *domain.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID,
		Login:     user.Login,
		Name:      user.Name,
		Company:   user.Company,
		AvatarURL: user.AvatarURL,
		Bio:       user.Bio,
	}
	if !user.FetchedAt.IsZero() {
		v := user.FetchedAt.UTC().Format(time.RFC3339)
		resp.FetchedAt = &v
	}
	return resp
}
