package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"recordsdesk/internal/middleware"
	"recordsdesk/internal/models"
	"recordsdesk/internal/services"
)

type AuthHandler struct {
	authService  services.AuthService
	entitlements services.Entitlements
	actors       ActorResolver
	secret       []byte
	ttl          time.Duration
}

func NewAuthHandler(authService services.AuthService, entitlements services.Entitlements, actors ActorResolver, secret []byte, ttl time.Duration) *AuthHandler {
	return &AuthHandler{authService: authService, entitlements: entitlements, actors: actors, secret: secret, ttl: ttl}
}

// @Summary      Log in
// @Description  Checks the credentials and returns a bearer token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	start := time.Now()

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[auth][login] bad request: bind json failed: err=%v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	username := strings.TrimSpace(req.Username)

	user, err := h.authService.Authenticate(c.Request.Context(), username, req.Password)
	if err != nil {
		log.Printf("[auth][login] rejected username=%q: err=%v", username, err)
		respondError(c, err)
		return
	}

	token, exp, err := middleware.IssueToken(h.secret, user.ID, user.RoleID, h.ttl)
	if err != nil {
		log.Printf("[auth][login] sign token failed for userID=%d: err=%v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate access token"})
		return
	}
	log.Printf("[auth][login] success userID=%d role=%d took=%s", user.ID, user.RoleID, time.Since(start).Truncate(time.Millisecond))

	c.JSON(http.StatusOK, gin.H{
		"user":         user,
		"access_token": token,
		"expires_at":   exp.UTC(),
	})
}

// GET /me
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorOf(c, h.actors)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, actor)
}

// @Summary      Create an account
// @Description  Staff only. Agency accounts must name their agency.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        user  body      services.NewUserInput  true  "Account"
// @Success      201   {object}  models.User
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /users [post]
func (h *AuthHandler) CreateUser(c *gin.Context) {
	actor, ok := actorOf(c, h.actors)
	if !ok {
		return
	}
	var in services.NewUserInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.authService.CreateUser(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// POST /users/:user_id/entitlements
func (h *AuthHandler) Grant(c *gin.Context) {
	actor, ok := actorOf(c, h.actors)
	if !ok {
		return
	}
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	var in services.GrantInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.entitlements.Grant(c.Request.Context(), actor, userID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
