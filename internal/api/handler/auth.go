package handler

import (
	"net/http"
	"strings"
	"time"

	"civicpulse/backend/internal/models"
	"civicpulse/backend/internal/storage"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const actorContextKey = "actor"

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates an authority user and issues a 12h JWT carrying
// the role and the user's state/city scope.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	user, err := h.Storage.GetAuthorityUserByEmail(req.Email)
	if err != nil {
		// Same answer for unknown email and bad password.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	claims := jwt.MapClaims{
		"sub":   user.ID,
		"role":  "authority_admin",
		"state": user.State,
		"city":  user.City,
		"exp":   time.Now().Add(12 * time.Hour).Unix(),
		"iss":   "civicpulse-service",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.Cfg.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": signed,
		"user": gin.H{
			"email": user.Email,
			"name":  user.Name,
			"role":  "authority_admin",
		},
	})
}

// RequireAuthority validates the bearer token and stores the Actor in
// the request context for the action handlers.
func (h *Handler) RequireAuthority() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(h.Cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			return
		}
		role, _ := claims["role"].(string)
		if role != "authority_admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
			return
		}

		actor := models.Actor{Role: role}
		actor.ID, _ = claims["sub"].(string)
		actor.State, _ = claims["state"].(string)
		actor.City, _ = claims["city"].(string)
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// actorFrom returns the authenticated Actor stored by RequireAuthority.
func actorFrom(c *gin.Context) models.Actor {
	v, _ := c.Get(actorContextKey)
	actor, _ := v.(models.Actor)
	return actor
}

// scopedFilter applies the actor's default scope when the query does
// not name one explicitly.
func scopedFilter(c *gin.Context, actor models.Actor) storage.ComplaintFilter {
	f := filterFromQuery(c)
	if f.State == "" {
		f.State = actor.State
	}
	if f.City == "" {
		f.City = actor.City
	}
	return f
}
