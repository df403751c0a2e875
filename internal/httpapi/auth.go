package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/GrandCafeLabs/tablebook/pkg/tablebook"
)

const contextKeyGuestID = "guest_id"

// issueSessionToken signs an HS256 JWT with the guest id as subject.
func issueSessionToken(cfg Config, guestID tablebook.GuestID, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": int64(guestID),
		"iss": cfg.SessionIssuer,
		"iat": now.Unix(),
		"exp": now.Add(cfg.SessionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.SessionSigningKey))
}

// sessionMiddleware validates a Bearer token and stores the guest id in
// the request context.
func sessionMiddleware(cfg Config) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
			}
			return []byte(cfg.SessionSigningKey), nil
		}, jwt.WithIssuer(cfg.SessionIssuer))
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid token"))
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid claims"))
			return
		}
		subject, ok := claims["sub"].(float64)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid subject"))
			return
		}
		ctx.Set(contextKeyGuestID, tablebook.GuestID(int64(subject)))
		ctx.Next()
	}
}

func guestIDFrom(ctx *gin.Context) (tablebook.GuestID, bool) {
	value, exists := ctx.Get(contextKeyGuestID)
	if !exists {
		return 0, false
	}
	guestID, ok := value.(tablebook.GuestID)
	return guestID, ok
}
