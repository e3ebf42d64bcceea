package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"
)

// HeaderAdminToken carries the admin token when no bearer header is sent.
const HeaderAdminToken = "X-Admin-Token"

// AdminAuth guards admin routes with a bcrypt hash of a shared token. With
// no hash configured the routes do not exist and every request gets 404.
func AdminAuth(tokenHash string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	hash := []byte(strings.TrimSpace(tokenHash))
	if len(hash) > 0 {
		if _, err := bcrypt.Cost(hash); err != nil {
			logger.Warn("Admin token hash is not a bcrypt hash, admin routes disabled", zap.Error(err))
			hash = nil
		}
	}

	return func(c *gin.Context) {
		if len(hash) == 0 {
			abortJSON(c, http.StatusNotFound, "Not found")
			return
		}
		token := adminToken(c.Request)
		if token == "" || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
			logger.Warn("Rejected admin request",
				zap.String("path", c.FullPath()),
				zap.String("client", c.ClientIP()))
			abortJSON(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}

func adminToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get(HeaderAdminToken))
}

// HashToken returns the bcrypt hash to configure for token.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
