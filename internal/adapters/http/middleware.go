package http

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mavprep/voice/internal/adapters/auth"
	"github.com/mavprep/voice/internal/adapters/signal"
	"github.com/mavprep/voice/internal/domain"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "client_token"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware gives every browser a stable anonymous token kept in
// the session cookie.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// IdentityMiddleware resolves the caller's identity. With no verifier every
// caller is anonymous; otherwise a valid bearer token is required, taken from
// the Authorization header or the token query parameter.
func IdentityMiddleware(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			c.Set(signal.IdentityKey, domain.Identity{})
			c.Next()
			return
		}
		raw := c.GetHeader("Authorization")
		if raw == "" {
			raw = c.Query("token")
		}
		id, err := v.Verify(raw)
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("unauthorized")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(signal.IdentityKey, id)
		c.Next()
	}
}

func identityOf(c *gin.Context) domain.Identity {
	v, _ := c.Get(signal.IdentityKey)
	id, _ := v.(domain.Identity)
	return id
}
