package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "userID"
	ContextActorKey  = "actor"
)

// AccessTokenParser проверяет bearer токен и возвращает участника запроса.
type AccessTokenParser interface {
	ParseAccess(token string) (models.Actor, error)
}

// AuthMiddleware проверяет JWT access токен.
func AuthMiddleware(tokens AccessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			AbortWithError(c, apperror.ErrUnauthorized)
			return
		}

		actor, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			AbortWithError(c, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "токен невалиден"))
			return
		}

		c.Set(ContextUserIDKey, actor.ID)
		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// OptionalAuth разбирает токен, если он передан, но не требует его.
// Публичные страницы заказов показывают владельцу черновики и код начала работ.
func OptionalAuth(tokens AccessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			if actor, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer ")); err == nil {
				c.Set(ContextUserIDKey, actor.ID)
				c.Set(ContextActorKey, actor)
			}
		}
		c.Next()
	}
}

// RequireRole пропускает участника, у которого есть хотя бы одна из ролей.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := c.Get(ContextActorKey)
		actor, isActor := raw.(models.Actor)
		if !ok || !isActor {
			AbortWithError(c, apperror.ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if actor.Roles.Has(role) {
				c.Next()
				return
			}
		}
		AbortWithError(c, apperror.ErrForbidden)
	}
}

// RequireStaff администратор или поддержка.
func RequireStaff() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, models.RoleSupportTeam)
}
