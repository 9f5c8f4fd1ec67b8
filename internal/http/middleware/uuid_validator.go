package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметры с указанными именами являются валидными UUID.
// Использование: jobs.GET("/:id", UUIDValidator("id"), handler.GetJob)
func UUIDValidator(paramNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range paramNames {
			raw := c.Param(name)
			if raw == "" {
				AbortWithError(c, apperror.New(apperror.ErrCodeBadRequest, "параметр "+name+" обязателен"))
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				AbortWithError(c, apperror.New(apperror.ErrCodeBadRequest, "параметр "+name+" должен быть валидным UUID"))
				return
			}
		}
		c.Next()
	}
}
