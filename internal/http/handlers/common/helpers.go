package common

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/team4job/marketplace-backend/internal/dto"
	"github.com/team4job/marketplace-backend/internal/http/middleware"
	"github.com/team4job/marketplace-backend/internal/models"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
)

// CurrentActor достаёт участника запроса, которого положил AuthMiddleware.
func CurrentActor(c *gin.Context) (models.Actor, error) {
	raw, exists := c.Get(middleware.ContextActorKey)
	if !exists {
		return models.Actor{}, apperror.ErrUnauthorized
	}
	actor, ok := raw.(models.Actor)
	if !ok {
		return models.Actor{}, apperror.ErrUnauthorized
	}
	return actor, nil
}

// OptionalActor возвращает nil для анонимного запроса.
func OptionalActor(c *gin.Context) *models.Actor {
	actor, err := CurrentActor(c)
	if err != nil {
		return nil
	}
	return &actor
}

// ParseUUIDParam parses UUID from URL parameter
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, apperror.New(apperror.ErrCodeBadRequest, fmt.Sprintf("параметр %s отсутствует", paramName))
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, apperror.New(apperror.ErrCodeBadRequest, "неверный формат UUID")
	}

	return parsed, nil
}

// BindAndValidate binds JSON request and returns properly formatted error
func BindAndValidate(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeBadRequest, "некорректное тело запроса")
	}
	return nil
}

// RequireID проверяет, что идентификатор в теле запроса передан.
func RequireID(id uuid.UUID, field string) error {
	if id == uuid.Nil {
		return apperror.Validation("поле %s обязательно", field)
	}
	return nil
}

// RespondError sends a standardized error response
func RespondError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}

// RespondOK sends a standardized success response
func RespondOK(c *gin.Context, data interface{}) {
	RespondJSON(c, http.StatusOK, data)
}

// RespondCreated отвечает 201 с данными созданной сущности.
func RespondCreated(c *gin.Context, data interface{}) {
	RespondJSON(c, http.StatusCreated, data)
}

// RespondJSON sends an envelope with the given status code and data
func RespondJSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, dto.Envelope{Success: true, Data: data})
}

// ParseIntQuery safely reads an integer query parameter with a fallback value
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// GetPagination extracts limit and offset from query parameters with defaults
func GetPagination(c *gin.Context) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", 20)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
