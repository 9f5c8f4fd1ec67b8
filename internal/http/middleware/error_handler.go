package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/team4job/marketplace-backend/internal/dto"
	"github.com/team4job/marketplace-backend/internal/logger"
	"github.com/team4job/marketplace-backend/internal/pkg/apperror"
)

// ErrorHandler отвечает за ошибки, добавленные через c.Error, если обработчик сам не ответил.
// Статус, выставленный обработчиком без тела (c.Status), считается ответом.
// Внутренние ошибки маскируются, клиент видит только общий текст.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || c.Writer.Status() != http.StatusOK || len(c.Errors) == 0 {
			return
		}
		WriteError(c, c.Errors.Last().Err)
	}
}

// WriteError переводит ошибку в HTTP статус и конверт ответа.
func WriteError(c *gin.Context, err error) {
	appErr := apperror.From(err)
	if appErr.Code == apperror.ErrCodeInternal {
		logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Request error")
	}

	c.JSON(appErr.HTTPStatus, dto.Envelope{
		Success: false,
		Error:   apperror.PublicMessage(appErr),
		Code:    string(appErr.Code),
	})
}

// AbortWithError отвечает ошибкой и прерывает цепочку.
func AbortWithError(c *gin.Context, err error) {
	WriteError(c, err)
	c.Abort()
}
