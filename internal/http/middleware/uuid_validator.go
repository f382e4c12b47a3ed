package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/auction-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: router.GET("/auctions/:id", UUIDValidator("id"), handler.GetAuction)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		if idStr == "" {
			abortBadParam(c, paramName)
			return
		}

		if _, err := uuid.Parse(idStr); err != nil {
			abortBadParam(c, paramName)
			return
		}

		c.Next()
	}
}

func abortBadParam(c *gin.Context, paramName string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": gin.H{
			"code": apperror.ErrCodeValidation,
			"message": apperror.Message{
				AR: "معرف غير صالح: " + paramName,
				EN: "Parameter " + paramName + " must be a valid UUID",
			},
		},
	})
}
