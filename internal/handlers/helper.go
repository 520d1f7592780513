package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const tokenKey = "token"

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := c.Param(param)
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
			Code:    CodeValidationFailed,
		})
		return ""
	}
	return idStr
}

// BearerAuth requires an Authorization: Bearer header. The token is not
// verified here; the portal rejects it when it is invalid.
func BearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
				Code:    CodeUnauthorized,
			})
			return
		}
		c.Set(tokenKey, token)
		c.Next()
	}
}

// GetToken returns the bearer token stored by BearerAuth
func GetToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
