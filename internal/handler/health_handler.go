package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health 是存活检查接口，固定返回 OK。
func Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
