package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Password string `json:"password"`
}

// loginHandler exchanges the admin password for the bearer token.
// Method: POST /api/login
// Access: Public
func (a *App) loginHandler(c *gin.Context) {
	var req loginRequest
	// malformed bodies are treated as an empty password
	_ = c.ShouldBindJSON(&req)

	if req.Password == "" || !a.auth.CheckPassword(req.Password) {
		a.metrics.loginAttempts.WithLabelValues("rejected").Inc()
		a.log.Warn("admin login rejected", "ip", c.ClientIP())
		writeAPIError(c, errInvalidCredentials)
		return
	}

	a.metrics.loginAttempts.WithLabelValues("accepted").Inc()
	c.JSON(http.StatusOK, gin.H{"token": a.auth.IssueToken(req.Password)})
}
