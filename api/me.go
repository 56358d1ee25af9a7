package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/semanticallynull/carpool-backend/internal/middleware"
)

type meResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// meHandler returns the caller's profile so clients can prefill the
// passenger list. Profile lookup failures degrade to the bare user id.
func (a *API) meHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	resp := meResponse{ID: userID, Name: userID}
	token, hasToken := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if a.profiles == nil || !hasToken {
		c.JSON(http.StatusOK, resp)
		return
	}

	p, err := a.profiles.Profile(c.Request.Context(), token)
	if err != nil {
		logger.WarnContext(c, "failed to fetch profile", "error", err)
		c.JSON(http.StatusOK, resp)
		return
	}
	resp.Name = p.DisplayName()
	resp.Email = p.Email
	resp.Picture = p.Picture
	c.JSON(http.StatusOK, resp)
}
