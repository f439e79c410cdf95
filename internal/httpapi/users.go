package httpapi

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) handleListUsers(c *gin.Context) {
	users, err := a.store.GetAllUsers(c.Request.Context())
	if err != nil {
		log.Printf("httpapi: fetch users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// handleOnlineUsers serves the live connection registry, not storage: the
// persisted status column lags behind on unclean disconnects.
func (a *API) handleOnlineUsers(c *gin.Context) {
	ids := []string{}
	if a.online != nil {
		ids = a.online.UserIDs()
	}
	c.JSON(http.StatusOK, ids)
}
