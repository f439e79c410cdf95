package httpapi

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/store"
)

func (a *API) handleListRooms(c *gin.Context) {
	rooms, err := a.store.GetUserRooms(c.Request.Context(), MustUserID(c))
	if err != nil {
		log.Printf("httpapi: fetch rooms: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch rooms"})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

type createRoomRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

// handleCreateRoom creates the room and makes the creator its first member.
func (a *API) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	userID := MustUserID(c)
	room, err := a.store.CreateRoom(c.Request.Context(), store.NewRoom{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   req.IsPrivate,
		CreatedByID: userID,
	})
	if err != nil {
		log.Printf("httpapi: create room: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create room"})
		return
	}

	if err := a.store.AddRoomMember(c.Request.Context(), room.ID, userID); err != nil {
		log.Printf("httpapi: add creator to room %s: %v", room.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create room"})
		return
	}

	c.JSON(http.StatusCreated, room)
}

// getRoom resolves the :roomId param, writing the error response itself when
// the room does not exist.
func (a *API) getRoom(c *gin.Context) *store.Room {
	room, err := a.store.GetRoom(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		log.Printf("httpapi: fetch room: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch room"})
		return nil
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Room not found"})
		return nil
	}
	return room
}

func (a *API) handleGetRoom(c *gin.Context) {
	if room := a.getRoom(c); room != nil {
		c.JSON(http.StatusOK, room)
	}
}

func (a *API) handleRoomMembers(c *gin.Context) {
	room := a.getRoom(c)
	if room == nil {
		return
	}
	members, err := a.store.GetRoomMembers(c.Request.Context(), room.ID)
	if err != nil {
		log.Printf("httpapi: fetch room members: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch room members"})
		return
	}
	c.JSON(http.StatusOK, members)
}

func (a *API) handleJoinRoom(c *gin.Context) {
	room := a.getRoom(c)
	if room == nil {
		return
	}
	if err := a.store.AddRoomMember(c.Request.Context(), room.ID, MustUserID(c)); err != nil {
		log.Printf("httpapi: join room %s: %v", room.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to join room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *API) handleLeaveRoom(c *gin.Context) {
	if err := a.store.RemoveRoomMember(c.Request.Context(), c.Param("roomId"), MustUserID(c)); err != nil {
		log.Printf("httpapi: leave room %s: %v", c.Param("roomId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to leave room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *API) handleRoomMessages(c *gin.Context) {
	room := a.getRoom(c)
	if room == nil {
		return
	}
	messages, err := a.store.GetRoomMessages(c.Request.Context(), room.ID, limitParam(c))
	if err != nil {
		log.Printf("httpapi: fetch room messages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

type postMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (a *API) handlePostRoomMessage(c *gin.Context) {
	room := a.getRoom(c)
	if room == nil {
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	a.createMessage(c, store.NewMessage{
		Content:  req.Content,
		SenderID: MustUserID(c),
		RoomID:   room.ID,
	})
}

// createMessage persists a message and responds with the hydrated form, the
// same shape WebSocket clients receive.
func (a *API) createMessage(c *gin.Context, msg store.NewMessage) {
	created, err := a.store.CreateMessage(c.Request.Context(), msg)
	if err != nil {
		log.Printf("httpapi: create message: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create message"})
		return
	}
	hydrated, err := a.store.GetMessage(c.Request.Context(), created.ID)
	if err != nil || hydrated == nil {
		log.Printf("httpapi: hydrate message %s: %v", created.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create message"})
		return
	}
	c.JSON(http.StatusCreated, hydrated)
}

// limitParam reads the optional ?limit= query parameter; 0 lets the storage
// layer apply its default.
func limitParam(c *gin.Context) int {
	v := c.Query("limit")
	if v == "" {
		return 0
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
