package httpapi

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/store"
)

func (a *API) handleListConversations(c *gin.Context) {
	conversations, err := a.store.GetUserConversations(c.Request.Context(), MustUserID(c))
	if err != nil {
		log.Printf("httpapi: fetch conversations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch conversations"})
		return
	}
	c.JSON(http.StatusOK, conversations)
}

type createConversationRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

// handleCreateConversation finds or creates the conversation between the
// caller and the named participant. The same pair always resolves to the
// same conversation regardless of which side asks first.
func (a *API) handleCreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	userID := MustUserID(c)
	if req.ParticipantID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot start a conversation with yourself"})
		return
	}

	participant, err := a.store.GetUser(c.Request.Context(), req.ParticipantID)
	if err != nil {
		log.Printf("httpapi: fetch participant: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create conversation"})
		return
	}
	if participant == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}

	conversation, err := a.store.FindOrCreateConversation(c.Request.Context(), userID, req.ParticipantID)
	if err != nil {
		log.Printf("httpapi: find or create conversation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create conversation"})
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// getConversation resolves the :conversationId param for the calling user,
// writing the error response itself on failure. Non-participants get a 404,
// not a 403: the conversation's existence is itself private.
func (a *API) getConversation(c *gin.Context) *store.Conversation {
	conversation, err := a.store.GetConversation(c.Request.Context(), c.Param("conversationId"))
	if err != nil {
		log.Printf("httpapi: fetch conversation: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch conversation"})
		return nil
	}
	if conversation == nil || !conversation.HasParticipant(MustUserID(c)) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Conversation not found"})
		return nil
	}
	return conversation
}

func (a *API) handleGetConversation(c *gin.Context) {
	if conversation := a.getConversation(c); conversation != nil {
		c.JSON(http.StatusOK, conversation)
	}
}

func (a *API) handleConversationMessages(c *gin.Context) {
	conversation := a.getConversation(c)
	if conversation == nil {
		return
	}
	messages, err := a.store.GetConversationMessages(c.Request.Context(), conversation.ID, limitParam(c))
	if err != nil {
		log.Printf("httpapi: fetch conversation messages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (a *API) handlePostConversationMessage(c *gin.Context) {
	conversation := a.getConversation(c)
	if conversation == nil {
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	a.createMessage(c, store.NewMessage{
		Content:        req.Content,
		SenderID:       MustUserID(c),
		ConversationID: conversation.ID,
	})
}
