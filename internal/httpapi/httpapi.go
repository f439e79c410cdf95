// Package httpapi exposes the REST surface of the chat server: credential
// auth, user and presence listings, and CRUD for rooms, conversations, and
// message history. Real-time delivery happens over the WebSocket layer; the
// HTTP surface only reads and writes through the storage gateway.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/auth"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/store"
)

// OnlineLister reports the ids of currently connected users. Satisfied by
// the WebSocket connection registry.
type OnlineLister interface {
	UserIDs() []string
}

// API bundles the handler dependencies.
type API struct {
	store  store.Store
	auth   *auth.Service
	online OnlineLister
}

// New creates the API. online may be nil, in which case the online-users
// endpoint reports an empty list.
func New(st store.Store, authSvc *auth.Service, online OnlineLister) *API {
	return &API{store: st, auth: authSvc, online: online}
}

// Register mounts every route under /api on the given router. All routes
// except register and login require a valid bearer token.
func (a *API) Register(r gin.IRouter) {
	api := r.Group("/api")

	api.POST("/auth/register", a.handleRegister)
	api.POST("/auth/login", a.handleLogin)

	authed := api.Group("", RequireAuth(a.auth))

	authed.POST("/auth/logout", a.handleLogout)
	authed.GET("/auth/user", a.handleCurrentUser)

	authed.GET("/users", a.handleListUsers)
	authed.GET("/users/online", a.handleOnlineUsers)

	authed.GET("/rooms", a.handleListRooms)
	authed.POST("/rooms", a.handleCreateRoom)
	authed.GET("/rooms/:roomId", a.handleGetRoom)
	authed.GET("/rooms/:roomId/members", a.handleRoomMembers)
	authed.POST("/rooms/:roomId/join", a.handleJoinRoom)
	authed.POST("/rooms/:roomId/leave", a.handleLeaveRoom)
	authed.GET("/rooms/:roomId/messages", a.handleRoomMessages)
	authed.POST("/rooms/:roomId/messages", a.handlePostRoomMessage)

	authed.GET("/conversations", a.handleListConversations)
	authed.POST("/conversations", a.handleCreateConversation)
	authed.GET("/conversations/:conversationId", a.handleGetConversation)
	authed.GET("/conversations/:conversationId/messages", a.handleConversationMessages)
	authed.POST("/conversations/:conversationId/messages", a.handlePostConversationMessage)
}
