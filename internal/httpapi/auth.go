package httpapi

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/auth"
	"github.com/Dhrumil2006/Real-Time-Chat-Application/internal/store"
)

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (a *API) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("httpapi: hash password: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to register"})
		return
	}

	user, err := a.store.CreateUser(c.Request.Context(), req.Email, hash, req.FirstName, req.LastName)
	if err == store.ErrDuplicateEmail {
		c.JSON(http.StatusConflict, gin.H{"message": "Email already registered"})
		return
	}
	if err != nil {
		log.Printf("httpapi: create user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to register"})
		return
	}

	token, err := a.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("httpapi: issue token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to register"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (a *API) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	user, err := a.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		log.Printf("httpapi: login lookup: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to log in"})
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Wrong email or password"})
		return
	}

	token, err := a.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("httpapi: issue token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to log in"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (a *API) handleLogout(c *gin.Context) {
	token := c.MustGet(ctxToken).(string)
	if err := a.auth.Revoke(c.Request.Context(), token); err != nil {
		log.Printf("httpapi: revoke token: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *API) handleCurrentUser(c *gin.Context) {
	user, err := a.store.GetUser(c.Request.Context(), MustUserID(c))
	if err != nil {
		log.Printf("httpapi: fetch user: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}
