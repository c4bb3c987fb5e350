package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gitlab.com/yelinaung/expense-claims/internal/auth"
	"gitlab.com/yelinaung/expense-claims/internal/models"
)

type userResponse struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Role           models.Role `json:"role"`
	TelegramLinked bool        `json:"telegramLinked"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role,
		TelegramLinked: u.TelegramChatID != nil,
	}
}

func (s *Server) register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := s.deps.Auth.Register(c.Request.Context(), auth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": newUserResponse(user)})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	token, user, err := s.deps.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": newUserResponse(user)})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.deps.Auth.Logout(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) me(c *gin.Context) {
	user, _ := currentUser(c)
	c.JSON(http.StatusOK, user)
}

// linkTelegram links the chat that issued the one-time code for review
// notifications.
func (s *Server) linkTelegram(c *gin.Context) {
	if s.deps.Chats == nil || s.deps.LinkCodes == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "notifications are not configured"})
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	chatID, err := s.deps.LinkCodes.Redeem(req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	user, _ := currentUser(c)
	if err := s.deps.Chats.SetTelegramChatID(c.Request.Context(), user.ID, &chatID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) unlinkTelegram(c *gin.Context) {
	if s.deps.Chats == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "notifications are not configured"})
		return
	}

	user, _ := currentUser(c)
	if err := s.deps.Chats.SetTelegramChatID(c.Request.Context(), user.ID, nil); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
