package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mavprep/voice/internal/app/orch"
	"github.com/mavprep/voice/internal/domain"
	"github.com/mavprep/voice/internal/store"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type handlers struct {
	orch  *orch.Orchestrator
	store store.Store
	ice   []webrtc.ICEServer
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(code, gin.H{"error": "internal error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (h *handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "mavprep",
		"status":      "ok",
		"connections": h.orch.Registry.Len(),
		"rooms":       len(h.orch.Rooms.List()),
	})
}

func (h *handlers) iceServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ice})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Rooms.List())
}

func (h *handlers) roomMembers(c *gin.Context) {
	members, err := h.orch.Rooms.Members(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	if members == nil {
		members = []domain.Member{}
	}
	c.JSON(http.StatusOK, members)
}

type createChannelRequest struct {
	ID         domain.ChannelID   `json:"id"`
	Name       string             `json:"name"`
	Type       domain.ChannelType `json:"type"`
	Privacy    domain.Privacy     `json:"privacy"`
	Password   string             `json:"password,omitempty"`
	MaxMembers int                `json:"maxMembers,omitempty"`
	Course     string             `json:"course,omitempty"`
}

func (h *handlers) listChannels(c *gin.Context) {
	channels, err := h.store.GetAllChannels(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

func (h *handlers) createChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	createdBy := string(identityOf(c).ID)
	if createdBy == "" {
		createdBy = c.GetString(clientTokenKey)
	}
	ch := domain.Channel{
		ID:         req.ID,
		Name:       req.Name,
		Type:       req.Type,
		Privacy:    req.Privacy,
		CreatedBy:  createdBy,
		MaxMembers: req.MaxMembers,
		Course:     req.Course,
	}
	if req.Privacy == domain.PrivacyPrivate && req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			fail(c, err)
			return
		}
		ch.PasswordHash = string(hash)
	}
	if err := ch.Validate(); err != nil {
		fail(c, err)
		return
	}
	if err := h.store.CreateChannel(c.Request.Context(), ch); err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("channel", string(ch.ID)).Str("type", string(ch.Type)).Msg("channel created")
	c.JSON(http.StatusCreated, ch)
}

func (h *handlers) seedChannels(c *gin.Context) {
	createdBy := string(identityOf(c).ID)
	if createdBy == "" {
		createdBy = "system"
	}
	seeded, err := store.Seed(c.Request.Context(), h.store, createdBy, c.Query("force") == "true")
	if err != nil {
		fail(c, err)
		return
	}
	channels, err := h.store.GetAllChannels(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	code := http.StatusOK
	if seeded {
		code = http.StatusCreated
	}
	c.JSON(code, gin.H{"seeded": seeded, "count": len(channels), "channels": channels})
}

func (h *handlers) getChannel(c *gin.Context) {
	ch, err := h.store.GetChannel(c.Request.Context(), domain.ChannelID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *handlers) deleteChannel(c *gin.Context) {
	id := domain.ChannelID(c.Param("id"))
	if err := h.store.DeleteChannel(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("channel", string(id)).Msg("channel deleted")
	c.Status(http.StatusNoContent)
}

type messagePage struct {
	Messages   []domain.Message `json:"messages"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

func (h *handlers) listMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	msgs, next, err := h.store.GetChannelMessages(c.Request.Context(),
		domain.ChannelID(c.Param("id")), limit, c.Query("cursor"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messagePage{Messages: msgs, NextCursor: next})
}

type createMessageRequest struct {
	Content  string           `json:"content"`
	UserName string           `json:"userName,omitempty"`
	ReplyTo  *domain.ReplyRef `json:"replyTo,omitempty"`
}

func (h *handlers) createMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	id := identityOf(c)
	msg := domain.Message{
		ChannelID: domain.ChannelID(c.Param("id")),
		UserID:    id.ID,
		UserName:  id.Username,
		Content:   req.Content,
		ReplyTo:   req.ReplyTo,
	}
	if id.Anonymous() {
		msg.UserID = domain.UserID(c.GetString(clientTokenKey))
		name, err := domain.NormalizeUsername(req.UserName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		msg.UserName = name
	}
	created, err := h.store.CreateMessage(c.Request.Context(), msg)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type editMessageRequest struct {
	ChannelID domain.ChannelID `json:"channelId"`
	Content   string           `json:"content"`
}

func (h *handlers) updateMessage(c *gin.Context) {
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChannelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channelId and content are required"})
		return
	}
	msg, err := h.store.UpdateMessage(c.Request.Context(), req.ChannelID, domain.MessageID(c.Param("id")), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *handlers) deleteMessage(c *gin.Context) {
	var req editMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChannelID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channelId is required"})
		return
	}
	if err := h.store.DeleteMessage(c.Request.Context(), req.ChannelID, domain.MessageID(c.Param("id"))); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
