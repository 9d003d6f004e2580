// Ops HTTP handlers.
//
// Endpoints (mounted under the admin-guarded API group):
//   - GET /chats/{id}/settings    (read-through chat settings)
//   - PUT /chats/{id}/settings    (partial update of the toggles)
//   - GET /chats/{id}/crocodile   (running word-guess round, word withheld)
//   - GET /rolls/{id}             (dice-roll event snapshot)
//   - GET /stats                  (in-memory state and database totals)
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-modbot/internal/domain"
	"github.com/tbourn/go-modbot/internal/game"
	"github.com/tbourn/go-modbot/internal/services"
	"github.com/tbourn/go-modbot/internal/utils"
)

//
// Service contracts
//

// SettingsService reads and writes per-chat toggles.
type SettingsService interface {
	Get(ctx context.Context, chatID int64) (domain.ChatSettings, error)
	SetLinksAllowed(ctx context.Context, chatID int64, allowed bool) (domain.ChatSettings, error)
	SetSpamProtection(ctx context.Context, chatID int64, enabled bool) (domain.ChatSettings, error)
}

// GameRegistry exposes running word-guess rounds.
type GameRegistry interface {
	TryGetGameState(chatID int64) (game.GameState, bool)
}

// RollRegistry exposes dice-roll events.
type RollRegistry interface {
	TryGetEvent(id uuid.UUID) (game.RollEvent, bool)
}

// StatsSource reports a snapshot of the bot state.
type StatsSource interface {
	Snapshot(ctx context.Context) (services.StateStats, error)
}

// Handlers groups the ops endpoints.
type Handlers struct {
	settings SettingsService
	games    GameRegistry
	rolls    RollRegistry
	stats    StatsSource
}

// New constructs Handlers. stats may be nil, in which case /stats answers 404.
func New(settings SettingsService, games GameRegistry, rolls RollRegistry, stats StatsSource) *Handlers {
	return &Handlers{settings: settings, games: games, rolls: rolls, stats: stats}
}

//
// DTOs
//

// UpdateSettingsRequest is the PUT /chats/{id}/settings payload. Absent
// fields are left unchanged; at least one must be present.
type UpdateSettingsRequest struct {
	SpamProtectionEnabled *bool `json:"spam_protection_enabled,omitempty" example:"true"`
	LinksAllowed          *bool `json:"links_allowed,omitempty" example:"false"`
}

// CrocodileView describes a running round without its secret word.
type CrocodileView struct {
	GameID    uint64    `json:"game_id"`
	ChatID    int64     `json:"chat_id"`
	HostID    int64     `json:"host_id"`
	StartedAt time.Time `json:"started_at"`
	EndsAt    time.Time `json:"ends_at"`
}

func chatIDParam(c *gin.Context) (int64, bool) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid chat id")
		return 0, false
	}
	return id, true
}

//
// Handlers
//

// GetSettings godoc
// @ID          getChatSettings
// @Summary     Get chat settings
// @Description Returns the moderation toggles of a chat, creating the defaults on first read.
// @Tags        Settings
// @Produce     json
//
// @Param       X-Admin-Token  header  string  false "Admin token (required when OPS_ADMIN_TOKEN is set)"  example(s3cret)
// @Param       id             path    int     true  "Chat ID"  example(-1001234567890)
//
// @Success     200  {object} domain.ChatSettings
// @Failure     400  {object} handlers.ErrorResponse "Invalid chat id"
// @Failure     401  {object} handlers.ErrorResponse "Missing or wrong admin token"
// @Failure     429  {object} handlers.ErrorResponse "Rate limited"
// @Failure     500  {object} handlers.ErrorResponse "Settings could not be loaded"
// @Router      /chats/{id}/settings [get]
func (h *Handlers) GetSettings(c *gin.Context) {
	chatID, valid := chatIDParam(c)
	if !valid {
		return
	}
	s, err := h.settings.Get(c.Request.Context(), chatID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeLoadFailed, "could not load settings")
		return
	}
	ok(c, http.StatusOK, s)
}

// UpdateSettings godoc
// @ID          updateChatSettings
// @Summary     Update chat settings
// @Description Partially updates the toggles. Absent fields keep their value; at least one field is required.
// @Tags        Settings
// @Accept      json
// @Produce     json
//
// @Param       X-Admin-Token  header  string  false "Admin token (required when OPS_ADMIN_TOKEN is set)"  example(s3cret)
// @Param       id             path    int     true  "Chat ID"  example(-1001234567890)
// @Param       body           body    handlers.UpdateSettingsRequest true "Toggles to change"
//
// @Success     200  {object} domain.ChatSettings
// @Failure     400  {object} handlers.ErrorResponse "Invalid chat id or payload"
// @Failure     401  {object} handlers.ErrorResponse "Missing or wrong admin token"
// @Failure     429  {object} handlers.ErrorResponse "Rate limited"
// @Failure     500  {object} handlers.ErrorResponse "Settings could not be saved"
// @Router      /chats/{id}/settings [put]
func (h *Handlers) UpdateSettings(c *gin.Context) {
	chatID, valid := chatIDParam(c)
	if !valid {
		return
	}
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if req.SpamProtectionEnabled == nil && req.LinksAllowed == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no settings to update")
		return
	}

	ctx := c.Request.Context()
	var (
		s   domain.ChatSettings
		err error
	)
	if req.SpamProtectionEnabled != nil {
		s, err = h.settings.SetSpamProtection(ctx, chatID, *req.SpamProtectionEnabled)
	}
	if err == nil && req.LinksAllowed != nil {
		s, err = h.settings.SetLinksAllowed(ctx, chatID, *req.LinksAllowed)
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeSaveFailed, "could not save settings")
		return
	}
	ok(c, http.StatusOK, s)
}

// GetCrocodile godoc
// @ID          getCrocodileRound
// @Summary     Get the running word-guess round
// @Description Describes the chat's round. The secret word is never returned.
// @Tags        Games
// @Produce     json
//
// @Param       X-Admin-Token  header  string  false "Admin token (required when OPS_ADMIN_TOKEN is set)"  example(s3cret)
// @Param       id             path    int     true  "Chat ID"  example(-1001234567890)
//
// @Success     200  {object} handlers.CrocodileView
// @Failure     400  {object} handlers.ErrorResponse "Invalid chat id"
// @Failure     401  {object} handlers.ErrorResponse "Missing or wrong admin token"
// @Failure     404  {object} handlers.ErrorResponse "No round in this chat"
// @Failure     429  {object} handlers.ErrorResponse "Rate limited"
// @Router      /chats/{id}/crocodile [get]
func (h *Handlers) GetCrocodile(c *gin.Context) {
	chatID, valid := chatIDParam(c)
	if !valid {
		return
	}
	st, found := h.games.TryGetGameState(chatID)
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "no game in this chat")
		return
	}
	ok(c, http.StatusOK, CrocodileView{
		GameID:    st.GameID,
		ChatID:    st.ChatID,
		HostID:    st.HostID,
		StartedAt: st.StartedAt,
		EndsAt:    st.EndsAt,
	})
}

// GetRoll godoc
// @ID          getRollEvent
// @Summary     Get a dice-roll event
// @Description Returns a snapshot of a running event with its leaderboard.
// @Tags        Games
// @Produce     json
//
// @Param       X-Admin-Token  header  string  false "Admin token (required when OPS_ADMIN_TOKEN is set)"  example(s3cret)
// @Param       id             path    string  true  "Event ID (UUID)"  format(uuid) example(0b5c2f1e-7d3a-4e6b-9a10-2c4d6e8f0a1b)
//
// @Success     200  {object} game.RollEvent
// @Failure     400  {object} handlers.ErrorResponse "Invalid event id"
// @Failure     401  {object} handlers.ErrorResponse "Missing or wrong admin token"
// @Failure     404  {object} handlers.ErrorResponse "Event not found or finished"
// @Failure     429  {object} handlers.ErrorResponse "Rate limited"
// @Router      /rolls/{id} [get]
func (h *Handlers) GetRoll(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid event id")
		return
	}
	ev, found := h.rolls.TryGetEvent(id)
	if !found {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "event not found")
		return
	}
	ok(c, http.StatusOK, ev)
}

// GetStats godoc
// @ID          getStats
// @Summary     Get bot state statistics
// @Description Counts of in-memory state (detectors, cooldowns, ledger, games) and database totals.
// @Tags        Ops
// @Produce     json
//
// @Param       X-Admin-Token  header  string  false "Admin token (required when OPS_ADMIN_TOKEN is set)"  example(s3cret)
//
// @Success     200  {object} services.StateStats
// @Failure     401  {object} handlers.ErrorResponse "Missing or wrong admin token"
// @Failure     404  {object} handlers.ErrorResponse "Stats are not wired"
// @Failure     429  {object} handlers.ErrorResponse "Rate limited"
// @Failure     500  {object} handlers.ErrorResponse "Stats could not be collected"
// @Router      /stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	if h.stats == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "stats are not available")
		return
	}
	st, err := h.stats.Snapshot(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not collect stats")
		return
	}
	ok(c, http.StatusOK, st)
}
