// Package handler содержит HTTP-обработчики административного API бота.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shohjahonshahriyev-cloud/pulchi/internal/config"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/middleware"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/model"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/repository"
	"github.com/shohjahonshahriyev-cloud/pulchi/internal/service"
)

const (
	defaultUsersLimit   = 10
	defaultPendingLimit = 50
	maxListLimit        = 500
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Settings() *config.Settings
	Stats(ctx context.Context) (*model.Stats, error)
	ListUsers(ctx context.Context, limit int) ([]model.User, error)
	ListPendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error)
	GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error)
	ApproveWithdrawal(ctx context.Context, actorID, id int64) (*model.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, actorID, id int64) (*model.Withdrawal, error)
	AdjustBalance(ctx context.Context, actorID, userID, delta int64) (*model.BalanceChange, error)
	SweepSubscriptions(ctx context.Context) (*service.SweepReport, error)
	Broadcast(ctx context.Context, actorID int64, text string) (int, error)
	AddChannel(actorID int64, channel string) (bool, error)
	RemoveChannel(actorID int64, channel string) (bool, error)
}

// Handler реализует HTTP-обработчики административного API.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type userResponse struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"first_name"`
	Username      string `json:"username,omitempty"`
	Balance       int64  `json:"balance"`
	ReferralCount int64  `json:"referral_count"`
	ReferredBy    *int64 `json:"referred_by,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type withdrawalResponse struct {
	ID          int64   `json:"id"`
	UserID      int64   `json:"user_id"`
	Amount      int64   `json:"amount"`
	CardNumber  string  `json:"card_number"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
}

type statsResponse struct {
	Users          int64 `json:"users"`
	ActiveUsers    int64 `json:"active_users"`
	TotalBalance   int64 `json:"total_balance"`
	Pending        int64 `json:"pending"`
	Approved       int64 `json:"approved"`
	Rejected       int64 `json:"rejected"`
	Cancelled      int64 `json:"cancelled"`
	ApprovedAmount int64 `json:"approved_amount"`
}

type balanceRequest struct {
	Delta int64 `json:"delta"`
}

type balanceResponse struct {
	UserID     int64 `json:"user_id"`
	OldBalance int64 `json:"old_balance"`
	NewBalance int64 `json:"new_balance"`
	Delta      int64 `json:"delta"`
}

type sweepResponse struct {
	Checked   int     `json:"checked"`
	Unknown   int     `json:"unknown"`
	Cancelled int     `json:"cancelled"`
	Refunded  int64   `json:"refunded"`
	LeftUsers []int64 `json:"left_users"`
}

type channelRequest struct {
	Channel string `json:"channel"`
}

type channelsResponse struct {
	Channels []string `json:"channels"`
}

type broadcastRequest struct {
	Text string `json:"text"`
}

type broadcastResponse struct {
	Recipients int `json:"recipients"`
}

// Health сообщает, что процесс жив.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// GetStats возвращает агрегированную статистику.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, "get stats", err)
		return
	}

	h.writeJSON(w, http.StatusOK, statsResponse(*stats))
}

// GetUsers возвращает последних зарегистрированных пользователей.
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r, defaultUsersLimit)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	users, err := h.service.ListUsers(r.Context(), limit)
	if err != nil {
		h.writeError(w, "list users", err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{
			ID:            u.ID,
			FirstName:     u.FirstName,
			Username:      u.Username,
			Balance:       u.Balance,
			ReferralCount: u.ReferralCount,
			ReferredBy:    u.ReferredBy,
			CreatedAt:     u.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetPendingWithdrawals возвращает заявки, ожидающие решения.
func (h *Handler) GetPendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r, defaultPendingLimit)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	withdrawals, err := h.service.ListPendingWithdrawals(r.Context(), limit)
	if err != nil {
		h.writeError(w, "list pending withdrawals", err)
		return
	}

	if len(withdrawals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]withdrawalResponse, 0, len(withdrawals))
	for i := range withdrawals {
		resp = append(resp, toWithdrawalResponse(&withdrawals[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetWithdrawal возвращает заявку по идентификатору.
func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	wd, err := h.service.GetWithdrawal(r.Context(), id)
	if err != nil {
		h.writeError(w, "get withdrawal", err)
		return
	}

	h.writeJSON(w, http.StatusOK, toWithdrawalResponse(wd))
}

// GetUserWithdrawals возвращает историю заявок пользователя.
func (h *Handler) GetUserWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	withdrawals, err := h.service.GetWithdrawalsByUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, "list user withdrawals", err)
		return
	}

	if len(withdrawals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]withdrawalResponse, 0, len(withdrawals))
	for i := range withdrawals {
		resp = append(resp, toWithdrawalResponse(&withdrawals[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ApproveWithdrawal подтверждает заявку.
func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "approve withdrawal", h.service.ApproveWithdrawal)
}

// RejectWithdrawal отклоняет заявку с возвратом суммы.
func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, "reject withdrawal", h.service.RejectWithdrawal)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, actorID, id int64) (*model.Withdrawal, error)) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, ok := pathID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	wd, err := fn(r.Context(), actorID, id)
	if err != nil {
		h.writeError(w, op, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toWithdrawalResponse(wd))
}

// AdjustBalance изменяет баланс пользователя.
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	userID, ok := pathID(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req balanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	change, err := h.service.AdjustBalance(r.Context(), actorID, userID, req.Delta)
	if err != nil {
		h.writeError(w, "adjust balance", err)
		return
	}

	h.writeJSON(w, http.StatusOK, balanceResponse(*change))
}

// Sweep запускает проверку подписок пользователей с заявками.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.SweepSubscriptions(r.Context())
	if err != nil {
		h.writeError(w, "subscription sweep", err)
		return
	}

	left := report.LeftUsers
	if left == nil {
		left = []int64{}
	}

	h.writeJSON(w, http.StatusOK, sweepResponse{
		Checked:   report.Checked,
		Unknown:   report.Unknown,
		Cancelled: report.Cancelled,
		Refunded:  report.Refunded,
		LeftUsers: left,
	})
}

// GetChannels возвращает список спонсорских каналов.
func (h *Handler) GetChannels(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, channelsResponse{Channels: h.channels()})
}

// AddChannel добавляет спонсорский канал.
func (h *Handler) AddChannel(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	added, err := h.service.AddChannel(actorID, req.Channel)
	if err != nil {
		h.writeError(w, "add channel", err)
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	h.writeJSON(w, status, channelsResponse{Channels: h.channels()})
}

// RemoveChannel удаляет спонсорский канал.
func (h *Handler) RemoveChannel(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	channel, err := url.PathUnescape(chi.URLParam(r, "channel"))
	if err != nil || channel == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	removed, err := h.service.RemoveChannel(actorID, channel)
	if err != nil {
		h.writeError(w, "remove channel", err)
		return
	}
	if !removed {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, channelsResponse{Channels: h.channels()})
}

// Broadcast ставит сообщение в очередь для всех пользователей.
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	n, err := h.service.Broadcast(r.Context(), actorID, req.Text)
	if err != nil {
		h.writeError(w, "broadcast", err)
		return
	}

	h.writeJSON(w, http.StatusAccepted, broadcastResponse{Recipients: n})
}

func (h *Handler) channels() []string {
	channels := h.service.Settings().SponsorChannels()
	if channels == nil {
		channels = []string{}
	}
	return channels
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op, zap.Error(err))
	}
	http.Error(w, http.StatusText(status), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidCardNumber),
		errors.Is(err, service.ErrBelowMinimum),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, config.ErrInvalidSetting):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNotAdmin), errors.Is(err, service.ErrNotSubscribed):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrUserNotFound), errors.Is(err, repository.ErrWithdrawalNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrAlreadyProcessed), errors.Is(err, repository.ErrReferralExists):
		return http.StatusConflict
	case errors.Is(err, repository.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func toWithdrawalResponse(w *model.Withdrawal) withdrawalResponse {
	resp := withdrawalResponse{
		ID:         w.ID,
		UserID:     w.UserID,
		Amount:     w.Amount,
		CardNumber: w.CardNumber,
		Status:     string(w.Status),
		CreatedAt:  w.CreatedAt.Format(time.RFC3339),
	}
	if w.ProcessedAt != nil {
		s := w.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &s
	}
	return resp
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}
