package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/stakearena/arena-services/internal/arenasvc/auth"
	"github.com/stakearena/arena-services/internal/arenasvc/service"
	"github.com/stakearena/arena-services/internal/walletsvc/crypto"
	"github.com/stakearena/arena-services/internal/walletsvc/notify"
)

type Handler struct {
	wallet   *service.WalletService
	users    *service.UserService
	notifier *notify.TelegramNotifier
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

func NewHandler(wallet *service.WalletService, users *service.UserService, notifier *notify.TelegramNotifier) *Handler {
	return &Handler{wallet: wallet, users: users, notifier: notifier}
}

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthHandler)
		r.Get("/leaderboard", h.GetLeaderboard)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(auth.TokenAuth()))
			r.Use(jwtauth.Authenticator)

			r.Get("/wallet/balances", h.GetBalances)
			r.Get("/wallet/assets", h.GetAssets)
			r.Get("/wallet/deposit-address", h.GetDepositAddress)
			r.Post("/wallet/deposits", h.PostDeposit)
			r.Post("/wallet/withdrawals", h.PostWithdrawal)
			r.Post("/referral", h.PostReferral)
		})
	})
}

// statusForKind maps service error kinds to HTTP statuses.
func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindBanned:
		return http.StatusForbidden
	case service.KindStateConflict, service.KindNotInRoom:
		return http.StatusConflict
	case service.KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := service.KindOf(err)
	h.writeJSON(w, Response{
		Code:  statusForKind(kind),
		Error: err.Error(),
	})
}

// authedUser resolves the caller and rejects banned accounts.
func (h *Handler) authedUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := auth.UserIDFromContext(r)
	if err != nil {
		h.writeError(w, err)
		return "", false
	}
	user, err := h.users.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return "", false
	}
	if user.IsBanned {
		h.writeError(w, service.E(service.KindBanned, "account is banned"))
		return "", false
	}
	return userID, true
}

func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	assets, err := h.wallet.Balances(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, Response{Code: http.StatusOK, Data: assets})
}

func (h *Handler) GetAssets(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, Response{Code: http.StatusOK, Data: crypto.Assets()})
}

func (h *Handler) GetDepositAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	asset := strings.ToUpper(r.URL.Query().Get("asset"))
	adapter, found := crypto.ForAsset(asset)
	if !found {
		h.writeError(w, service.E(service.KindValidation, "unsupported asset %q", asset))
		return
	}

	address, err := adapter.DepositAddress(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, Response{Code: http.StatusOK, Data: map[string]string{
		"asset":   asset,
		"address": address,
	}})
}

// PostDeposit credits a confirmed deposit. The mock provider confirms
// instantly; a real one would call back after chain finality.
func (h *Handler) PostDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Asset  string          `json:"asset"`
		Amount decimal.Decimal `json:"amount"`
		TxID   string          `json:"tx_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, service.E(service.KindValidation, "invalid request body"))
		return
	}

	asset := strings.ToUpper(req.Asset)
	if _, found := crypto.ForAsset(asset); !found {
		h.writeError(w, service.E(service.KindValidation, "unsupported asset %q", asset))
		return
	}

	meta := ""
	if req.TxID != "" {
		meta = fmt.Sprintf(`{"tx_id":%q}`, req.TxID)
	}
	if err := h.wallet.Deposit(r.Context(), userID, asset, req.Amount, meta); err != nil {
		h.writeError(w, err)
		return
	}

	h.notifier.SendNotification(fmt.Sprintf(
		"DEPOSIT\nUser: %s\nAmount: %s %s\nTime: %s",
		userID, req.Amount.String(), asset, time.Now().Format("2006-01-02 15:04:05"),
	))

	h.writeJSON(w, Response{Code: http.StatusOK, Message: "deposit credited"})
}

func (h *Handler) PostWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Asset   string          `json:"asset"`
		Amount  decimal.Decimal `json:"amount"`
		Address string          `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, service.E(service.KindValidation, "invalid request body"))
		return
	}

	asset := strings.ToUpper(req.Asset)
	adapter, found := crypto.ForAsset(asset)
	if !found {
		h.writeError(w, service.E(service.KindValidation, "unsupported asset %q", asset))
		return
	}

	txID, err := adapter.BroadcastWithdrawal(r.Context(), userID, req.Address, req.Amount)
	if err != nil {
		h.writeError(w, service.E(service.KindValidation, "%s", err.Error()))
		return
	}
	meta := fmt.Sprintf(`{"tx_id":%q,"address":%q}`, txID, req.Address)
	if err := h.wallet.Withdraw(r.Context(), userID, asset, req.Amount, meta); err != nil {
		h.writeError(w, err)
		return
	}

	h.notifier.SendNotification(fmt.Sprintf(
		"WITHDRAWAL REQUEST\nUser: %s\nAmount: %s %s\nAddress: %s\nTx: %s\nTime: %s",
		userID, req.Amount.String(), asset, req.Address, txID, time.Now().Format("2006-01-02 15:04:05"),
	))

	h.writeJSON(w, Response{Code: http.StatusOK, Message: "withdrawal submitted", Data: map[string]string{"tx_id": txID}})
}

// GetLeaderboard is public: the top winners ranked by games won.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.users.Leaderboard(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, Response{Code: http.StatusOK, Data: entries})
}

// PostReferral links the caller to the owner of a referral code, once.
func (h *Handler) PostReferral(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUser(w, r)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, service.E(service.KindValidation, "invalid request body"))
		return
	}

	user, err := h.users.AttachReferrer(r.Context(), userID, req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, Response{Code: http.StatusOK, Data: user})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "wallet service is running at port " + os.Getenv("WALLET_SERVICE_PORT"),
		Code:    200,
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode health response: %v", err)
	}
}
