package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chatledger/pkg/chat"
	"chatledger/pkg/detect"
	"chatledger/pkg/ledger"
	"chatledger/pkg/orchestrator"
	"chatledger/pkg/utils"
	"chatledger/pkg/wallet"
)

// Handler exposes the coordination core over JSON endpoints. It renders
// only confirmed results: every mutation goes through the ledger, the
// chat store, or the orchestrator first.
type Handler struct {
	chats   *chat.Store
	ledger  *ledger.Ledger
	orch    *orchestrator.Orchestrator
	wallet  *wallet.Registry
	gateway *detect.Gateway
}

func New(c *chat.Store, l *ledger.Ledger, o *orchestrator.Orchestrator, w *wallet.Registry, g *detect.Gateway) *Handler {
	return &Handler{chats: c, ledger: l, orch: o, wallet: w, gateway: g}
}

// Router builds the versioned route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/threads", h.listThreads).Methods(http.MethodGet)
	v1.HandleFunc("/threads", h.createThread).Methods(http.MethodPost)
	v1.HandleFunc("/threads/{id}", h.getThread).Methods(http.MethodGet)
	v1.HandleFunc("/threads/{id}", h.renameThread).Methods(http.MethodPut)
	v1.HandleFunc("/threads/{id}", h.deleteThread).Methods(http.MethodDelete)
	v1.HandleFunc("/threads/{id}/messages", h.sendMessage).Methods(http.MethodPost)
	v1.HandleFunc("/threads/{id}/messages", h.clearMessages).Methods(http.MethodDelete)
	v1.HandleFunc("/threads/{id}/messages/{msgID}", h.removeMessage).Methods(http.MethodDelete)
	v1.HandleFunc("/search", h.search).Methods(http.MethodGet)
	v1.HandleFunc("/balance/{currency}", h.getBalance).Methods(http.MethodGet)
	v1.HandleFunc("/balance/{currency}/credit", h.credit).Methods(http.MethodPost)
	v1.HandleFunc("/balance/reset", h.resetBalance).Methods(http.MethodPost)
	v1.HandleFunc("/wallet", h.getWallet).Methods(http.MethodGet)
	v1.HandleFunc("/wallet/connect", h.connectWallet).Methods(http.MethodPost)
	v1.HandleFunc("/wallet/disconnect", h.disconnectWallet).Methods(http.MethodPost)
	v1.HandleFunc("/detect/health", h.detectHealth).Methods(http.MethodGet)

	return r
}

func (h *Handler) listThreads(w http.ResponseWriter, r *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"threads": h.chats.ListThreads()})
}

func (h *Handler) createThread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	th := h.chats.CreateThread(req.Title)
	_ = utils.JSONWrite(w, http.StatusCreated, th)
}

func (h *Handler) getThread(w http.ResponseWriter, r *http.Request) {
	th, ok := h.chats.GetThread(mux.Vars(r)["id"])
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, th)
}

func (h *Handler) renameThread(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !h.chats.RenameThread(mux.Vars(r)["id"], req.Title) {
		utils.JSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteThread(w http.ResponseWriter, r *http.Request) {
	if !h.chats.DeleteThread(mux.Vars(r)["id"]) {
		utils.JSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text  string `json:"text"`
		Image string `json:"image,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	res, err := h.orch.SendMessage(r.Context(), mux.Vars(r)["id"], req.Text, req.Image)
	if err != nil {
		if errors.Is(err, orchestrator.ErrThreadNotFound) {
			utils.JSONError(w, http.StatusNotFound, "thread not found")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if res.Insufficient {
		status = http.StatusPaymentRequired
	}
	_ = utils.JSONWrite(w, status, res)
}

func (h *Handler) clearMessages(w http.ResponseWriter, r *http.Request) {
	if !h.chats.ClearMessages(mux.Vars(r)["id"]) {
		utils.JSONError(w, http.StatusNotFound, "thread not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !h.chats.RemoveMessage(vars["id"], vars["msgID"]) {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		utils.JSONError(w, http.StatusBadRequest, "query missing")
		return
	}
	results := h.chats.Search(q)
	if results == nil {
		results = []chat.SearchResult{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	currency := mux.Vars(r)["currency"]
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
		"owner":    h.ledger.Owner(),
		"currency": currency,
		"balance":  h.ledger.GetBalance(currency),
	})
}

func (h *Handler) credit(w http.ResponseWriter, r *http.Request) {
	currency := mux.Vars(r)["currency"]
	var req struct {
		Amount float64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.ledger.Credit(currency, req.Amount); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
		"currency": currency,
		"balance":  h.ledger.GetBalance(currency),
	})
}

func (h *Handler) resetBalance(w http.ResponseWriter, r *http.Request) {
	h.ledger.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	owner := h.wallet.Owner()
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
		"owner":     owner,
		"connected": owner != wallet.AnonymousOwner,
	})
}

func (h *Handler) connectWallet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.wallet.Connect(req.Address); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"owner": h.wallet.Owner()})
}

func (h *Handler) disconnectWallet(w http.ResponseWriter, r *http.Request) {
	h.wallet.Disconnect()
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"owner": h.wallet.Owner()})
}

func (h *Handler) detectHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"alive": h.gateway.HealthCheck(ctx)})
}
