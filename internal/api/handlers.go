package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/susu3304/dagsplit/internal/db"
	"github.com/susu3304/dagsplit/internal/ledger"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		a.log.WithError(err).Warn("health check failed")
		writeError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Groups
func (a *API) handleListGroups(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("userAddress")
	if !common.IsHexAddress(user) {
		writeError(w, http.StatusBadRequest, "userAddress is required")
		return
	}

	groups, err := a.store.ListGroups(r.Context(), user)
	if err != nil {
		a.internalError(w, "list groups", err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (a *API) handleMyGroups(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())

	groups, err := a.store.ListGroups(r.Context(), claims.Address)
	if err != nil {
		a.internalError(w, "list groups", err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req ledger.NewGroup
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !common.IsHexAddress(req.Creator) {
		writeError(w, http.StatusBadRequest, "creator must be an address")
		return
	}
	for _, m := range req.Members {
		if !common.IsHexAddress(m) {
			writeError(w, http.StatusBadRequest, "members must be addresses")
			return
		}
	}
	if strings.ContainsAny(req.ID, "/?#") {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	group, err := a.store.CreateGroup(r.Context(), req)
	if errors.Is(err, db.ErrGroupExists) {
		writeError(w, http.StatusConflict, "group already exists")
		return
	}
	if err != nil {
		a.internalError(w, "create group", err)
		return
	}

	created := *group
	a.notify("group created", func(ctx context.Context) error { return a.notifier.GroupCreated(ctx, created) })
	writeJSON(w, http.StatusCreated, group)
}

func (a *API) handleBalances(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]
	if !a.requireGroup(w, r, groupID) {
		return
	}

	balances, err := a.store.Balances(r.Context(), groupID)
	if err != nil {
		a.internalError(w, "balances", err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (a *API) handlePlan(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["id"]
	if !a.requireGroup(w, r, groupID) {
		return
	}

	balances, err := a.store.Balances(r.Context(), groupID)
	if err != nil {
		a.internalError(w, "balances", err)
		return
	}
	transfers := ledger.Plan(balances)
	if transfers == nil {
		transfers = []ledger.Transfer{}
	}
	writeJSON(w, http.StatusOK, transfers)
}

// Expenses
func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("groupId")
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "groupId is required")
		return
	}
	if !a.requireGroup(w, r, groupID) {
		return
	}

	expenses, err := a.store.ListExpenses(r.Context(), groupID)
	if err != nil {
		a.internalError(w, "list expenses", err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (a *API) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req ledger.NewExpense
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch {
	case req.GroupID == "":
		writeError(w, http.StatusBadRequest, "groupId is required")
		return
	case !common.IsHexAddress(req.Payer):
		writeError(w, http.StatusBadRequest, "payer must be an address")
		return
	case !req.Amount.IsPositive():
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if req.Token == "" {
		req.Token = ledger.NativeToken
	}
	if !common.IsHexAddress(req.Token) {
		writeError(w, http.StatusBadRequest, "token must be an address")
		return
	}

	expense, err := a.store.AddExpense(r.Context(), req)
	if errors.Is(err, db.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		a.internalError(w, "add expense", err)
		return
	}

	added := *expense
	a.notify("expense added", func(ctx context.Context) error { return a.notifier.ExpenseAdded(ctx, added) })
	writeJSON(w, http.StatusCreated, expense)
}

// Settlements
func (a *API) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("groupId")
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "groupId is required")
		return
	}
	if !a.requireGroup(w, r, groupID) {
		return
	}

	settlements, err := a.store.ListSettlements(r.Context(), groupID)
	if err != nil {
		a.internalError(w, "list settlements", err)
		return
	}
	writeJSON(w, http.StatusOK, settlements)
}

func (a *API) handleRecordSettlement(w http.ResponseWriter, r *http.Request) {
	var req ledger.NewSettlement
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch {
	case req.GroupID == "":
		writeError(w, http.StatusBadRequest, "groupId is required")
		return
	case !common.IsHexAddress(req.Payer) || !common.IsHexAddress(req.Payee):
		writeError(w, http.StatusBadRequest, "payer and payee must be addresses")
		return
	case strings.EqualFold(req.Payer, req.Payee):
		writeError(w, http.StatusBadRequest, "payer and payee must differ")
		return
	case !req.Amount.IsPositive():
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if req.Token == "" {
		req.Token = ledger.NativeToken
	}
	if !common.IsHexAddress(req.Token) {
		writeError(w, http.StatusBadRequest, "token must be an address")
		return
	}

	settlement, err := a.store.RecordSettlement(r.Context(), req)
	if errors.Is(err, db.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}
	if err != nil {
		a.internalError(w, "record settlement", err)
		return
	}

	recorded := *settlement
	a.notify("settlement recorded", func(ctx context.Context) error { return a.notifier.SettlementRecorded(ctx, recorded) })
	writeJSON(w, http.StatusCreated, settlement)
}

// requireGroup writes 404 and returns false when groupID is unknown.
func (a *API) requireGroup(w http.ResponseWriter, r *http.Request, groupID string) bool {
	_, err := a.store.GetGroup(r.Context(), groupID)
	if errors.Is(err, db.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "group not found")
		return false
	}
	if err != nil {
		a.internalError(w, "get group", err)
		return false
	}
	return true
}

// notify runs a notification detached from the request.
func (a *API) notify(what string, send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := send(ctx); err != nil {
			a.log.WithError(err).Warnf("failed to notify %s", what)
		}
	}()
}
