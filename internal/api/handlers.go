// Package api exposes the accounting core over HTTP. Handlers are thin:
// decode, load the session graph, apply the core operation, persist,
// respond. All domain validation lives below this layer.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mfierros/potledger/internal/domain"
	"github.com/mfierros/potledger/internal/export"
	"github.com/mfierros/potledger/internal/journal"
	"github.com/mfierros/potledger/internal/session"
	"github.com/mfierros/potledger/internal/settle"
	"github.com/mfierros/potledger/internal/store"
)

type Handler struct {
	store   *store.Store
	journal *journal.Journal
	log     *logrus.Logger
}

func NewHandler(s *store.Store, j *journal.Journal, log *logrus.Logger) *Handler {
	return &Handler{store: s, journal: j, log: log}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionRequest struct {
	Name      string          `json:"name"`
	ChipValue decimal.Decimal `json:"chip_value"`
}

func (h *Handler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, err := session.New(req.Name, req.ChipValue)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, sess)
}

func (h *Handler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, sess)
}

func (h *Handler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.store.DeleteSession(r.Context(), id); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

type addParticipantRequest struct {
	Name string `json:"name"`
}

func (h *Handler) AddParticipantHandler(w http.ResponseWriter, r *http.Request) {
	var req addParticipantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusUnprocessableEntity, "Participant name required")
		return
	}
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	p := session.AddParticipant(sess, req.Name)
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, p)
}

type updateParticipantRequest struct {
	InGame bool `json:"in_game"`
}

func (h *Handler) UpdateParticipantHandler(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathUUID(w, r, "pid")
	if !ok {
		return
	}
	var req updateParticipantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if err := session.SetInGame(sess, pid, req.InGame); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sess.Participant(pid))
}

func (h *Handler) RemoveParticipantHandler(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathUUID(w, r, "pid")
	if !ok {
		return
	}
	referenced, err := h.store.HasIncompleteTransfers(r.Context(), pid)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if referenced {
		h.respondDomainError(w, domain.ErrHasTransfers)
		return
	}
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if err := session.RemoveParticipant(sess, pid); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

type recordEntryRequest struct {
	ParticipantID uuid.UUID        `json:"participant_id"`
	Kind          domain.EntryKind `json:"kind"`
	Chips         int64            `json:"chips"`
	At            *time.Time       `json:"at,omitempty"`
}

func (h *Handler) RecordEntryHandler(w http.ResponseWriter, r *http.Request) {
	var req recordEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	at := time.Now()
	if req.At != nil {
		at = *req.At
	}
	entry, err := session.Record(sess, req.ParticipantID, req.Kind, req.Chips, at)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, entry)
}

func (h *Handler) RemoveEntryHandler(w http.ResponseWriter, r *http.Request) {
	pid, ok := pathUUID(w, r, "pid")
	if !ok {
		return
	}
	eid, ok := pathUUID(w, r, "eid")
	if !ok {
		return
	}
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if err := session.RemoveEntry(sess, pid, eid); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

type addExpenseRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note"`
	PayerID      *uuid.UUID      `json:"payer_id,omitempty"`
	PaidFromBank decimal.Decimal `json:"paid_from_bank"`
	PaidFromRake decimal.Decimal `json:"paid_from_rake"`
}

func (h *Handler) AddExpenseHandler(w http.ResponseWriter, r *http.Request) {
	var req addExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	e, err := session.AddExpense(sess, req.Amount, req.Note, req.PayerID, req.PaidFromBank, req.PaidFromRake)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, e)
}

type distributeRequest struct {
	Shares []session.Share `json:"shares"`
}

func (h *Handler) DistributeHandler(w http.ResponseWriter, r *http.Request) {
	xid, ok := pathUUID(w, r, "xid")
	if !ok {
		return
	}
	var req distributeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if err := session.Distribute(sess, xid, req.Shares); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sess.Expense(xid))
}

func (h *Handler) RemoveExpenseHandler(w http.ResponseWriter, r *http.Request) {
	xid, ok := pathUUID(w, r, "xid")
	if !ok {
		return
	}
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if err := session.RemoveExpense(sess, xid); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

type bankEntryRequest struct {
	Kind          domain.BankEntryKind `json:"kind"`
	Amount        decimal.Decimal      `json:"amount"`
	Note          string               `json:"note"`
	ParticipantID *uuid.UUID           `json:"participant_id,omitempty"`
	ExpenseID     *uuid.UUID           `json:"expense_id,omitempty"`
}

func (h *Handler) RecordBankEntryHandler(w http.ResponseWriter, r *http.Request) {
	var req bankEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	entry, err := session.RecordBankEntry(sess, req.Kind, req.Amount, req.Note, req.ParticipantID, req.ExpenseID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, entry)
}

type configureBankRequest struct {
	ManagerID     *uuid.UUID      `json:"manager_id,omitempty"`
	ExpectedTotal decimal.Decimal `json:"expected_total"`
}

func (h *Handler) ConfigureBankHandler(w http.ResponseWriter, r *http.Request) {
	var req configureBankRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	bank, err := session.ConfigureBank(sess, req.ManagerID, req.ExpectedTotal)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, bank)
}

func (h *Handler) CloseBankHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if err := session.CloseBank(sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sess.Bank)
}

func (h *Handler) ReopenBankHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	if err := session.ReopenBank(sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sess.Bank)
}

// GetSettlementHandler is the pure preview: compute, never persist.
func (h *Handler) GetSettlementHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	result, err := settle.Calculate(sess)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// PostSettlementHandler computes and journals the result. The default
// path preserves completion state of transfers that still match;
// ?recreate=true discards it.
func (h *Handler) PostSettlementHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	result, err := settle.Calculate(sess)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	var transfers []domain.SettlementTransfer
	if r.URL.Query().Get("recreate") == "true" {
		transfers, err = h.journal.Recreate(r.Context(), sess.ID, result)
	} else {
		transfers, err = h.journal.Save(r.Context(), sess.ID, result)
	}
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]any{
		"result":    result,
		"transfers": transfers,
	})
}

func (h *Handler) ListTransfersHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	transfers, err := h.journal.LoadPersisted(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, transfers)
}

func (h *Handler) ToggleTransferHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.journal.ToggleCompletion(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, t)
}

func (h *Handler) ExportSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	data, err := export.Export(sess, time.Now())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) ImportSessionHandler(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Stream read error")
		return
	}
	sess, err := export.Import(data)
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedVersion) {
			respondWithError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondWithError(w, http.StatusBadRequest, "Malformed snapshot")
		return
	}
	if err := h.store.SaveSession(r.Context(), sess); err != nil {
		h.respondDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, sess)
}

// Helpers

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return nil, false
	}
	sess, err := h.store.LoadSession(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, err)
		return nil, false
	}
	return sess, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[key])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return false
	}
	return true
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBankClosed),
		errors.Is(err, domain.ErrOutstandingBalance),
		errors.Is(err, domain.ErrHasTransfers):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrOverDistributed),
		errors.Is(err, domain.ErrParticipantNotInSession),
		errors.Is(err, domain.ErrUnbalancedLedger),
		errors.Is(err, domain.ErrUndistributedExpense):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.WithError(err).Error("internal error")
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
