package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the full route table.
func NewRouter(h *Handler, log *logrus.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(Instrument(log))

	v1.HandleFunc("/sessions", h.CreateSessionHandler).Methods("POST")
	v1.HandleFunc("/sessions/import", h.ImportSessionHandler).Methods("POST")
	v1.HandleFunc("/sessions/{id}", h.GetSessionHandler).Methods("GET")
	v1.HandleFunc("/sessions/{id}", h.DeleteSessionHandler).Methods("DELETE")
	v1.HandleFunc("/sessions/{id}/export", h.ExportSessionHandler).Methods("GET")

	v1.HandleFunc("/sessions/{id}/participants", h.AddParticipantHandler).Methods("POST")
	v1.HandleFunc("/sessions/{id}/participants/{pid}", h.UpdateParticipantHandler).Methods("PATCH")
	v1.HandleFunc("/sessions/{id}/participants/{pid}", h.RemoveParticipantHandler).Methods("DELETE")

	v1.HandleFunc("/sessions/{id}/entries", h.RecordEntryHandler).Methods("POST")
	v1.HandleFunc("/sessions/{id}/participants/{pid}/entries/{eid}", h.RemoveEntryHandler).Methods("DELETE")

	v1.HandleFunc("/sessions/{id}/expenses", h.AddExpenseHandler).Methods("POST")
	v1.HandleFunc("/sessions/{id}/expenses/{xid}/distribution", h.DistributeHandler).Methods("PUT")
	v1.HandleFunc("/sessions/{id}/expenses/{xid}", h.RemoveExpenseHandler).Methods("DELETE")

	v1.HandleFunc("/sessions/{id}/bank", h.ConfigureBankHandler).Methods("PATCH")
	v1.HandleFunc("/sessions/{id}/bank/entries", h.RecordBankEntryHandler).Methods("POST")
	v1.HandleFunc("/sessions/{id}/bank/close", h.CloseBankHandler).Methods("POST")
	v1.HandleFunc("/sessions/{id}/bank/reopen", h.ReopenBankHandler).Methods("POST")

	v1.HandleFunc("/sessions/{id}/settlement", h.GetSettlementHandler).Methods("GET")
	v1.HandleFunc("/sessions/{id}/settlement", h.PostSettlementHandler).Methods("POST")
	v1.HandleFunc("/sessions/{id}/transfers", h.ListTransfersHandler).Methods("GET")
	v1.HandleFunc("/transfers/{id}/toggle", h.ToggleTransferHandler).Methods("POST")

	return r
}
