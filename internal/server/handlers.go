package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/equilibre/internal/modules/allocation"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleHealth reports process and database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"
	if err := s.db.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = err.Error()
	}

	var memUsed float64
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsed = vm.UsedPercent
	}
	var cpuUsed float64
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuUsed = percents[0]
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"database":       dbStatus,
		"goroutines":     runtime.NumGoroutine(),
		"memory_percent": memUsed,
		"cpu_percent":    cpuUsed,
		"time":           time.Now().UTC().Format(time.RFC3339),
	})
}

// handlePortfolio lists every registered asset with its current figures.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	type assetView struct {
		Code        string  `json:"code"`
		Type        string  `json:"type"`
		Price       float64 `json:"price"`
		Amount      float64 `json:"amount"`
		Value       float64 `json:"value"`
		Liabilities float64 `json:"liabilities"`
		Fetched     bool    `json:"fetched"`
	}

	assets := s.registry.Assets()
	out := make([]assetView, 0, len(assets))
	var total float64
	for _, a := range assets {
		value := a.Value()
		total += value
		out = append(out, assetView{
			Code:        a.Code(),
			Type:        string(a.Type()),
			Price:       a.Price(),
			Amount:      a.Amount(),
			Value:       value,
			Liabilities: a.Liabilities(),
			Fetched:     a.Book.IsFetched(),
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"currency": s.cfg.Currency,
		"total":    total,
		"assets":   out,
	})
}

// handleGetTargets returns the declared allocation tree.
func (s *Server) handleGetTargets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Targets().Snapshot())
}

// handlePutTargets replaces the allocation tree and persists it.
func (s *Server) handlePutTargets(w http.ResponseWriter, r *http.Request) {
	var node allocation.Node
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	root := allocation.RestoreTree(node, s.registry)
	if err := s.svc.ReplaceTargets(r.Context(), root); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, root.Snapshot())
}

// handleOperations returns the most recent logged operation batches.
func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := s.opLog.Recent(r.Context(), s.cfg.AccountID, 100)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ops)
}

// handleRebalance runs one resolution pass and returns the plan without
// recording anything.
func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	plan, err := s.svc.Rebalance(r.Context())
	if err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

// handleSubmit runs a pass and records the resulting batch as handed off
// for signing.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	plan, err := s.svc.Rebalance(r.Context())
	if err != nil {
		s.writeError(w, http.StatusConflict, err)
		return
	}
	if err := s.svc.RecordPlan(r.Context(), plan); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}
