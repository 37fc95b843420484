package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"idshowcase/internal/mobileauth"
	"idshowcase/internal/simulator"
)

// DemoHandler exposes backend-side controls of the simulator so a demo
// client can stage out-of-band transactions and push deliveries.
type DemoHandler struct {
	sim    *simulator.Service
	mobile *mobileauth.Coordinator
}

// NewDemoHandler creates a handler around the simulated backend.
func NewDemoHandler(sim *simulator.Service, mobile *mobileauth.Coordinator) *DemoHandler {
	return &DemoHandler{sim: sim, mobile: mobile}
}

// RegisterRoutes mounts the demo endpoints.
func (h *DemoHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/demo", func(r chi.Router) {
		r.Post("/transactions", h.seedTransaction)
	})
}

func (h *DemoHandler) seedTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		Kind    string `json:"kind"`
		Push    bool   `json:"push"`
	}
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		req.Kind = simulator.KindConfirm
	}

	tx, err := h.sim.Seed(req.Message, req.Kind)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	// Optionally deliver the transaction as if a push notification arrived.
	if req.Push {
		h.mobile.HandlePush(h.sim.PushPayload(tx.ID))
	}
	JSON(w, http.StatusCreated, tx)
}
