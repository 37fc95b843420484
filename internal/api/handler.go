// Package api exposes the orchestrator to the presentation layer over HTTP.
// Handlers translate requests into coordinator calls and taxonomy errors
// into status codes; no orchestration rules live here.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"idshowcase/internal/authentication"
	"idshowcase/internal/identity"
	"idshowcase/internal/mobileauth"
	"idshowcase/internal/pin"
	"idshowcase/internal/registration"
	"idshowcase/internal/sdkerr"
	"idshowcase/internal/session"
	"idshowcase/internal/store"
)

// Handler wires the HTTP surface to the coordinators.
type Handler struct {
	state    *session.State
	client   identity.Client
	settings store.Settings
	reg      *registration.Coordinator
	auth     *authentication.Coordinator
	pin      *pin.Coordinator
	mobile   *mobileauth.Coordinator
}

// NewHandler creates a new Handler with all coordinator dependencies.
func NewHandler(
	state *session.State,
	client identity.Client,
	settings store.Settings,
	reg *registration.Coordinator,
	auth *authentication.Coordinator,
	pinCoord *pin.Coordinator,
	mobile *mobileauth.Coordinator,
) *Handler {
	return &Handler{
		state:    state,
		client:   client,
		settings: settings,
		reg:      reg,
		auth:     auth,
		pin:      pinCoord,
		mobile:   mobile,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Fail maps a taxonomy error onto an HTTP status.
func Fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch sdkerr.KindOf(err) {
	case sdkerr.KindNotInitialized, sdkerr.KindOTPBusyOrInvalid:
		status = http.StatusConflict
	case sdkerr.KindUnknownUser:
		status = http.StatusNotFound
	case sdkerr.KindUnknownAuthenticator, sdkerr.KindStatelessNotSupported:
		status = http.StatusBadRequest
	case sdkerr.KindRequiresAuthentication:
		status = http.StatusUnauthorized
	case sdkerr.KindPolicyViolation, sdkerr.KindPinMismatch:
		status = http.StatusUnprocessableEntity
	case sdkerr.KindAccountDeregistered:
		status = http.StatusGone
	}
	Error(w, status, err.Error())
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// RegisterRoutes mounts every orchestrator endpoint on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.getState)
		r.Post("/initialize", h.initialize)
		r.Post("/reset", h.reset)

		r.Get("/providers", h.listProviders)
		r.Get("/users/{userID}/authenticators", h.listAuthenticators)

		r.Post("/register", h.register)
		r.Post("/register/redirect", h.redirect)
		r.Post("/register/custom", h.respondCustom)
		r.Post("/register/cancel", h.cancelRegistration)

		r.Post("/pin", h.submitPin)
		r.Post("/pin/cancel", h.cancelPin)
		r.Post("/pin/change", h.changePin)

		r.Post("/authenticate", h.authenticate)
		r.Post("/authenticate/implicit", h.authenticateImplicitly)
		r.Post("/logout", h.logout)
		r.Post("/sso", h.singleSignOn)

		r.Post("/mobile/enroll", h.enrollMobile)
		r.Post("/mobile/push", h.registerPush)
		r.Get("/mobile/transactions", h.fetchTransactions)
		r.Post("/mobile/transactions/{transactionID}/decision", h.decide)
		r.Post("/mobile/otp", h.handleOTP)
		r.Post("/mobile/scanner", h.openOTPScanner)
		r.Post("/mobile/scanner/cancel", h.dismissOTPScanner)
	})
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Initialize(r.Context()); err != nil {
		Fail(w, err)
		return
	}
	h.state.SetInitialized(true)
	if err := h.settings.SetAutoInitialize(r.Context(), true); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"initialized": true})
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.client.ResetAll(r.Context()); err != nil {
		Fail(w, err)
		return
	}
	h.state.Reset()
	if err := h.settings.SetAutoInitialize(r.Context(), false); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"reset": true})
}

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.client.ListIdentityProviders(r.Context())
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, providers)
}

func (h *Handler) listAuthenticators(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	registered := r.URL.Query().Get("registered") != "false"
	names, err := h.client.ListAuthenticators(r.Context(), userID, registered)
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, names)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProviderID string `json:"provider_id"`
		Stateless  bool   `json:"stateless"`
	}
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.reg.Begin(r.Context(), req.ProviderID, req.Stateless); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusAccepted, h.state.Snapshot())
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.reg.Redirect(req.URL)
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) respondCustom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.reg.RespondCustom(req.Value)
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) cancelRegistration(w http.ResponseWriter, r *http.Request) {
	h.reg.Cancel()
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) submitPin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pin string `json:"pin"`
	}
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.pin.Submit(r.Context(), req.Pin); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) cancelPin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Flow string `json:"flow"`
	}
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Flow == "create" {
		h.pin.CancelCreate()
	} else {
		h.pin.CancelEntry()
	}
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) changePin(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.StartPinChange(r.Context()); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusAccepted, h.state.Snapshot())
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string `json:"user_id"`
		Authenticator string `json:"authenticator"`
	}
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.auth.Authenticate(r.Context(), req.UserID, req.Authenticator); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusAccepted, h.state.Snapshot())
}

func (h *Handler) authenticateImplicitly(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.auth.AuthenticateImplicitly(r.Context(), req.UserID); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) singleSignOn(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SingleSignOn(r.Context()); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) enrollMobile(w http.ResponseWriter, r *http.Request) {
	if err := h.mobile.Enroll(r.Context()); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) registerPush(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceToken string `json:"device_token"`
	}
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.mobile.RegisterForPush(r.Context(), req.DeviceToken); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) fetchTransactions(w http.ResponseWriter, r *http.Request) {
	ids, err := h.mobile.FetchPendingTransactions(r.Context())
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"transaction_ids": ids})
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionID")
	var req struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.mobile.Decide(r.Context(), transactionID, req.Confirmed)
	JSON(w, http.StatusAccepted, h.state.Snapshot())
}

func (h *Handler) openOTPScanner(w http.ResponseWriter, r *http.Request) {
	h.mobile.PresentOTPScanner()
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) dismissOTPScanner(w http.ResponseWriter, r *http.Request) {
	h.mobile.DismissOTPScanner()
	JSON(w, http.StatusOK, h.state.Snapshot())
}

func (h *Handler) handleOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.mobile.HandleOTP(r.Context(), req.Code); err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, h.state.Snapshot())
}
