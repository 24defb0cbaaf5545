package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harlowbrent/boosterdraft/go/internal/draftservice"
	"github.com/harlowbrent/boosterdraft/go/internal/models"
	"github.com/harlowbrent/boosterdraft/go/internal/turnengine"
)

// API implements the REST surface of spec.md §6 over draftservice.Service.
type API struct {
	svc *draftservice.Service
}

// RegisterRoutes wires every spec.md §6 REST route onto mux, matching
// the teacher's RegisterRoutes(mux *http.ServeMux) convention.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /draft", a.handleCreate)
	mux.HandleFunc("GET /draft/{shareId}", a.handleGetState)
	mux.HandleFunc("GET /draft/{shareId}/state", a.handlePollForChange)
	mux.HandleFunc("POST /draft/{shareId}/join", a.handleJoin)
	mux.HandleFunc("POST /draft/{shareId}/leave", a.handleLeave)
	mux.HandleFunc("POST /draft/{shareId}/addBot", a.handleAddBot)
	mux.HandleFunc("POST /draft/{shareId}/randomize", a.handleRandomize)
	mux.HandleFunc("PATCH /draft/{shareId}/settings", a.handleUpdateSettings)
	mux.HandleFunc("POST /draft/{shareId}/start", a.handleStart)
	mux.HandleFunc("POST /draft/{shareId}/select", a.handleSelect)
	mux.HandleFunc("POST /draft/{shareId}/pause", a.handlePause)
	mux.HandleFunc("POST /draft/{shareId}/resume", a.handleResume)
	mux.HandleFunc("DELETE /draft/{shareId}", a.handleCancel)
}

func principal(r *http.Request) string {
	return r.Header.Get("X-Principal")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// errorBody is the JSON shape of every non-2xx response (spec.md §7).
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	de, ok := err.(*draftservice.Error)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "STORAGE_UNAVAILABLE", Message: err.Error()})
		return
	}
	writeJSON(w, httpStatusFor(de.Code), errorBody{Code: string(de.Code), Message: de.Msg})
}

func httpStatusFor(code draftservice.Code) int {
	switch code {
	case draftservice.CodeNotFound:
		return http.StatusNotFound
	case draftservice.CodeNotHost, draftservice.CodeNotSeatOwner:
		return http.StatusForbidden
	case draftservice.CodeDraftLocked, draftservice.CodeDraftFull, draftservice.CodeAlreadyJoined,
		draftservice.CodeInvalidSelection, draftservice.CodeStateChanged, draftservice.CodeTooFewPlayers:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

type createRequest struct {
	SetCode                string `json:"setCode"`
	MaxSeats               int    `json:"maxSeats,omitempty"`
	PackSize               int    `json:"packSize,omitempty"`
	RoundTimerEnabled      *bool  `json:"roundTimerEnabled,omitempty"`
	RoundTimerSeconds      *int   `json:"roundTimerSeconds,omitempty"`
	LastPickerTimerEnabled *bool  `json:"lastPickerTimerEnabled,omitempty"`
	LastPickerTimerSeconds *int   `json:"lastPickerTimerSeconds,omitempty"`
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_SELECTION", Message: "malformed request body"})
		return
	}

	draft, err := a.svc.Create(r.Context(), draftservice.CreateParams{
		SetCode:                req.SetCode,
		MaxSeats:               req.MaxSeats,
		PackSize:               req.PackSize,
		RoundTimerEnabled:      req.RoundTimerEnabled,
		RoundTimerSeconds:      req.RoundTimerSeconds,
		LastPickerTimerEnabled: req.LastPickerTimerEnabled,
		LastPickerTimerSeconds: req.LastPickerTimerSeconds,
	}, principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"shareId": draft.ShareID})
}

func (a *API) handleGetState(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.GetState(r.Context(), r.PathValue("shareId"), principal(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handlePollForChange(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseInt(r.URL.Query().Get("sinceVersion"), 10, 64)
	view, err := a.svc.PollForChange(r.Context(), r.PathValue("shareId"), since, 25*time.Second)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	draft, err := a.svc.Join(r.Context(), r.PathValue("shareId"), p)
	a.respondView(w, draft, p, err)
}

func (a *API) handleLeave(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	draft, err := a.svc.Leave(r.Context(), r.PathValue("shareId"), p)
	a.respondView(w, draft, p, err)
}

func (a *API) handleAddBot(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	draft, err := a.svc.AddBot(r.Context(), r.PathValue("shareId"), p)
	a.respondView(w, draft, p, err)
}

func (a *API) handleRandomize(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	draft, err := a.svc.Randomize(r.Context(), r.PathValue("shareId"), p)
	a.respondView(w, draft, p, err)
}

type settingsPatchRequest struct {
	RoundTimerEnabled      *bool `json:"roundTimerEnabled,omitempty"`
	RoundTimerSeconds      *int  `json:"roundTimerSeconds,omitempty"`
	LastPickerTimerEnabled *bool `json:"lastPickerTimerEnabled,omitempty"`
	LastPickerTimerSeconds *int  `json:"lastPickerTimerSeconds,omitempty"`
	PackSize               *int  `json:"packSize,omitempty"`
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_SELECTION", Message: "malformed request body"})
		return
	}
	p := principal(r)
	draft, err := a.svc.UpdateSettings(r.Context(), r.PathValue("shareId"), p, turnengine.SettingsPatch{
		RoundTimerEnabled:      req.RoundTimerEnabled,
		RoundTimerSeconds:      req.RoundTimerSeconds,
		LastPickerTimerEnabled: req.LastPickerTimerEnabled,
		LastPickerTimerSeconds: req.LastPickerTimerSeconds,
		PackSize:               req.PackSize,
	})
	a.respondView(w, draft, p, err)
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	draft, err := a.svc.Start(r.Context(), r.PathValue("shareId"), p)
	a.respondView(w, draft, p, err)
}

type selectRequest struct {
	CardID *string `json:"cardId"`
}

func (a *API) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_SELECTION", Message: "malformed request body"})
		return
	}
	p := principal(r)
	draft, err := a.svc.Select(r.Context(), r.PathValue("shareId"), p, req.CardID)
	a.respondView(w, draft, p, err)
}

func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	draft, err := a.svc.Pause(r.Context(), r.PathValue("shareId"), p)
	a.respondView(w, draft, p, err)
}

func (a *API) handleResume(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	draft, err := a.svc.Resume(r.Context(), r.PathValue("shareId"), p)
	a.respondView(w, draft, p, err)
}

func (a *API) handleCancel(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	draft, err := a.svc.Cancel(r.Context(), r.PathValue("shareId"), p)
	a.respondView(w, draft, p, err)
}

func (a *API) respondView(w http.ResponseWriter, draft *models.Draft, principal string, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draftservice.ViewFor(draft, principal))
}
