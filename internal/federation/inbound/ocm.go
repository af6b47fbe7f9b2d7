package inbound

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fedshare/fedshare-go/internal/federation/address"
	"github.com/fedshare/fedshare-go/internal/federation/notify"
)

// OCMRoutes returns the modern push router, mounted at /ocm.
func (h *Handler) OCMRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/shares", h.ocmCreateShare)
	r.Post("/notifications", h.ocmNotification)
	return r
}

// ocmShare mirrors the modern share creation payload.
type ocmShare struct {
	ShareWith  string `json:"shareWith"`
	Name       string `json:"name"`
	ProviderID string `json:"providerId"`
	Owner      string `json:"owner"`
	Sender     string `json:"sender"`
	Protocol   struct {
		Name    string `json:"name"`
		Options struct {
			SharedSecret string `json:"sharedSecret"`
		} `json:"options"`
	} `json:"protocol"`
}

func (h *Handler) ocmCreateShare(w http.ResponseWriter, r *http.Request) {
	var payload ocmShare
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeOCMError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	// The sender field carries the initiator; the owner's host is the
	// remote we notify back.
	_, ownerHost := address.SplitAny(payload.Owner)
	_, err := h.createShare(r.Context(), inboundShare{
		Remote:    ownerHost,
		Token:     payload.Protocol.Options.SharedSecret,
		Name:      payload.Name,
		Owner:     payload.Owner,
		SharedBy:  payload.Sender,
		ShareWith: payload.ShareWith,
		RemoteID:  payload.ProviderID,
	})
	if err != nil {
		h.writeOCMMapped(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{})
}

// ocmNotification mirrors the modern notification payload.
type ocmNotification struct {
	NotificationType string            `json:"notificationType"`
	ResourceType     string            `json:"resourceType"`
	ProviderID       string            `json:"providerId"`
	Notification     map[string]string `json:"notification"`
}

func (h *Handler) ocmNotification(w http.ResponseWriter, r *http.Request) {
	var payload ocmNotification
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeOCMError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	ctx := r.Context()
	shareID := payload.ProviderID
	token := payload.Notification["sharedSecret"]

	var err error
	switch payload.NotificationType {
	case notify.TypeShareAccepted:
		err = h.acceptShare(ctx, shareID, token)
	case notify.TypeShareDeclined:
		err = h.declineShare(ctx, shareID, token)
	case notify.TypeShareUnshared:
		err = h.unshare(ctx, shareID, token)
	case notify.TypeReshareUndo:
		err = h.revoke(ctx, shareID, token)
	case notify.TypePermissionChange:
		permissions, convErr := strconv.Atoi(payload.Notification["permissions"])
		if convErr != nil {
			writeOCMError(w, http.StatusBadRequest, "permissions must be a non-negative integer")
			return
		}
		err = h.updatePermissions(ctx, shareID, token, permissions)
	case notify.TypeRequestReshare:
		h.ocmReshare(w, r, payload, shareID, token)
		return
	default:
		writeOCMError(w, http.StatusBadRequest, "unknown notification type")
		return
	}

	if err != nil {
		h.writeOCMMapped(w, err)
		return
	}
	writeOCMOK(w, map[string]string{})
}

func (h *Handler) ocmReshare(w http.ResponseWriter, r *http.Request, payload ocmNotification, shareID, token string) {
	permissions, err := strconv.Atoi(firstNonEmpty(payload.Notification["permission"], payload.Notification["permissions"]))
	if err != nil {
		writeOCMError(w, http.StatusBadRequest, "permissions must be a non-negative integer")
		return
	}

	derived, err := h.reshare(r.Context(), shareID, token, payload.Notification["shareWith"], permissions)
	if err != nil {
		if errors.Is(err, errNotFound) {
			err = errBadRequest
		}
		h.writeOCMMapped(w, err)
		return
	}

	writeOCMOK(w, map[string]string{
		"token":    derived.Token,
		"remoteId": derived.ID,
	})
}

// writeOCMMapped applies the same disclosure rules as the legacy wire.
func (h *Handler) writeOCMMapped(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotFound):
		writeOCMOK(w, map[string]string{})
	case errors.Is(err, errForbidden):
		writeOCMError(w, http.StatusForbidden, "invalid or missing token")
	case errors.Is(err, errBadRequest):
		writeOCMError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, errUnavailable):
		writeOCMError(w, http.StatusServiceUnavailable, "incoming federated sharing is disabled")
	default:
		h.logger.Error("inbound notification failed", "error", err)
		writeOCMError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeOCMOK(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOCMError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
