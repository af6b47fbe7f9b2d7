package inbound

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fedshare/fedshare-go/internal/federation/notify"
	"github.com/fedshare/fedshare-go/internal/federation/ocs"
)

// LegacyRoutes returns the OCS share endpoint router, mounted by the
// server at the advertised share endpoint path.
func (h *Handler) LegacyRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.legacyCreateShare)
	r.Post("/{id}/{action}", h.legacyAction)
	return r
}

func (h *Handler) legacyCreateShare(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ocs.WriteError(w, http.StatusBadRequest, 400, "malformed form body")
		return
	}

	_, err := h.createShare(r.Context(), inboundShare{
		Remote:    r.PostFormValue("remote"),
		Token:     r.PostFormValue("token"),
		Name:      r.PostFormValue("name"),
		Owner:     firstNonEmpty(r.PostFormValue("ownerFederatedId"), r.PostFormValue("owner")),
		SharedBy:  firstNonEmpty(r.PostFormValue("sharedByFederatedId"), r.PostFormValue("sharedBy")),
		ShareWith: r.PostFormValue("shareWith"),
		RemoteID:  r.PostFormValue("remoteId"),
	})
	if err != nil {
		h.writeLegacyError(w, err)
		return
	}
	ocs.WriteSuccess(w, nil)
}

func (h *Handler) legacyAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ocs.WriteError(w, http.StatusBadRequest, 400, "malformed form body")
		return
	}

	ctx := r.Context()
	shareID := chi.URLParam(r, "id")
	token := r.PostFormValue("token")

	var err error
	switch chi.URLParam(r, "action") {
	case notify.ActionAccept:
		err = h.acceptShare(ctx, shareID, token)
	case notify.ActionDecline:
		err = h.declineShare(ctx, shareID, token)
	case notify.ActionUnshare:
		err = h.unshare(ctx, shareID, token)
	case notify.ActionRevoke, "reshare_undo":
		err = h.revoke(ctx, shareID, token)
	case notify.ActionPermissions:
		permissions, convErr := strconv.Atoi(r.PostFormValue("permissions"))
		if convErr != nil {
			ocs.WriteError(w, http.StatusBadRequest, 400, "permissions must be a non-negative integer")
			return
		}
		err = h.updatePermissions(ctx, shareID, token, permissions)
	case notify.ActionReshare:
		h.legacyReshare(w, r, shareID, token)
		return
	default:
		ocs.WriteError(w, http.StatusBadRequest, 400, "unknown action")
		return
	}

	if err != nil {
		h.writeLegacyError(w, err)
		return
	}
	ocs.WriteSuccess(w, nil)
}

func (h *Handler) legacyReshare(w http.ResponseWriter, r *http.Request, shareID, token string) {
	permissions, err := strconv.Atoi(firstNonEmpty(r.PostFormValue("permission"), r.PostFormValue("permissions")))
	if err != nil {
		ocs.WriteError(w, http.StatusBadRequest, 400, "permissions must be a non-negative integer")
		return
	}

	derived, err := h.reshare(r.Context(), shareID, token, r.PostFormValue("shareWith"), permissions)
	if err != nil {
		// Negotiation legitimately fails on unknown shares; there is no
		// success-shaped path here.
		if errors.Is(err, errNotFound) {
			err = errBadRequest
		}
		h.writeLegacyError(w, err)
		return
	}

	ocs.WriteSuccess(w, map[string]string{
		"token":    derived.Token,
		"remoteId": derived.ID,
	})
}

// writeLegacyError maps core errors onto the envelope. Unknown share ids
// on notification actions answer success-shaped so a remote cannot probe
// which ids exist.
func (h *Handler) writeLegacyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNotFound):
		ocs.WriteSuccess(w, nil)
	case errors.Is(err, errForbidden):
		ocs.WriteError(w, http.StatusForbidden, 403, "invalid or missing token")
	case errors.Is(err, errBadRequest):
		ocs.WriteError(w, http.StatusBadRequest, 400, "invalid request")
	case errors.Is(err, errUnavailable):
		ocs.WriteError(w, http.StatusServiceUnavailable, 503, "incoming federated sharing is disabled")
	default:
		h.logger.Error("inbound request failed", "error", err)
		ocs.WriteError(w, http.StatusInternalServerError, 500, "internal error")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
