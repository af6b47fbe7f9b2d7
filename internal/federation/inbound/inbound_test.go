package inbound

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/fedshare/fedshare-go/internal/federation/address"
	"github.com/fedshare/fedshare-go/internal/federation/notify"
	"github.com/fedshare/fedshare-go/internal/federation/ocs"
	"github.com/fedshare/fedshare-go/internal/federation/provider"
	"github.com/fedshare/fedshare-go/internal/federation/token"
	"github.com/fedshare/fedshare-go/internal/store"
	"github.com/fedshare/fedshare-go/internal/store/memory"
)

// silentNotifier swallows outbound calls so handler tests never touch the
// network. Re-share announcements triggered through the provider land
// here as well.
type silentNotifier struct {
	shares   []notify.ShareInfo
	revokes  []string
	unshares []string
}

func (s *silentNotifier) SendShare(ctx context.Context, info notify.ShareInfo) error {
	s.shares = append(s.shares, info)
	return nil
}

func (s *silentNotifier) RequestReshare(ctx context.Context, remote, remoteShareID, token, shareWith string, permissions int) (string, string, error) {
	return "", "", notify.ErrProtocolIncompatible
}

func (s *silentNotifier) SendAccept(ctx context.Context, remote, remoteShareID, token string) {}

func (s *silentNotifier) SendDecline(ctx context.Context, remote, remoteShareID, token string) {}

func (s *silentNotifier) SendUnshare(ctx context.Context, remote, remoteShareID, token string) {
	s.unshares = append(s.unshares, remoteShareID)
}

func (s *silentNotifier) SendRevoke(ctx context.Context, remote, remoteShareID, token string) {
	s.revokes = append(s.revokes, remoteShareID)
}

func (s *silentNotifier) SendPermissionChange(ctx context.Context, remote, remoteShareID, token string, permissions int) {
}

func newTestHandler(t *testing.T, incoming bool) (*Handler, *memory.Driver, *silentNotifier) {
	t.Helper()

	driver := memory.New()
	notifier := &silentNotifier{}
	resolver := address.NewResolver("https://local.example", nil)

	p := provider.New(provider.Options{
		Shares:          driver,
		Reshares:        driver,
		Mounts:          driver,
		Notifier:        notifier,
		Resolver:        resolver,
		Tokens:          token.NewGenerator(),
		OutgoingEnabled: true,
		IncomingEnabled: incoming,
	})

	h := NewHandler(p, driver, driver, driver, StaticUsers{"bob", "carol"}, resolver, nil)
	return h, driver, notifier
}

func postForm(t *testing.T, router http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *ocs.Response {
	t.Helper()

	resp, err := ocs.Decode(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func createForm() url.Values {
	return url.Values{
		"remote":    {"http://origin.example"},
		"token":     {"abcdefghij12345"},
		"name":      {"/projects"},
		"owner":     {"alice"},
		"sharedBy":  {"alice"},
		"shareWith": {"bob"},
		"remoteId":  {"55"},
	}
}

func TestLegacyCreateShare(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	router := h.LegacyRoutes()

	rec := postForm(t, router, "/?format=json", createForm())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !decodeEnvelope(t, rec).Meta.IsSuccess() {
		t.Fatalf("envelope not success: %s", rec.Body.String())
	}

	mounts, err := driver.ListMounts(context.Background(), "bob")
	if err != nil || len(mounts) != 1 {
		t.Fatalf("mounts = %v, err %v", mounts, err)
	}
	mount := mounts[0]
	// A sender reachable only over plain http must stay dialable, so the
	// scheme survives into the stored remote and the qualified owner.
	if mount.Remote != "http://origin.example" {
		t.Errorf("Remote = %q, want the scheme preserved", mount.Remote)
	}
	if mount.Owner != "alice@http://origin.example" {
		t.Errorf("Owner = %q, want qualified with the remote host", mount.Owner)
	}
	if mount.SharedBy != "alice@http://origin.example" {
		t.Errorf("SharedBy = %q, want qualified with the remote host", mount.SharedBy)
	}
	if mount.RemoteID != "55" || mount.Token != "abcdefghij12345" {
		t.Errorf("mount = %+v", mount)
	}
	if mount.State != store.StatePending {
		t.Errorf("State = %q, want pending", mount.State)
	}
	if mount.ResourceID == 0 {
		t.Error("mount has no local resource id")
	}
}

func TestLegacyCreateShareDefaultsSharedByToOwner(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)

	form := createForm()
	form.Del("sharedBy")
	if rec := postForm(t, h.LegacyRoutes(), "/", form); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	mounts, _ := driver.ListMounts(context.Background(), "bob")
	if len(mounts) != 1 {
		t.Fatalf("mounts = %d, want 1", len(mounts))
	}
	if mounts[0].SharedBy != mounts[0].Owner {
		t.Errorf("SharedBy = %q, want the owner %q", mounts[0].SharedBy, mounts[0].Owner)
	}
}

func TestLegacyCreateShareQualifiedRecipient(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	router := h.LegacyRoutes()

	form := createForm()
	form.Set("shareWith", "bob@local.example")
	if rec := postForm(t, router, "/", form); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	mounts, _ := driver.ListMounts(context.Background(), "bob")
	if len(mounts) != 1 {
		t.Fatalf("mounts = %d, want recipient reduced to the local account", len(mounts))
	}
}

func TestLegacyCreateShareRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(url.Values)
	}{
		{"missing remote", func(f url.Values) { f.Del("remote") }},
		{"missing token", func(f url.Values) { f.Del("token") }},
		{"missing name", func(f url.Values) { f.Del("name") }},
		{"missing owner", func(f url.Values) { f.Del("owner") }},
		{"missing remote id", func(f url.Values) { f.Del("remoteId") }},
		{"missing recipient", func(f url.Values) { f.Del("shareWith") }},
		{"unknown recipient", func(f url.Values) { f.Set("shareWith", "mallory") }},
		{"foreign recipient", func(f url.Values) { f.Set("shareWith", "bob@other.example") }},
		{"root name", func(f url.Values) { f.Set("name", "/") }},
		{"traversal name", func(f url.Values) { f.Set("name", "/projects/../../etc") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, driver, _ := newTestHandler(t, true)
			form := createForm()
			tt.mutate(form)

			rec := postForm(t, h.LegacyRoutes(), "/", form)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}

			mounts, _ := driver.ListMounts(context.Background(), "bob")
			if len(mounts) != 0 {
				t.Errorf("rejected share left %d mounts", len(mounts))
			}
		})
	}
}

func TestLegacyCreateShareIncomingDisabled(t *testing.T) {
	h, _, _ := newTestHandler(t, false)

	rec := postForm(t, h.LegacyRoutes(), "/", createForm())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func seedShare(t *testing.T, driver *memory.Driver) *store.Share {
	t.Helper()

	share := &store.Share{
		ID:          "s1",
		ResourceID:  42,
		Name:        "/documents",
		Owner:       "alice",
		Initiator:   "alice",
		Recipient:   "bob@remote.example",
		Token:       "secrettoken1234",
		Permissions: 19,
		State:       store.StatePending,
	}
	if err := driver.CreateShare(context.Background(), share); err != nil {
		t.Fatalf("seed share: %v", err)
	}
	return share
}

func TestLegacyAccept(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	share := seedShare(t, driver)

	rec := postForm(t, h.LegacyRoutes(), "/s1/accept", url.Values{"token": {share.Token}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, err := driver.GetShare(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetShare: %v", err)
	}
	if got.State != store.StateAccepted {
		t.Errorf("State = %q, want accepted", got.State)
	}
}

func TestLegacyAcceptUnknownShareLooksLikeSuccess(t *testing.T) {
	h, _, _ := newTestHandler(t, true)

	rec := postForm(t, h.LegacyRoutes(), "/no-such-share/accept", url.Values{"token": {"whatever"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !decodeEnvelope(t, rec).Meta.IsSuccess() {
		t.Fatalf("unknown ids must answer success-shaped, got %s", rec.Body.String())
	}
}

func TestLegacyWrongTokenForbidden(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	seedShare(t, driver)

	for _, tok := range []string{"wrong", ""} {
		rec := postForm(t, h.LegacyRoutes(), "/s1/accept", url.Values{"token": {tok}})
		if rec.Code != http.StatusForbidden {
			t.Errorf("token %q: status = %d, want 403", tok, rec.Code)
		}
	}

	got, _ := driver.GetShare(context.Background(), "s1")
	if got.State != store.StatePending {
		t.Errorf("State = %q, refused accept must not transition", got.State)
	}
}

func TestLegacyDeclineDeletesShare(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	share := seedShare(t, driver)

	rec := postForm(t, h.LegacyRoutes(), "/s1/decline", url.Values{"token": {share.Token}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if _, err := driver.GetShare(context.Background(), "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetShare after decline: %v, want not found", err)
	}
}

func TestLegacyUnshare(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	ctx := context.Background()

	mount := &store.ExternalMount{
		ID:         "m1",
		RemoteID:   "55",
		Remote:     "origin.example",
		Token:      "mounttoken12345",
		Name:       "/projects",
		Owner:      "alice@origin.example",
		ShareWith:  "bob",
		ResourceID: 7,
		State:      store.StateAccepted,
	}
	if err := driver.CreateMount(ctx, mount); err != nil {
		t.Fatalf("seed mount: %v", err)
	}

	// The sender addresses the mount by its own id, not ours. A wrong
	// token must not match.
	rec := postForm(t, h.LegacyRoutes(), "/55/unshare", url.Values{"token": {"wrong"}})
	if rec.Code != http.StatusOK || !decodeEnvelope(t, rec).Meta.IsSuccess() {
		t.Fatalf("mismatched unshare: status %d body %s", rec.Code, rec.Body.String())
	}
	if mounts, _ := driver.ListMounts(ctx, "bob"); len(mounts) != 1 {
		t.Fatal("mismatched token removed the mount")
	}

	rec = postForm(t, h.LegacyRoutes(), "/55/unshare", url.Values{"token": {mount.Token}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if mounts, _ := driver.ListMounts(ctx, "bob"); len(mounts) != 0 {
		t.Errorf("mount survived unshare: %v", mounts)
	}
}

func TestLegacyRevoke(t *testing.T) {
	h, driver, notifier := newTestHandler(t, true)
	ctx := context.Background()
	share := seedShare(t, driver)
	if err := driver.SetRemoteID(ctx, share.ID, "777"); err != nil {
		t.Fatalf("seed mapping: %v", err)
	}

	rec := postForm(t, h.LegacyRoutes(), "/s1/revoke", url.Values{"token": {share.Token}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if _, err := driver.GetShare(ctx, "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetShare after revoke: %v, want not found", err)
	}
	if _, err := driver.GetRemoteID(ctx, "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetRemoteID after revoke: %v, want not found", err)
	}
	// Undoing a re-share is a local cleanup; nothing goes back out.
	if len(notifier.unshares) != 0 || len(notifier.revokes) != 0 {
		t.Errorf("revoke sent notifications: unshares %v revokes %v", notifier.unshares, notifier.revokes)
	}
}

func TestLegacyRevokeAlias(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	share := seedShare(t, driver)

	rec := postForm(t, h.LegacyRoutes(), "/s1/reshare_undo", url.Values{"token": {share.Token}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if _, err := driver.GetShare(context.Background(), "s1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetShare after reshare_undo: %v, want not found", err)
	}
}

func TestLegacyPermissions(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	share := seedShare(t, driver)

	rec := postForm(t, h.LegacyRoutes(), "/s1/permissions", url.Values{
		"token":       {share.Token},
		"permissions": {"3"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, _ := driver.GetShare(context.Background(), "s1")
	if got.Permissions != 3 {
		t.Errorf("Permissions = %d, want 3", got.Permissions)
	}

	for _, bad := range []string{"-1", "three", ""} {
		rec := postForm(t, h.LegacyRoutes(), "/s1/permissions", url.Values{
			"token":       {share.Token},
			"permissions": {bad},
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("permissions %q: status = %d, want 400", bad, rec.Code)
		}
	}
}

func TestLegacyUnknownAction(t *testing.T) {
	h, _, _ := newTestHandler(t, true)

	rec := postForm(t, h.LegacyRoutes(), "/s1/explode", url.Values{"token": {"x"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLegacyReshare(t *testing.T) {
	h, driver, notifier := newTestHandler(t, true)
	ctx := context.Background()
	share := seedShare(t, driver)

	rec := postForm(t, h.LegacyRoutes(), "/s1/reshare", url.Values{
		"token":      {share.Token},
		"shareWith":  {"dave@third.example"},
		"permission": {"3"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var data struct {
		Token    string `json:"token"`
		RemoteID string `json:"remoteId"`
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Token == "" || data.RemoteID == "" {
		t.Fatalf("negotiation response = %+v", data)
	}

	derived, err := driver.GetShare(ctx, data.RemoteID)
	if err != nil {
		t.Fatalf("derived share not stored: %v", err)
	}
	if derived.Token != data.Token {
		t.Errorf("stored token %q, answered %q", derived.Token, data.Token)
	}
	if derived.Owner != share.Owner || derived.Initiator != share.Recipient {
		t.Errorf("derived share = %+v", derived)
	}
	if derived.Permissions != 3 {
		t.Errorf("Permissions = %d, want 3", derived.Permissions)
	}

	// This server owns the resource, so it announces the derived share to
	// the new recipient itself.
	if len(notifier.shares) != 1 {
		t.Fatalf("recipient announced %d times, want 1", len(notifier.shares))
	}
	if got := notifier.shares[0]; got.Remote != "third.example" || got.ShareWith != "dave" {
		t.Errorf("announcement = %+v", got)
	}
}

func TestLegacyReshareRejectsWiderPermissions(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	share := seedShare(t, driver)

	rec := postForm(t, h.LegacyRoutes(), "/s1/reshare", url.Values{
		"token":      {share.Token},
		"shareWith":  {"dave@third.example"},
		"permission": {"31"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for permissions beyond the source share", rec.Code)
	}
	if shares, _ := driver.ListShares(context.Background(), store.ShareFilter{Recipient: "dave@third.example"}); len(shares) != 0 {
		t.Errorf("rejected re-share left %d rows", len(shares))
	}
}

func TestLegacyReshareRequiresShareRight(t *testing.T) {
	h, driver, notifier := newTestHandler(t, true)
	ctx := context.Background()

	// Read-only grant: no share bit. Asking only for bits the recipient
	// already holds must still be refused.
	share := &store.Share{
		ID:          "s2",
		ResourceID:  43,
		Name:        "/readonly",
		Owner:       "alice",
		Initiator:   "alice",
		Recipient:   "bob@remote.example",
		Token:       "readonlytoken12",
		Permissions: provider.PermissionRead,
		State:       store.StateAccepted,
	}
	if err := driver.CreateShare(ctx, share); err != nil {
		t.Fatalf("seed share: %v", err)
	}

	rec := postForm(t, h.LegacyRoutes(), "/s2/reshare", url.Values{
		"token":      {share.Token},
		"shareWith":  {"dave@third.example"},
		"permission": {"1"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without the share right", rec.Code)
	}
	if shares, _ := driver.ListShares(ctx, store.ShareFilter{Recipient: "dave@third.example"}); len(shares) != 0 {
		t.Errorf("refused re-share left %d rows", len(shares))
	}
	if len(notifier.shares) != 0 {
		t.Errorf("refused re-share announced %d shares", len(notifier.shares))
	}
}

func TestLegacyReshareUnknownShareIsBadRequest(t *testing.T) {
	h, _, _ := newTestHandler(t, true)

	// Unlike notification actions, a failed negotiation must be visible
	// to the caller.
	rec := postForm(t, h.LegacyRoutes(), "/no-such-share/reshare", url.Values{
		"token":      {"whatever"},
		"shareWith":  {"dave@third.example"},
		"permission": {"1"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func ocmCreatePayload() map[string]any {
	return map[string]any{
		"shareWith":    "bob@local.example",
		"name":         "/projects",
		"providerId":   "55",
		"owner":        "alice@origin.example",
		"sender":       "alice@origin.example",
		"shareType":    "user",
		"resourceType": "file",
		"protocol": map[string]any{
			"name": "webdav",
			"options": map[string]any{
				"sharedSecret": "abcdefghij12345",
			},
		},
	}
}

func TestOCMCreateShare(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)

	rec := postJSON(t, h.OCMRoutes(), "/shares", ocmCreatePayload())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	mounts, _ := driver.ListMounts(context.Background(), "bob")
	if len(mounts) != 1 {
		t.Fatalf("mounts = %d, want 1", len(mounts))
	}
	mount := mounts[0]
	if mount.Remote != "origin.example" {
		t.Errorf("Remote = %q, want the owner's host", mount.Remote)
	}
	if mount.SharedBy != "alice@origin.example" {
		t.Errorf("SharedBy = %q, want the sender", mount.SharedBy)
	}
	if mount.RemoteID != "55" || mount.Token != "abcdefghij12345" {
		t.Errorf("mount = %+v", mount)
	}
}

func TestOCMCreateShareRejectsMissingSecret(t *testing.T) {
	h, _, _ := newTestHandler(t, true)

	payload := ocmCreatePayload()
	payload["protocol"] = map[string]any{"name": "webdav", "options": map[string]any{}}
	rec := postJSON(t, h.OCMRoutes(), "/shares", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOCMNotificationAccept(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	share := seedShare(t, driver)

	rec := postJSON(t, h.OCMRoutes(), "/notifications", map[string]any{
		"notificationType": "SHARE_ACCEPTED",
		"resourceType":     "file",
		"providerId":       "s1",
		"notification":     map[string]string{"sharedSecret": share.Token},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	got, _ := driver.GetShare(context.Background(), "s1")
	if got.State != store.StateAccepted {
		t.Errorf("State = %q, want accepted", got.State)
	}
}

func TestOCMNotificationDisclosure(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	seedShare(t, driver)

	// Unknown ids look like success, wrong tokens on known ids do not.
	rec := postJSON(t, h.OCMRoutes(), "/notifications", map[string]any{
		"notificationType": "SHARE_ACCEPTED",
		"providerId":       "no-such-share",
		"notification":     map[string]string{"sharedSecret": "whatever"},
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("unknown id: status = %d, want 201", rec.Code)
	}

	rec = postJSON(t, h.OCMRoutes(), "/notifications", map[string]any{
		"notificationType": "SHARE_ACCEPTED",
		"providerId":       "s1",
		"notification":     map[string]string{"sharedSecret": "wrong"},
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong token: status = %d, want 403", rec.Code)
	}
}

func TestOCMReshare(t *testing.T) {
	h, driver, _ := newTestHandler(t, true)
	share := seedShare(t, driver)

	rec := postJSON(t, h.OCMRoutes(), "/notifications", map[string]any{
		"notificationType": "REQUEST_RESHARE",
		"providerId":       "s1",
		"notification": map[string]string{
			"sharedSecret": share.Token,
			"shareWith":    "dave@third.example",
			"permission":   "1",
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var data struct {
		Token    string `json:"token"`
		RemoteID string `json:"remoteId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if data.Token == "" || data.RemoteID == "" {
		t.Fatalf("negotiation response = %+v", data)
	}
	if _, err := driver.GetShare(context.Background(), data.RemoteID); err != nil {
		t.Errorf("derived share not stored: %v", err)
	}
}

func TestOCMUnknownNotificationType(t *testing.T) {
	h, _, _ := newTestHandler(t, true)

	rec := postJSON(t, h.OCMRoutes(), "/notifications", map[string]any{
		"notificationType": "SOMETHING_ELSE",
		"providerId":       "s1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
