// Package notify delivers federation messages to remote servers. Every
// message goes out over the modern push wire when the remote advertises
// it, with a fallback to the legacy OCS form-encoded wire. Failed update
// notifications are queued for redelivery; share creation and re-share
// negotiation report their failure to the caller instead.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/fedshare/fedshare-go/internal/federation/discovery"
	"github.com/fedshare/fedshare-go/internal/federation/ocs"
	"github.com/fedshare/fedshare-go/internal/httpclient"
	"github.com/fedshare/fedshare-go/internal/platform/logutil"
	"github.com/fedshare/fedshare-go/internal/store"
)

// ErrProtocolIncompatible signals that the remote answered but does not
// speak the requested part of the protocol. Re-share negotiation treats
// it as "fall back to a locally rooted share".
var ErrProtocolIncompatible = errors.New("remote does not support this operation")

// Legacy wire actions, used as URL path segments on the remote's share
// endpoint.
const (
	ActionAccept      = "accept"
	ActionDecline     = "decline"
	ActionUnshare     = "unshare"
	ActionRevoke      = "revoke"
	ActionReshare     = "reshare"
	ActionPermissions = "permissions"
)

// Modern push notification types, paired one-to-one with legacy actions.
const (
	TypeShareAccepted    = "SHARE_ACCEPTED"
	TypeShareDeclined    = "SHARE_DECLINED"
	TypeShareUnshared    = "SHARE_UNSHARED"
	TypeReshareUndo      = "RESHARE_UNDO"
	TypeRequestReshare   = "REQUEST_RESHARE"
	TypePermissionChange = "RESHARE_CHANGE_PERMISSION"
)

var actionToType = map[string]string{
	ActionAccept:      TypeShareAccepted,
	ActionDecline:     TypeShareDeclined,
	ActionUnshare:     TypeShareUnshared,
	ActionRevoke:      TypeReshareUndo,
	ActionReshare:     TypeRequestReshare,
	ActionPermissions: TypePermissionChange,
}

// ShareInfo carries the fields of an outbound share creation notice.
type ShareInfo struct {
	Remote              string
	Token               string
	Name                string
	ResourceType        string
	RemoteID            string
	Owner               string
	OwnerFederatedID    string
	SharedBy            string
	SharedByFederatedID string
	ShareWith           string
}

// Notifier sends federation messages.
type Notifier struct {
	httpClient *httpclient.Client
	discovery  *discovery.Client
	retries    store.RetryStore
	origin     string
	interval   time.Duration
	logger     *slog.Logger
}

// New creates a notifier. origin is this server's public origin, carried
// in the legacy wire's "remote" field; retryInterval is the delay before
// a queued notification's first redelivery.
func New(httpClient *httpclient.Client, disc *discovery.Client, retries store.RetryStore, origin string, retryInterval time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		httpClient: httpClient,
		discovery:  disc,
		retries:    retries,
		origin:     origin,
		interval:   retryInterval,
		logger:     logutil.OrNoop(logger),
	}
}

// SendShare announces a new share to the recipient's server. The error
// comes back to the caller so share creation can roll back; nothing is
// queued for retry.
func (n *Notifier) SendShare(ctx context.Context, info ShareInfo) error {
	if endpoint, ok := n.discovery.ModernEndpoint(ctx, info.Remote); ok {
		if err := n.modernCreateShare(ctx, endpoint, info); err == nil {
			return nil
		}
		// The remote advertises modern push but did not take the share;
		// the legacy wire gets its chance below.
	}
	return n.legacyCreateShare(ctx, info)
}

func (n *Notifier) modernCreateShare(ctx context.Context, endpoint string, info ShareInfo) error {
	payload, err := json.Marshal(map[string]any{
		"shareWith":         info.ShareWith,
		"name":              info.Name,
		"providerId":        info.RemoteID,
		"owner":             info.OwnerFederatedID,
		"sender":            info.SharedByFederatedID,
		"ownerDisplayName":  info.Owner,
		"senderDisplayName": info.SharedBy,
		"shareType":         "user",
		"resourceType":      resourceTypeOrFile(info.ResourceType),
		"protocol": map[string]any{
			"name": "webdav",
			"options": map[string]any{
				"sharedSecret": info.Token,
			},
		},
	})
	if err != nil {
		return err
	}

	body, resp, err := n.httpClient.PostJSON(ctx, endpoint+"/shares", payload)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("share rejected with status %d: %s", resp.StatusCode, truncate(body))
	}
	return nil
}

func (n *Notifier) legacyCreateShare(ctx context.Context, info ShareInfo) error {
	form := url.Values{}
	form.Set("shareWith", info.ShareWith)
	form.Set("token", info.Token)
	form.Set("name", info.Name)
	form.Set("remoteId", info.RemoteID)
	form.Set("owner", info.Owner)
	form.Set("ownerFederatedId", info.OwnerFederatedID)
	form.Set("sharedBy", info.SharedBy)
	form.Set("sharedByFederatedId", info.SharedByFederatedID)
	form.Set("remote", discovery.BaseURL(n.origin))

	return n.legacyPost(ctx, info.Remote, "", "", form)
}

// RequestReshare asks the share's origin server to register a re-share.
// Returns the token and remote id the origin assigned. A remote that
// answers but cannot negotiate yields ErrProtocolIncompatible; the caller
// then roots the share locally instead.
func (n *Notifier) RequestReshare(ctx context.Context, remote, remoteShareID, token, shareWith string, permissions int) (string, string, error) {
	data := map[string]string{
		"shareWith":  shareWith,
		"permission": fmt.Sprintf("%d", permissions),
		"remoteId":   remoteShareID,
	}

	if endpoint, ok := n.discovery.ModernEndpoint(ctx, remote); ok {
		newToken, newRemoteID, err := n.modernRequestReshare(ctx, endpoint, remoteShareID, token, data)
		if err == nil {
			return newToken, newRemoteID, nil
		}
	}

	return n.legacyRequestReshare(ctx, remote, remoteShareID, token, data)
}

func (n *Notifier) modernRequestReshare(ctx context.Context, endpoint, remoteShareID, token string, data map[string]string) (string, string, error) {
	body, resp, err := n.postNotification(ctx, endpoint, TypeRequestReshare, remoteShareID, token, data)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("reshare request rejected with status %d", resp.StatusCode)
	}

	var result struct {
		Token    string `json:"token"`
		RemoteID string `json:"remoteId"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.Token == "" {
		return "", "", ErrProtocolIncompatible
	}
	return result.Token, result.RemoteID, nil
}

func (n *Notifier) legacyRequestReshare(ctx context.Context, remote, remoteShareID, token string, data map[string]string) (string, string, error) {
	form := url.Values{}
	form.Set("token", token)
	for k, v := range data {
		form.Set(k, v)
	}

	respBody, err := n.legacyDo(ctx, remote, remoteShareID, ActionReshare, form)
	if err != nil {
		// The origin is unreachable or refuses the negotiation wholesale.
		return "", "", ErrProtocolIncompatible
	}

	var result struct {
		Token    string      `json:"token"`
		RemoteID json.Number `json:"remoteId"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil || result.Token == "" {
		return "", "", ErrProtocolIncompatible
	}
	return result.Token, result.RemoteID.String(), nil
}

// SendAccept notifies the remote that its share was accepted.
func (n *Notifier) SendAccept(ctx context.Context, remote, remoteShareID, token string) {
	n.SendUpdate(ctx, remote, remoteShareID, token, ActionAccept, nil, 0)
}

// SendDecline notifies the remote that its share was declined.
func (n *Notifier) SendDecline(ctx context.Context, remote, remoteShareID, token string) {
	n.SendUpdate(ctx, remote, remoteShareID, token, ActionDecline, nil, 0)
}

// SendUnshare tells the recipient's server the share was withdrawn.
func (n *Notifier) SendUnshare(ctx context.Context, remote, remoteShareID, token string) {
	n.SendUpdate(ctx, remote, remoteShareID, token, ActionUnshare, nil, 0)
}

// SendRevoke undoes a re-share registration at the origin server.
func (n *Notifier) SendRevoke(ctx context.Context, remote, remoteShareID, token string) {
	n.SendUpdate(ctx, remote, remoteShareID, token, ActionRevoke, nil, 0)
}

// SendPermissionChange propagates new permissions along the share chain.
func (n *Notifier) SendPermissionChange(ctx context.Context, remote, remoteShareID, token string, permissions int) {
	n.SendUpdate(ctx, remote, remoteShareID, token, ActionPermissions,
		map[string]string{"permissions": fmt.Sprintf("%d", permissions)}, 0)
}

// SendUpdate delivers an update notification. Failures never reach the
// caller: when attempt is 0 the notification is queued exactly once for
// the retry runner, later attempts are the runner's business. Reports
// whether delivery succeeded.
func (n *Notifier) SendUpdate(ctx context.Context, remote, remoteShareID, token, action string, data map[string]string, attempt int) bool {
	err := n.Deliver(ctx, remote, remoteShareID, token, action, data)
	if err == nil {
		return true
	}

	n.logger.Warn("update notification failed",
		"remote", remote, "action", action, "attempt", attempt, "error", err)

	if attempt == 0 {
		n.enqueue(ctx, remote, remoteShareID, token, action, data)
	}
	return false
}

// Deliver performs one delivery attempt over both wires. The retry
// runner calls this directly.
func (n *Notifier) Deliver(ctx context.Context, remote, remoteShareID, token, action string, data map[string]string) error {
	if endpoint, ok := n.discovery.ModernEndpoint(ctx, remote); ok {
		if err := n.modernNotify(ctx, endpoint, action, remoteShareID, token, data); err == nil {
			return nil
		}
	}

	form := url.Values{}
	form.Set("token", token)
	for k, v := range data {
		form.Set(k, v)
	}
	_, err := n.legacyDo(ctx, remote, remoteShareID, action, form)
	return err
}

func (n *Notifier) enqueue(ctx context.Context, remote, remoteShareID, token, action string, data map[string]string) {
	task := &store.RetryTask{
		ID:            uuid.NewString(),
		Remote:        remote,
		RemoteShareID: remoteShareID,
		Token:         token,
		Action:        action,
		Attempt:       1,
		NextAttemptAt: time.Now().Add(n.interval).Unix(),
		CreatedAt:     time.Now().Unix(),
	}
	if err := task.SetData(data); err != nil {
		n.logger.Error("cannot encode retry payload", "action", action, "error", err)
		return
	}
	if err := n.retries.EnqueueRetry(ctx, task); err != nil {
		n.logger.Error("cannot queue notification for retry",
			"remote", remote, "action", action, "error", err)
	}
}

func (n *Notifier) modernNotify(ctx context.Context, endpoint, action, remoteShareID, token string, data map[string]string) error {
	notifType, ok := actionToType[action]
	if !ok {
		return fmt.Errorf("no modern notification type for action %q", action)
	}

	_, resp, err := n.postNotification(ctx, endpoint, notifType, remoteShareID, token, data)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification rejected with status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) postNotification(ctx context.Context, endpoint, notifType, remoteShareID, token string, data map[string]string) ([]byte, *http.Response, error) {
	notification := map[string]any{"sharedSecret": token}
	for k, v := range data {
		notification[k] = v
	}

	payload, err := json.Marshal(map[string]any{
		"notificationType": notifType,
		"resourceType":     "file",
		"providerId":       remoteShareID,
		"notification":     notification,
	})
	if err != nil {
		return nil, nil, err
	}

	return n.httpClient.PostJSON(ctx, endpoint+"/notifications", payload)
}

// legacyDo posts to the remote's legacy share endpoint and decodes the
// OCS envelope. Returns the data payload on success.
func (n *Notifier) legacyDo(ctx context.Context, remote, remoteShareID, action string, form url.Values) ([]byte, error) {
	body, resp, err := n.legacyPostRaw(ctx, remote, remoteShareID, action, form)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote returned status %d: %s", resp.StatusCode, truncate(body))
	}

	ocsResp, err := ocs.Decode(body)
	if err != nil {
		return nil, err
	}
	if !ocsResp.Meta.IsSuccess() {
		return nil, fmt.Errorf("remote refused %q: statuscode %d (%s)",
			action, ocsResp.Meta.StatusCode, ocsResp.Meta.Message)
	}
	return ocsResp.Data, nil
}

func (n *Notifier) legacyPost(ctx context.Context, remote, remoteShareID, action string, form url.Values) error {
	_, err := n.legacyDo(ctx, remote, remoteShareID, action, form)
	return err
}

func (n *Notifier) legacyPostRaw(ctx context.Context, remote, remoteShareID, action string, form url.Values) ([]byte, *http.Response, error) {
	eps := n.discovery.ResolveEndpoints(ctx, remote)

	target := discovery.BaseURL(remote) + eps.Share
	if remoteShareID != "" {
		target += "/" + url.PathEscape(remoteShareID)
	}
	if action != "" {
		target += "/" + action
	}
	target += "?format=json"

	return n.httpClient.PostForm(ctx, target, form)
}

func truncate(body []byte) string {
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}

func resourceTypeOrFile(rt string) string {
	if rt == "" {
		return "file"
	}
	return rt
}
