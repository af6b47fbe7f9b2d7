package store

import "encoding/json"

// Share states. A share starts pending and moves exactly once to accepted
// or declined; declined shares are removed.
const (
	StatePending  = "pending"
	StateAccepted = "accepted"
	StateDeclined = "declined"
)

// Share is a sender-side federated share row.
type Share struct {
	ID string `json:"id" gorm:"primaryKey"`

	ResourceID int64 `json:"resource_id" gorm:"uniqueIndex:idx_share_recipient_resource"`

	// ResourceType is "file" or "folder"; opaque to the protocol engine.
	ResourceType string `json:"resource_type"`

	Name string `json:"name"`

	// Owner is the principal whose server hosts the resource; Initiator is
	// the principal who created this share. They differ for re-shares.
	Owner     string `json:"owner" gorm:"index"`
	Initiator string `json:"initiator"`
	Recipient string `json:"recipient" gorm:"uniqueIndex:idx_share_recipient_resource"`

	Token       string `json:"token" gorm:"uniqueIndex"`
	Permissions int    `json:"permissions"`
	State       string `json:"state"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// ReshareMapping pairs a local share row with the id the origin server
// assigned when it registered the re-share.
type ReshareMapping struct {
	ShareID  string `json:"share_id" gorm:"primaryKey"`
	RemoteID string `json:"remote_id"`
}

// RetryTask is one queued update notification awaiting redelivery.
type RetryTask struct {
	ID            string `json:"id" gorm:"primaryKey"`
	Remote        string `json:"remote"`
	RemoteShareID string `json:"remote_share_id"`
	Token         string `json:"token"`
	Action        string `json:"action"`
	Data          string `json:"data"` // JSON-encoded key/value payload
	Attempt       int    `json:"attempt"`
	NextAttemptAt int64  `json:"next_attempt_at" gorm:"index"`
	CreatedAt     int64  `json:"created_at"`
}

// SetData encodes the notification payload.
func (t *RetryTask) SetData(data map[string]string) error {
	if len(data) == 0 {
		t.Data = ""
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	t.Data = string(raw)
	return nil
}

// GetData decodes the notification payload.
func (t *RetryTask) GetData() (map[string]string, error) {
	if t.Data == "" {
		return nil, nil
	}
	var data map[string]string
	if err := json.Unmarshal([]byte(t.Data), &data); err != nil {
		return nil, err
	}
	return data, nil
}

// ExternalMount is a receiver-side record of a share another server sent
// us, mounted for a local user.
type ExternalMount struct {
	ID string `json:"id" gorm:"primaryKey"`

	// RemoteID is the share id in the sender's namespace; Token
	// authenticates notifications about it.
	RemoteID string `json:"remote_id" gorm:"index"`
	Remote   string `json:"remote"`
	Token    string `json:"token"`

	Name string `json:"name"`

	// Owner is the principal whose server hosts the resource; SharedBy
	// is who shared it with us. They differ along a re-share chain.
	Owner      string `json:"owner"`
	SharedBy   string `json:"shared_by"`
	ShareWith  string `json:"share_with" gorm:"index"`
	ResourceID int64  `json:"resource_id" gorm:"index"`
	State      string `json:"state"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}
