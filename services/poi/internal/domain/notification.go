package domain

// NotificationKind selects the message template sent to a recipient.
type NotificationKind string

const (
	NotifyPoiCreated  NotificationKind = "poi_created"
	NotifyPoiApproved NotificationKind = "poi_approved"
	NotifyPoiRejected NotificationKind = "poi_rejected"
)

// Recipient is where a notification goes. Email and Phone are each optional;
// a message is delivered once per channel present.
type Recipient struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// Empty reports whether r has no reachable channel.
func (r Recipient) Empty() bool {
	return r.Email == "" && r.Phone == ""
}

// Notification is a best-effort message about a Poi.
type Notification struct {
	Kind      NotificationKind  `json:"kind"`
	PoiID     string            `json:"poi_id"`
	Recipient Recipient         `json:"recipient"`
	Data      map[string]string `json:"data,omitempty"`
}
