// Package bot routes inbound chat updates to the registration, admin and
// booking dialogs.
package bot

import "strings"

// Kind is the payload shape of an inbound update.
type Kind string

const (
	KindText     Kind = "text"
	KindContact  Kind = "contact"
	KindLocation Kind = "location"
	KindUnknown  Kind = "unknown"
)

// Contact is a structured phone-number share.
type Contact struct {
	PhoneNumber string
	// UserID is the platform id of the contact's owner, when the platform knows it.
	UserID string
}

// Location is a structured coordinate share.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Update is one inbound message, independent of the chat platform.
type Update struct {
	ID       int64
	UserID   string
	ChatID   int64
	Text     string
	Contact  *Contact
	Location *Location
}

// Kind classifies the update by payload; structured payloads win over text.
func (u Update) Kind() Kind {
	switch {
	case u.Contact != nil:
		return KindContact
	case u.Location != nil:
		return KindLocation
	case strings.TrimSpace(u.Text) != "":
		return KindText
	default:
		return KindUnknown
	}
}
