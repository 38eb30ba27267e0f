package deal

import (
	"time"

	"github.com/reciclo/broker/internal/ident"
)

// Role identifies the author side of a communication log entry.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// EventKind tags a communication log entry with what happened, so the most
// recent entry of a relevant kind can be surfaced as "reason" or "feedback".
type EventKind string

const (
	EventAdminRejection   EventKind = "admin_rejection"
	EventBuyerRejection   EventKind = "buyer_rejection"
	EventAdminQuestion    EventKind = "admin_question"
	EventAdminFeedback    EventKind = "admin_feedback"
	EventSellerReply      EventKind = "seller_reply"
	EventEditRequest      EventKind = "edit_request"
	EventDeleteRequest    EventKind = "delete_request"
	EventWindowOverride   EventKind = "window_override"
	EventIncreaseDecision EventKind = "increase_decision"
	EventForcedStatus     EventKind = "forced_status"
)

// LogEntry is one item of the per-offer communication timeline. Entries are
// append-only and never edited or removed.
type LogEntry struct {
	ID       string    `json:"id"`
	Author   Role      `json:"author"`
	AuthorID string    `json:"authorId"`
	Message  string    `json:"message"`
	Event    EventKind `json:"event"`
	At       time.Time `json:"at"`
}

// appendLog adds an entry to the offer's timeline.
func (o *Offer) appendLog(author Role, authorID, message string, event EventKind, now time.Time) {
	o.Log = append(o.Log, LogEntry{
		ID:       ident.New(ident.KindMessage),
		Author:   author,
		AuthorID: authorID,
		Message:  message,
		Event:    event,
		At:       now,
	})
}
