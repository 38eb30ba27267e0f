// Package user holds party records and the field-granular profile change
// queue. Profile edits never apply directly: each changed field becomes a
// pending change that an admin approves or rejects individually.
package user

import (
	"strings"
	"time"

	"github.com/reciclo/broker/internal/ident"
)

// Role is the party's platform role.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// Field names a profile field that may change through the moderation queue.
type Field string

const (
	FieldDisplayName Field = "display_name"
	FieldCompany     Field = "company"
	FieldEmail       Field = "email"
	FieldPhone       Field = "phone"
)

// Valid reports whether f is a moderatable profile field.
func (f Field) Valid() bool {
	switch f {
	case FieldDisplayName, FieldCompany, FieldEmail, FieldPhone:
		return true
	}
	return false
}

// ChangeStatus is the lifecycle of one queued profile change.
type ChangeStatus string

const (
	ChangePending  ChangeStatus = "pending"
	ChangeApproved ChangeStatus = "approved"
	ChangeRejected ChangeStatus = "rejected"
)

// PendingChange is one queued field edit. Old and new values are snapshotted
// at request time so the admin reviews exactly what the user saw.
type PendingChange struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Field       Field        `json:"field"`
	OldValue    string       `json:"oldValue"`
	NewValue    string       `json:"newValue"`
	Status      ChangeStatus `json:"status"`
	RequestedAt time.Time    `json:"requestedAt"`
	DecidedAt   *time.Time   `json:"decidedAt,omitempty"`
}

// User is a registered party. The profile fields only change through
// approved pending changes; the queue keeps the decided entries as history.
type User struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Company     string `json:"company,omitempty"`
	Phone       string `json:"phone,omitempty"`

	Changes []PendingChange `json:"changes,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates a registered party record.
func New(role Role, email, displayName, company, phone string, now time.Time) (User, error) {
	if !role.Valid() {
		return User{}, validationf("unknown role %q", role)
	}
	email = strings.TrimSpace(email)
	displayName = strings.TrimSpace(displayName)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, validationf("a valid email is required")
	}
	if displayName == "" {
		return User{}, validationf("a display name is required")
	}
	return User{
		ID:          ident.New(ident.KindUser),
		Role:        role,
		Email:       email,
		DisplayName: displayName,
		Company:     strings.TrimSpace(company),
		Phone:       strings.TrimSpace(phone),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// fieldValue reads the current value of a moderatable field.
func (u *User) fieldValue(f Field) string {
	switch f {
	case FieldDisplayName:
		return u.DisplayName
	case FieldCompany:
		return u.Company
	case FieldEmail:
		return u.Email
	case FieldPhone:
		return u.Phone
	}
	return ""
}

func (u *User) setField(f Field, value string) {
	switch f {
	case FieldDisplayName:
		u.DisplayName = value
	case FieldCompany:
		u.Company = value
	case FieldEmail:
		u.Email = value
	case FieldPhone:
		u.Phone = value
	}
}

// pendingOn returns the open change on a field, if any. At most one change
// per field may wait at a time.
func (u *User) pendingOn(f Field) *PendingChange {
	for i := range u.Changes {
		if u.Changes[i].Field == f && u.Changes[i].Status == ChangePending {
			return &u.Changes[i]
		}
	}
	return nil
}

// RequestChange queues one field edit for admin review. The current value is
// snapshotted as OldValue; the profile itself stays untouched until the
// change is approved.
func (u *User) RequestChange(f Field, newValue string, now time.Time) (*PendingChange, error) {
	if !f.Valid() {
		return nil, validationf("unknown profile field %q", f)
	}
	newValue = strings.TrimSpace(newValue)
	if newValue == "" {
		return nil, validationf("new value for %s cannot be empty", f)
	}
	if f == FieldEmail && !strings.Contains(newValue, "@") {
		return nil, validationf("a valid email is required")
	}
	if newValue == u.fieldValue(f) {
		return nil, validationf("new value for %s equals the current value", f)
	}
	if u.pendingOn(f) != nil {
		return nil, consistencyf("field %s already has a change awaiting review", f)
	}

	u.Changes = append(u.Changes, PendingChange{
		ID:          ident.New(ident.KindMessage),
		UserID:      u.ID,
		Field:       f,
		OldValue:    u.fieldValue(f),
		NewValue:    newValue,
		Status:      ChangePending,
		RequestedAt: now,
	})
	return &u.Changes[len(u.Changes)-1], nil
}

// DecideChange rules on exactly one queued change. Approval applies the new
// value to the profile; rejection discards it. Other queued changes are
// never touched, so the admin can mix approvals and rejections per field.
func (u *User) DecideChange(changeID string, approve bool, now time.Time) error {
	for i := range u.Changes {
		c := &u.Changes[i]
		if c.ID != changeID {
			continue
		}
		if c.Status != ChangePending {
			return consistencyf("change %s was already decided", changeID)
		}
		t := now
		c.DecidedAt = &t
		if approve {
			c.Status = ChangeApproved
			u.setField(c.Field, c.NewValue)
			u.UpdatedAt = now
		} else {
			c.Status = ChangeRejected
		}
		return nil
	}
	return notFoundf("change %s", changeID)
}

// Pending returns the open changes, the admin's review queue for this user.
func (u *User) Pending() []PendingChange {
	var out []PendingChange
	for _, c := range u.Changes {
		if c.Status == ChangePending {
			out = append(out, c)
		}
	}
	return out
}

// RedactedName resolves a display name for documents shared with the
// counterparty: first letter of each word kept, the rest masked, so parties
// stay anonymous until a commitment binds them.
func (u *User) RedactedName() string {
	return Redact(u.DisplayName)
}

// Redact masks a name word by word, keeping initials.
func Redact(name string) string {
	words := strings.Fields(name)
	if len(words) == 0 {
		return ""
	}
	for i, w := range words {
		r := []rune(w)
		if len(r) <= 1 {
			continue
		}
		words[i] = string(r[0]) + strings.Repeat("*", len(r)-1)
	}
	return strings.Join(words, " ")
}
