package events

import (
	"context"
	"time"
)

type Kind string

const (
	KindProfileProvision  Kind = "profile-provision"
	KindPasscodeReset     Kind = "passcode-reset"
	KindDeleteUserData    Kind = "delete-user-data"
	KindLastActiveChanged Kind = "last-active-changed"
	KindVerifyAccount     Kind = "verify-account"
)

// Event is an outbound notification. Payload is marshalled as JSON and the
// account id is used as the message key.
type Event struct {
	Kind      Kind
	AccountID string
	Payload   any
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Topics struct {
	ProfileProvision  string
	PasscodeReset     string
	DeleteUserData    string
	LastActiveChanged string
	VerifyAccount     string
}

func DefaultTopics() Topics {
	return Topics{
		ProfileProvision:  "account.profile-provision",
		PasscodeReset:     "account.passcode-reset",
		DeleteUserData:    "account.delete-user-data",
		LastActiveChanged: "account.last-active-changed",
		VerifyAccount:     "account.verify-account",
	}
}

func (t Topics) For(kind Kind) (string, bool) {
	var topic string
	switch kind {
	case KindProfileProvision:
		topic = t.ProfileProvision
	case KindPasscodeReset:
		topic = t.PasscodeReset
	case KindDeleteUserData:
		topic = t.DeleteUserData
	case KindLastActiveChanged:
		topic = t.LastActiveChanged
	case KindVerifyAccount:
		topic = t.VerifyAccount
	}
	return topic, topic != ""
}

type ProfileProvision struct {
	AccountID   string `json:"user_id"`
	DisplayName string `json:"name"`
}

type PasscodeReset struct {
	AccountID string `json:"user_id"`
	Email     string `json:"email"`
}

type DeleteUserData struct {
	AccountID string `json:"user_id"`
}

type LastActiveChanged struct {
	AccountID  string    `json:"user_id"`
	LastActive time.Time `json:"last_active"`
}

type AccountVerified struct {
	AccountID string `json:"user_id"`
}

func NewProfileProvision(accountID, displayName string) Event {
	return Event{Kind: KindProfileProvision, AccountID: accountID, Payload: ProfileProvision{AccountID: accountID, DisplayName: displayName}}
}

func NewPasscodeReset(accountID, email string) Event {
	return Event{Kind: KindPasscodeReset, AccountID: accountID, Payload: PasscodeReset{AccountID: accountID, Email: email}}
}

func NewDeleteUserData(accountID string) Event {
	return Event{Kind: KindDeleteUserData, AccountID: accountID, Payload: DeleteUserData{AccountID: accountID}}
}

func NewLastActiveChanged(accountID string, at time.Time) Event {
	return Event{Kind: KindLastActiveChanged, AccountID: accountID, Payload: LastActiveChanged{AccountID: accountID, LastActive: at}}
}

// Handler receives inbound notifications. Implementations must be
// idempotent; delivery is at-least-once.
type Handler interface {
	HandleAccountVerified(ctx context.Context, msg AccountVerified) error
	HandleLastActiveChanged(ctx context.Context, msg LastActiveChanged) error
}
