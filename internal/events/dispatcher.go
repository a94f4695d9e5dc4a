package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"accountservice/internal/domain"
)

var ErrMalformed = errors.New("malformed_event")

// Dispatcher routes inbound messages to a Handler by topic.
//
// Dispatch returns nil when the message was handled or is permanently
// undeliverable (malformed payload, unknown account); such messages must not
// be redelivered. Any other error means the message should be retried.
type Dispatcher struct {
	Handler Handler
	Topics  Topics
	// LastActive, when set, absorbs last-active messages instead of applying
	// them one by one.
	LastActive *LastActiveBatcher
	Logger     *slog.Logger
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// InboundTopics lists the topics the dispatcher understands.
func (d *Dispatcher) InboundTopics() []string {
	return []string{d.Topics.VerifyAccount, d.Topics.LastActiveChanged}
}

func (d *Dispatcher) Dispatch(ctx context.Context, topic string, value []byte) error {
	err := d.dispatch(ctx, topic, value)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrMalformed) || errors.Is(err, domain.ErrNotFound) {
		d.logger().WarnContext(ctx, "events: dropping message", "topic", topic, "err", err)
		return nil
	}
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, topic string, value []byte) error {
	switch topic {
	case d.Topics.VerifyAccount:
		msg, err := decodeAccountVerified(value)
		if err != nil {
			return err
		}
		return d.Handler.HandleAccountVerified(ctx, msg)

	case d.Topics.LastActiveChanged:
		msg, err := decodeLastActiveChanged(value)
		if err != nil {
			return err
		}
		if d.LastActive != nil {
			d.LastActive.Add(msg)
			return nil
		}
		return d.Handler.HandleLastActiveChanged(ctx, msg)

	default:
		return fmt.Errorf("%w: unexpected topic %q", ErrMalformed, topic)
	}
}

// decodeAccountVerified accepts {"user_id": "..."}, a bare JSON string, or
// a raw uuid.
func decodeAccountVerified(value []byte) (AccountVerified, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return AccountVerified{}, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	var msg AccountVerified
	switch value[0] {
	case '{':
		if err := json.Unmarshal(value, &msg); err != nil {
			return AccountVerified{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case '"':
		if err := json.Unmarshal(value, &msg.AccountID); err != nil {
			return AccountVerified{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	default:
		id, err := uuid.ParseBytes(value)
		if err != nil {
			return AccountVerified{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		msg.AccountID = id.String()
	}

	msg.AccountID = strings.TrimSpace(msg.AccountID)
	if msg.AccountID == "" {
		return AccountVerified{}, fmt.Errorf("%w: user_id required", ErrMalformed)
	}
	return msg, nil
}

func decodeLastActiveChanged(value []byte) (LastActiveChanged, error) {
	var msg LastActiveChanged
	if err := json.Unmarshal(value, &msg); err != nil {
		return LastActiveChanged{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	msg.AccountID = strings.TrimSpace(msg.AccountID)
	if msg.AccountID == "" {
		return LastActiveChanged{}, fmt.Errorf("%w: user_id required", ErrMalformed)
	}
	if msg.LastActive.IsZero() {
		return LastActiveChanged{}, fmt.Errorf("%w: last_active required", ErrMalformed)
	}
	return msg, nil
}
