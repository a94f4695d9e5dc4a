package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/IBM/sarama"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx context.Context

	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func newClaim(msgs ...*sarama.ConsumerMessage) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &fakeClaim{msgs: ch}
}

func TestConsumeClaimMarksHandledAndDroppedMessages(t *testing.T) {
	var verified []string
	d := &Dispatcher{
		Topics: DefaultTopics(),
		Handler: &stubHandler{t: t, verifiedFunc: func(ctx context.Context, msg AccountVerified) error {
			verified = append(verified, msg.AccountID)
			return nil
		}},
	}
	h := &groupHandler{dispatcher: d, logger: slog.Default()}
	session := &fakeSession{ctx: context.Background()}

	claim := newClaim(
		&sarama.ConsumerMessage{Topic: "account.verify-account", Offset: 1, Value: []byte(`"` + testAccountID + `"`)},
		&sarama.ConsumerMessage{Topic: "account.verify-account", Offset: 2, Value: []byte(`{broken`)},
	)

	if err := h.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim returned error: %v", err)
	}
	if len(verified) != 1 {
		t.Fatalf("expected one verification, got %v", verified)
	}
	if len(session.marked) != 2 || session.marked[0] != 1 || session.marked[1] != 2 {
		t.Fatalf("unexpected marked offsets: %v", session.marked)
	}
}

func TestConsumeClaimStopsOnRetryableError(t *testing.T) {
	storeErr := errors.New("db down")
	calls := 0
	d := &Dispatcher{
		Topics: DefaultTopics(),
		Handler: &stubHandler{t: t, verifiedFunc: func(ctx context.Context, msg AccountVerified) error {
			calls++
			if calls == 2 {
				return storeErr
			}
			return nil
		}},
	}
	h := &groupHandler{dispatcher: d, logger: slog.Default()}
	session := &fakeSession{ctx: context.Background()}

	claim := newClaim(
		&sarama.ConsumerMessage{Topic: "account.verify-account", Offset: 10, Value: []byte(testAccountID)},
		&sarama.ConsumerMessage{Topic: "account.verify-account", Offset: 11, Value: []byte(testAccountID)},
		&sarama.ConsumerMessage{Topic: "account.verify-account", Offset: 12, Value: []byte(testAccountID)},
	)

	err := h.ConsumeClaim(session, claim)
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected processing to stop after failure, calls=%d", calls)
	}
	if len(session.marked) != 1 || session.marked[0] != 10 {
		t.Fatalf("failed message must stay unmarked: %v", session.marked)
	}
}

func TestConsumeClaimReturnsOnSessionEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := &groupHandler{dispatcher: &Dispatcher{Topics: DefaultTopics()}, logger: slog.Default()}
	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage)}

	if err := h.ConsumeClaim(&fakeSession{ctx: ctx}, claim); err != nil {
		t.Fatalf("ConsumeClaim returned error: %v", err)
	}
}
