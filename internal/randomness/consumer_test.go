package randomness

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/coinflip-platform-poc/pkg/contracts/events"
)

type fakeSource struct {
	mu        sync.Mutex
	msgs      []kafkago.Message
	next      int
	committed []int64
}

func (s *fakeSource) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	s.mu.Lock()
	if s.next < len(s.msgs) {
		m := s.msgs[s.next]
		s.next++
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (s *fakeSource) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.committed = append(s.committed, m.Offset)
	}
	return nil
}

func (s *fakeSource) commits() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.committed...)
}

type fakeSink struct {
	mu         sync.Mutex
	errs       []error // consumidos um por chamada; vazio = sucesso
	failAlways error   // se setado, toda chamada falha
	calls      int
}

func (s *fakeSink) OnRandomness(context.Context, string, []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAlways != nil {
		return s.failAlways
	}
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return err
	}
	return nil
}

func (s *fakeSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fulfillment(t *testing.T, token string, offset int64) kafkago.Message {
	t.Helper()
	word := make([]byte, 32)
	word[31] = 4
	b, err := json.Marshal(events.RandomnessFulfilled{
		Token:    token,
		Value:    hex.EncodeToString(word),
		TsUnixMs: time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafkago.Message{Offset: offset, Key: []byte(token), Value: b}
}

var errConflict = errors.New("bet already settled")

func runConsumer(t *testing.T, src *fakeSource, sink *fakeSink) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		Log:          zap.NewNop(),
		Source:       src,
		Sink:         sink,
		IsConflict:   func(err error) bool { return errors.Is(err, errConflict) },
		RetryBackoff: time.Millisecond,
	}
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("consumer did not stop")
		}
	})
	return cancel
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestTransientFailureRetriesSameDelivery(t *testing.T) {
	src := &fakeSource{msgs: []kafkago.Message{fulfillment(t, "tok-1", 7)}}
	// duas falhas transitórias antes do sucesso
	sink := &fakeSink{errs: []error{errors.New("credit payout: down"), errors.New("persist settlement: down")}}
	runConsumer(t, src, sink)

	waitFor(t, func() bool { return len(src.commits()) == 1 }, "commit")

	if got := sink.callCount(); got != 3 {
		t.Errorf("apply calls = %d, want 3 (2 retries + sucesso)", got)
	}
	if c := src.commits(); c[0] != 7 {
		t.Errorf("committed offset = %d, want 7", c[0])
	}
}

func TestCommitOnlyAfterApply(t *testing.T) {
	src := &fakeSource{msgs: []kafkago.Message{fulfillment(t, "tok-1", 1)}}
	// enquanto o apply falha, o offset nunca pode ser commitado
	sink := &fakeSink{failAlways: errors.New("store down")}
	runConsumer(t, src, sink)

	waitFor(t, func() bool { return sink.callCount() >= 3 }, "retries")
	if got := src.commits(); len(got) != 0 {
		t.Errorf("committed %v while apply still failing", got)
	}
}

func TestConflictCommitsWithoutRetry(t *testing.T) {
	src := &fakeSource{msgs: []kafkago.Message{
		fulfillment(t, "tok-1", 1),
		fulfillment(t, "tok-2", 2),
	}}
	// reentrega benigna no primeiro, sucesso no segundo
	sink := &fakeSink{errs: []error{errConflict}}
	runConsumer(t, src, sink)

	waitFor(t, func() bool { return len(src.commits()) == 2 }, "commits")

	if got := sink.callCount(); got != 2 {
		t.Errorf("apply calls = %d, want 2 (sem retry no conflito)", got)
	}
}

func TestUndecodableMessageIsCommitted(t *testing.T) {
	bad := kafkago.Message{Offset: 3, Value: []byte("not json")}
	src := &fakeSource{msgs: []kafkago.Message{bad, fulfillment(t, "tok-1", 4)}}
	sink := &fakeSink{}
	runConsumer(t, src, sink)

	waitFor(t, func() bool { return len(src.commits()) == 2 }, "commits")

	// a mensagem inválida não chega no sink, mas o offset avança
	if got := sink.callCount(); got != 1 {
		t.Errorf("apply calls = %d, want 1", got)
	}
	if c := src.commits(); c[0] != 3 || c[1] != 4 {
		t.Errorf("offsets = %v, want [3 4]", c)
	}
}
