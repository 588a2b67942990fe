package randomness

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/coinflip-platform-poc/pkg/contracts/events"
)

// Source abstrai o consumo com commit manual de offset. O *kafka.Reader
// com GroupID satisfaz a interface.
type Source interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Consumer consome entregas do oráculo no Kafka e repassa ao engine.
// O offset só é commitado depois que a entrega foi aplicada ou
// descartada de vez: mensagens indecodificáveis vão pra DLQ, conflitos
// de estado (token desconhecido, aposta já resolvida) são reentregas
// benignas, e falha transitória segura a mesma mensagem em retry com
// backoff — a liquidação abortada precisa ver a entrega de novo.
type Consumer struct {
	Log    *zap.Logger
	Source Source
	Sink   Sink
	DLQ    *kafkago.Writer // opcional

	// IsConflict separa erro terminal (commita) de transitório (retry).
	IsConflict func(error) bool

	RetryBackoff time.Duration // default 500ms

	OnConsumed func()       // métricas (counter++)
	OnApplied  func()       // métricas
	OnError    func(string) // métricas por fase
}

// Run inicia o loop principal de consumo das entregas de randomness
func (c *Consumer) Run(ctx context.Context) error {
	backoff := c.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	for {
		m, err := c.Source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			c.Log.Warn("kafka fetch failed", zap.Error(err))
			if c.OnError != nil {
				c.OnError("read")
			}
			time.Sleep(backoff)
			continue
		}

		if c.OnConsumed != nil {
			c.OnConsumed()
		}

		var ev events.RandomnessFulfilled
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			c.Log.Warn("invalid fulfillment message", zap.Error(err))
			c.toDLQ(ctx, m)
			if c.OnError != nil {
				c.OnError("decode")
			}
			c.commit(ctx, m)
			continue
		}

		value, err := hex.DecodeString(ev.Value)
		if err != nil || len(value) == 0 {
			c.Log.Warn("invalid randomness value", zap.String("token", ev.Token), zap.Error(err))
			c.toDLQ(ctx, m)
			if c.OnError != nil {
				c.OnError("decode")
			}
			c.commit(ctx, m)
			continue
		}

		// aplica com retry na mesma mensagem; só então commita
		for {
			err := c.Sink.OnRandomness(ctx, ev.Token, value)
			if err == nil {
				if c.OnApplied != nil {
					c.OnApplied()
				}
				break
			}
			if c.IsConflict != nil && c.IsConflict(err) {
				// reentrega benigna: a aposta já saiu de REQUESTED
				c.Log.Info("fulfillment not applied", zap.String("token", ev.Token), zap.Error(err))
				break
			}
			// falha transitória (ledger, store): a entrega não pode se
			// perder, então segura o offset e tenta de novo
			c.Log.Warn("fulfillment apply failed, retrying",
				zap.String("token", ev.Token), zap.Error(err))
			if c.OnError != nil {
				c.OnError("apply")
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		c.commit(ctx, m)
	}
}

func (c *Consumer) commit(ctx context.Context, m kafkago.Message) {
	if err := c.Source.CommitMessages(ctx, m); err != nil {
		c.Log.Warn("kafka commit failed", zap.Error(err))
	}
}

func (c *Consumer) toDLQ(ctx context.Context, m kafkago.Message) {
	if c.DLQ == nil {
		return
	}
	_ = c.DLQ.WriteMessages(ctx, kafkago.Message{Key: m.Key, Value: m.Value, Time: time.Now()})
}
