package randomness

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/radieske/coinflip-platform-poc/pkg/contracts/events"
)

// KafkaPort publica pedidos de randomness no tópico do oráculo.
// O token de correlação é um uuid gerado aqui.
type KafkaPort struct {
	Writer *kafkago.Writer
}

func NewKafkaPort(w *kafkago.Writer) *KafkaPort { return &KafkaPort{Writer: w} }

func (p *KafkaPort) RequestOne(ctx context.Context) (string, error) {
	token := uuid.NewString()
	b, _ := json.Marshal(events.RandomnessRequested{
		Token:    token,
		TsUnixMs: time.Now().UnixMilli(),
	})
	msg := kafkago.Message{Key: []byte(token), Value: b, Time: time.Now()}
	if err := p.Writer.WriteMessages(ctx, msg); err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return token, nil
}
