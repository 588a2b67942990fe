package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/coinflip-platform-poc/pkg/contracts/events"
)

// Publisher espalha notificações de liquidação: Kafka pro pipeline de
// dados e Redis Pub/Sub pro settlement-feed (WebSocket). Qualquer um
// dos destinos pode ser nil.
type Publisher struct {
	Log     *zap.Logger
	Writer  *kafkago.Writer
	Redis   *redis.Client
	Channel string

	AssetWriter *kafkago.Writer // opcional, eventos de registro de ativo
}

func (p *Publisher) PublishBetSettled(ctx context.Context, ev events.BetSettled) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if p.Writer != nil {
		msg := kafkago.Message{Key: []byte(ev.Player), Value: b, Time: time.Now()}
		if err := p.Writer.WriteMessages(ctx, msg); err != nil {
			return err
		}
	}

	if p.Redis != nil {
		if err := p.Redis.Publish(ctx, p.Channel, b).Err(); err != nil {
			// o feed ao vivo é best-effort; o evento Kafka já saiu
			p.Log.Warn("redis publish failed", zap.Error(err))
		}
	}
	return nil
}

// PublishAssetRegistered anuncia um novo ativo apostável. Best-effort:
// o registro já foi persistido quando o evento sai.
func (p *Publisher) PublishAssetRegistered(ctx context.Context, ev events.AssetRegistered) {
	if p.AssetWriter == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	msg := kafkago.Message{Key: []byte(ev.Asset), Value: b, Time: time.Now()}
	if err := p.AssetWriter.WriteMessages(ctx, msg); err != nil {
		p.Log.Warn("asset event publish failed", zap.String("asset", ev.Asset), zap.Error(err))
	}
}
