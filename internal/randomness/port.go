package randomness

import (
	"context"
	"errors"
)

var ErrProviderUnavailable = errors.New("randomness provider unavailable")

// Port abstrai o pedido de um valor aleatório ao oráculo externo.
// A resposta nunca vem pelo retorno: chega depois, via Sink, correlacionada
// pelo token. Não há cancelamento de pedido em andamento.
type Port interface {
	// RequestOne emite um pedido e retorna o correlation token.
	RequestOne(ctx context.Context) (string, error)
}

// Sink recebe as entregas do oráculo (at-least-once, sem ordem garantida
// entre tokens). value é um inteiro de 256 bits big-endian.
type Sink interface {
	OnRandomness(ctx context.Context, token string, value []byte) error
}

// Config descreve o provedor ativo; ajustável em runtime pelo operador.
type Config struct {
	Provider     string `json:"provider"`      // ex: "kafka-oracle"
	RequestTopic string `json:"request_topic"` //
	FulfillTopic string `json:"fulfill_topic"`
	Subscription string `json:"subscription"` // group id do consumer
}
