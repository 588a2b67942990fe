package events

// Evento publicado no tópico "randomness_requested" quando o engine
// abre uma aposta e precisa de um valor aleatório do oráculo.
type RandomnessRequested struct {
	Token    string `json:"token"` // correlation token (uuid)
	TsUnixMs int64  `json:"ts_unix_ms"`
}

// Evento publicado no tópico "randomness_fulfilled" pelo oráculo.
// Value é um inteiro de 256 bits em hex (sem prefixo 0x), tratado
// como uniforme no domínio completo.
type RandomnessFulfilled struct {
	Token    string `json:"token"`
	Value    string `json:"value"` // 64 hex chars
	TsUnixMs int64  `json:"ts_unix_ms"`
}
