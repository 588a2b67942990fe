package feed

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Player: obrigatório em subscribe/unsubscribe ("*" assina tudo)
type ClientMsg struct {
	Type   string `json:"type"`
	Player string `json:"player"`
}
