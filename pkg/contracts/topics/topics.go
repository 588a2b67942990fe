package topics

const (
	// Randomness (oráculo externo)
	RandomnessRequested = "randomness_requested"
	RandomnessFulfilled = "randomness_fulfilled"

	// Bets
	BetSettled = "bet_settled"

	// Ativos
	AssetRegistered = "asset_registered"

	// DLQs
	RandomnessFulfilledDLQ = "randomness_fulfilled_dlq"
)
