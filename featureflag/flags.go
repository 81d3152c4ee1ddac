package featureflag

type Flag string

const (
	// Moves simulated entities by removing and adding them back instead of
	// using MoveItem.
	FlagDisableMoveItem Flag = "DISABLE_MOVE_ITEM"

	FlagDisableInverseQueries Flag = "DISABLE_INVERSE_QUERIES"
	FlagDisableRespawn        Flag = "DISABLE_RESPAWN"
)
