package errors

// GameNotFound is returned when a game id does not resolve
func GameNotFound(gameID string) *AppError {
	return NewNotFoundError(CodeGameNotFound, "Game with id "+gameID+" not found").
		WithDetails(map[string]string{"gameId": gameID})
}

// GamerNotFound is returned when a gamer id does not resolve
func GamerNotFound(gamerID string) *AppError {
	return NewNotFoundError(CodeGamerNotFound, "Gamer with id "+gamerID+" not found").
		WithDetails(map[string]string{"gamerId": gamerID})
}

// Validation wraps a request binding or validation failure
func Validation(err error) *AppError {
	return NewBadRequestError(CodeValidation, err.Error()).WithCause(err)
}

// InvalidSender is returned when a message names a sender that is neither
// the coach nor a gamer of the game
func InvalidSender(senderID, gameID string) *AppError {
	return NewBadRequestError(CodeInvalidSender, "Sender "+senderID+" is not part of game "+gameID).
		WithDetails(map[string]string{"senderId": senderID, "gameId": gameID})
}
