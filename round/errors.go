package round

import (
	"errors"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrInsufficientPlayers  = errors.New("at least 2 players required")
	ErrUnknownRound         = errors.New("no game with that id")
	ErrRoundEnded           = errors.New("game already ended")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrInvalidColumn        = errors.New("column out of range")
)
