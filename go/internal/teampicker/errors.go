package teampicker

import (
	"errors"

	"github.com/mcdev12/bzdash/go/clients"
)

var (
	ErrEmptyPool      = errors.New("no eligible players left")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrNotCommander   = errors.New("only commanders may drive the draft")
	ErrNotEligible    = errors.New("player is not in the eligible pool")
	ErrNoDraft        = errors.New("no team picker is open")
	ErrCommandPending = errors.New("command already in flight")
)

var commandVerbs = map[Command]string{
	CommandStart:      "start the team picker",
	CommandCoinToss:   "toss the coin",
	CommandPick:       "pick",
	CommandPickRandom: "pick",
	CommandFinalize:   "finalize",
	CommandRestart:    "restart",
}

// preconditionCodes are server codes shown verbatim even on a 403.
var preconditionCodes = map[string]bool{
	"missing_commanders":       true,
	"not_pregame":              true,
	"both_commanders_required": true,
}

// ErrorText maps a command failure onto the inline message shown next to the
// control. Server error codes are shown verbatim, except on auth failures.
func ErrorText(cmd Command, err error) string {
	if err == nil {
		return ""
	}
	code := clients.ErrorCode(err)

	switch {
	case clients.IsUnauthorized(err):
		return "please sign in"
	case clients.IsForbidden(err):
		if preconditionCodes[code] {
			return code
		}
		if cmd == CommandPick || cmd == CommandPickRandom {
			return "not your turn"
		}
		return "only commanders may " + commandVerbs[cmd]
	case code != "":
		return code
	case errors.Is(err, ErrNotYourTurn):
		return "not your turn"
	case errors.Is(err, ErrNotCommander):
		return "only commanders may " + commandVerbs[cmd]
	case errors.Is(err, ErrEmptyPool):
		return "no eligible players left"
	case errors.Is(err, ErrNotEligible):
		return "player already picked or not eligible"
	default:
		return "request failed, try again"
	}
}
