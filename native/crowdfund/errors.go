package crowdfund

import "fmt"

// Error is a guard violation carrying the canonical numeric code reported to
// callers. Guard failures leave the engine state untouched and emit no events.
type Error struct {
	Code    uint32
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("crowdfund: %s (code %d)", e.Message, e.Code)
}

var (
	ErrEmptyField             = &Error{Code: 101, Message: "title, description and link must not be empty"}
	ErrInvalidGoal            = &Error{Code: 102, Message: "funding goal must be positive"}
	ErrStartInPast            = &Error{Code: 103, Message: "campaign cannot start below the current height"}
	ErrInvalidDuration        = &Error{Code: 104, Message: "campaign end height is invalid or too far out"}
	ErrNotFound               = &Error{Code: 105, Message: "campaign not found"}
	ErrCannotCancel           = &Error{Code: 106, Message: "campaign already started"}
	ErrNotOwner               = &Error{Code: 107, Message: "caller does not own the campaign"}
	ErrNotStarted             = &Error{Code: 108, Message: "campaign has not started"}
	ErrCampaignEnded          = &Error{Code: 109, Message: "campaign has ended"}
	ErrZeroAmount             = &Error{Code: 110, Message: "pledge amount must be positive"}
	ErrGoalNotReached         = &Error{Code: 111, Message: "funding goal has not been reached"}
	ErrNoInvestment           = &Error{Code: 112, Message: "no investment recorded for caller"}
	ErrInsufficientInvestment = &Error{Code: 113, Message: "unpledge amount exceeds investment"}
	ErrCampaignActive         = &Error{Code: 114, Message: "campaign is still active"}
	ErrGoalWasReached         = &Error{Code: 115, Message: "campaign reached its funding goal"}
	ErrAlreadyClaimed         = &Error{Code: 116, Message: "campaign funds already claimed"}
)
