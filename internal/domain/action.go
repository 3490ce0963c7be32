package domain

// Action is the trading action produced by strategies and planners.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// IsTrade reports whether the action moves funds.
func (a Action) IsTrade() bool {
	return a == ActionBuy || a == ActionSell
}

// ParseAction converts a raw string into an Action, defaulting to HOLD.
func ParseAction(s string) Action {
	switch Action(s) {
	case ActionBuy, ActionSell:
		return Action(s)
	default:
		return ActionHold
	}
}
