package bot

// Action is the pagination transition a button triggers.
type Action string

const (
	ActionLatest   Action = "latest"
	ActionNext     Action = "next"
	ActionPrevious Action = "previous"
	// ActionSend marks the current tweet processed and advances.
	ActionSend  Action = "send"
	ActionReset Action = "reset"
)

// Cursor is the pagination state carried (by token) in a button payload.
// Action is the required discriminator; a cursor without one is malformed.
type Cursor struct {
	Action  Action `json:"action"`
	TweetID int64  `json:"tweet_id"`
	ChatID  int64  `json:"chat_id"`
	UserID  uint   `json:"user_id"`
	// MessageIDs are the currently displayed messages for this cursor,
	// deleted and replaced on every transition.
	MessageIDs []int `json:"message_ids"`
}

// Valid reports whether the discriminator holds a known action.
func (c Cursor) Valid() bool {
	switch c.Action {
	case ActionLatest, ActionNext, ActionPrevious, ActionSend, ActionReset:
		return true
	}
	return false
}
