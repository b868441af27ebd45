package model

// Channel is a Telegram channel a user must join before claiming the trial.
type Channel struct {
	ID         int64
	Title      string
	InviteLink string
}
