package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// SendMessageParams describes one outgoing chat message. ThreadID targets a forum topic.
type SendMessageParams struct {
	ChatID   int64
	ThreadID int64
	Text     string
	Buttons  [][]InlineButton
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, params SendMessageParams) error
	IsChannelMember(ctx context.Context, channelID, userID int64) (bool, error)
	CreateForumTopic(ctx context.Context, chatID int64, name string) (int64, error)
	CloseForumTopic(ctx context.Context, chatID, topicID int64) error
}
