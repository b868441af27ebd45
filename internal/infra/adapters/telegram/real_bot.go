package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"vpn-subscription-bot/internal/application"
	"vpn-subscription-bot/internal/config"
	"vpn-subscription-bot/internal/domain/ports/adapter"
	"vpn-subscription-bot/internal/infra/metrics"
	red "vpn-subscription-bot/internal/infra/redis"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter uses tgbotapi to poll updates and delegates to BotFacade.
// The facade is attached after construction because the usecases behind it
// send messages through this adapter.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	log         *zerolog.Logger

	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, rateLimiter *red.RateLimiter, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	compLog := logger.With().Str("component", "TelegramBot").Logger()
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		rateLimiter:   rateLimiter,
		log:           &compLog,
		updateWorkers: workers,
	}, nil
}

// Attach sets the facade used by the polling loop. It must be called before StartPolling.
func (r *RealTelegramBotAdapter) Attach(facade *application.BotFacade) { r.facade = facade }

func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if r.facade == nil {
		return errors.New("bot facade is not attached")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for up := range updateChan {
				if err := r.handleUpdate(ctx, up); err != nil {
					r.log.Error().Err(err).Int("worker", id).Int("update_id", up.UpdateID).Msg("update handling failed")
				}
			}
		}(i)
	}

	r.log.Info().Str("username", r.bot.Self.UserName).Int("workers", r.updateWorkers).Msg("polling started")
	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// SendMessage sends a text with optional inline buttons. A non-zero ThreadID posts
// into that forum topic, which tgbotapi v5 has no config type for.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, p adapter.SendMessageParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	markup := buildKeyboard(p.Buttons)

	if p.ThreadID == 0 {
		msg := tgbotapi.NewMessage(p.ChatID, p.Text)
		if markup != nil {
			msg.ReplyMarkup = *markup
		}
		_, err := r.bot.Send(msg)
		return err
	}

	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", p.ChatID)
	params.AddNonZero64("message_thread_id", p.ThreadID)
	params.AddNonEmpty("text", p.Text)
	if markup != nil {
		if err := params.AddInterface("reply_markup", markup); err != nil {
			return err
		}
	}
	_, err := r.bot.MakeRequest("sendMessage", params)
	return err
}

// IsChannelMember reports whether the user currently belongs to the channel.
func (r *RealTelegramBotAdapter) IsChannelMember(ctx context.Context, channelID, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m, err := r.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: channelID, UserID: userID},
	})
	if err != nil {
		return false, err
	}
	return isMemberStatus(m.Status, m.IsMember), nil
}

func isMemberStatus(status string, restrictedMember bool) bool {
	switch status {
	case "creator", "administrator", "member":
		return true
	case "restricted":
		return restrictedMember
	}
	return false
}

type forumTopic struct {
	MessageThreadID int64  `json:"message_thread_id"`
	Name            string `json:"name"`
}

func (r *RealTelegramBotAdapter) CreateForumTopic(ctx context.Context, chatID int64, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonEmpty("name", truncateRunes(name, 128))
	resp, err := r.bot.MakeRequest("createForumTopic", params)
	if err != nil {
		return 0, err
	}
	var topic forumTopic
	if err := json.Unmarshal(resp.Result, &topic); err != nil {
		return 0, fmt.Errorf("decode forum topic: %w", err)
	}
	if topic.MessageThreadID == 0 {
		return 0, errors.New("telegram returned no topic id")
	}
	return topic.MessageThreadID, nil
}

func (r *RealTelegramBotAdapter) CloseForumTopic(ctx context.Context, chatID, topicID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero64("message_thread_id", topicID)
	_, err := r.bot.MakeRequest("closeForumTopic", params)
	return err
}

// buildKeyboard converts button rows into an inline keyboard.
// - If btn.URL is set, the button opens a link
// - Else if btn.Data is set, the button sends callback data
// - Else the label doubles as callback data
func buildKeyboard(rows [][]adapter.InlineButton) *tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, out)
	}
	if len(kbRows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &markup
}

func truncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot || msg.Chat == nil {
		return nil
	}

	if r.cfg.SupportChatID != 0 && msg.Chat.ID == r.cfg.SupportChatID {
		return r.handleSupportChatMessage(ctx, msg)
	}
	if !msg.Chat.IsPrivate() || strings.TrimSpace(msg.Text) == "" {
		return nil
	}

	command := "message"
	if msg.IsCommand() {
		command = "/" + msg.Command()
	}
	if !r.allow(ctx, msg.From.ID, command) {
		return r.SendMessage(ctx, adapter.SendMessageParams{ChatID: msg.Chat.ID, Text: r.facade.T("rate_limited")})
	}

	if msg.IsCommand() {
		metrics.IncTelegramCommand(command)
		if fn, ok := r.commandRoutes()[msg.Command()]; ok {
			return fn(ctx, msg)
		}
		return r.reply(ctx, msg.Chat.ID, r.facade.MainMenu(r.facade.T("unknown_command")), nil)
	}

	reply, err := r.facade.HandleText(ctx, senderOf(msg.From), msg.Text)
	return r.reply(ctx, msg.Chat.ID, reply, err)
}

// handleSupportChatMessage relays an admin message posted inside a ticket topic.
// tgbotapi v5 does not expose message_thread_id, so the topic is taken from the
// topic's root message, which Telegram sets as reply_to_message for plain topic posts.
func (r *RealTelegramBotAdapter) handleSupportChatMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.ReplyToMessage == nil || strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	topicID := int64(msg.ReplyToMessage.MessageID)
	return r.facade.HandleTopicMessage(ctx, topicID, msg.Text)
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Stop the client spinner when we return
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	data := strings.TrimSpace(query.Data)

	if !r.allow(ctx, query.From.ID, "cb:"+data) {
		return r.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatID, Text: r.facade.T("rate_limited")})
	}

	s := senderOf(query.From)
	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, chatID, s, data)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, chatID, s, strings.TrimPrefix(data, pr.Prefix))
		}
	}
	return fmt.Errorf("unknown callback data %q", data)
}

// allow applies the per-user flood limit. Limiter failures let the update through.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64, command string) bool {
	if r.rateLimiter == nil {
		return true
	}
	limit := r.cfg.RateLimit
	if limit <= 0 {
		limit = 20
	}
	allowed, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(userID, command), limit, time.Minute)
	if err != nil {
		r.log.Warn().Err(err).Int64("tg_id", userID).Msg("rate limiter unavailable")
		return true
	}
	if !allowed {
		metrics.IncRateLimitTriggered()
	}
	return allowed
}

// reply renders a facade result. Facade errors are logged and answered with a generic message.
func (r *RealTelegramBotAdapter) reply(ctx context.Context, chatID int64, rep application.Reply, err error) error {
	if err != nil {
		r.log.Error().Err(err).Int64("chat_id", chatID).Msg("bot action failed")
		rep = application.Reply{Text: r.facade.T("generic_error")}
	}
	if strings.TrimSpace(rep.Text) == "" {
		return nil
	}
	return r.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatID, Text: rep.Text, Buttons: rep.Buttons})
}

func senderOf(u *tgbotapi.User) application.Sender {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	return application.Sender{ID: u.ID, FullName: name, Username: u.UserName}
}
