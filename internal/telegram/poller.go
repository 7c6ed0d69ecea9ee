package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"spendbot/internal/bot"
	"spendbot/internal/log"
)

// maxMessageLen keeps each outbound message under Telegram's 4096-char
// cap with headroom for entity expansion.
const maxMessageLen = 4000

const updateTimeoutSeconds = 60

// Poller runs the long-polling loop and translates between Telegram
// updates and the controller's transport-neutral replies.
type Poller struct {
	api        *tgbotapi.BotAPI
	controller *bot.Controller
	logger     *log.Logger
}

func NewPoller(token string, controller *bot.Controller, logger *log.Logger) (*Poller, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}

	return &Poller{
		api:        api,
		controller: controller,
		logger:     logger.WithComponent(log.ComponentTelegram),
	}, nil
}

// Run polls for updates until the context is cancelled. Each update is
// handled on its own goroutine; per-chat ordering is enforced by the
// controller's chat lock, not here.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Bot started", "username", p.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = updateTimeoutSeconds

	updates := p.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			p.api.StopReceivingUpdates()
			p.logger.Info("Bot stopped")
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			go p.handleMessage(ctx, update.Message)
		}
	}
}

func (p *Poller) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	replies := p.controller.HandleText(ctx, chatID, message.Text)
	for _, reply := range replies {
		p.send(ctx, chatID, reply)
	}
}

// send delivers one reply, splitting long text into chunks. The keyboard
// directive rides on the last chunk so it lands with the final message.
func (p *Poller) send(ctx context.Context, chatID int64, reply bot.Reply) {
	chunks := splitMessage(reply.Text, maxMessageLen)

	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if i == len(chunks)-1 {
			switch {
			case reply.SkipKeyboard:
				msg.ReplyMarkup = skipKeyboard()
			case reply.RemoveKeyboard:
				msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
			}
		}
		if _, err := p.api.Send(msg); err != nil {
			p.logger.ErrorContext(ctx, "Failed to send message",
				log.FieldChatID, chatID, log.FieldError, err)
			return
		}
	}
}

// skipKeyboard is the one-time reply keyboard offering the skip token
// during optional steps of the expense flow.
func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	markup := tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(bot.Skip),
		),
	)
	markup.ResizeKeyboard = true
	return markup
}

// splitMessage cuts text into chunks of at most max bytes, preferring
// newline boundaries so formatted lists stay readable.
func splitMessage(text string, max int) []string {
	if len(text) <= max {
		return []string{text}
	}

	var chunks []string
	for len(text) > max {
		cut := strings.LastIndexByte(text[:max], '\n')
		if cut <= 0 {
			cut = max
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
