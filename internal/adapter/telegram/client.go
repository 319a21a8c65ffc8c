// Package telegram adapts the Telegram Bot API to inbound relay events.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/TTTPOB/chatgpt-tg-bot/internal/domain"
)

// pollTimeout is the long-poll timeout, in seconds, for GetUpdates.
const pollTimeout = 30

// Dispatcher handles one inbound event and returns the reply to send back.
// An empty reply means the event was ignored.
type Dispatcher interface {
	HandleEvent(ctx context.Context, ev domain.InboundEvent) string
}

// Client runs the long-polling update loop and converts Telegram updates to
// inbound events. Each update is handled on its own goroutine; per-session
// serialization happens inside the session layer.
type Client struct {
	bot           *tgbotapi.BotAPI
	dispatcher    Dispatcher
	handleTimeout time.Duration
	httpClient    *http.Client
}

// NewClient authenticates against the Bot API.
func NewClient(token string, dispatcher Dispatcher, handleTimeout time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate bot: %w", err)
	}
	return &Client{
		bot:           bot,
		dispatcher:    dispatcher,
		handleTimeout: handleTimeout,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// BotName returns the authenticated bot's username.
func (c *Client) BotName() string {
	return c.bot.Self.UserName
}

// Run consumes updates until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := c.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.Message
			if msg == nil || msg.From == nil {
				continue
			}
			go c.handle(ctx, msg)
		}
	}
}

// handle converts one message to an inbound event, dispatches it and sends
// the reply back to the originating chat.
func (c *Client) handle(ctx context.Context, msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(ctx, c.handleTimeout)
	defer cancel()

	log.Printf("got message from %d: %s", msg.From.ID, msg.Text)

	ev := domain.InboundEvent{
		SenderID: msg.From.ID,
		ChatType: msg.Chat.Type,
		Text:     msg.Text,
	}

	if msg.Voice != nil || msg.Audio != nil {
		audio, hint, err := c.downloadAudio(ctx, msg)
		if err != nil {
			log.Printf("failed to download audio from %d: %v", msg.From.ID, err)
			c.reply(msg.Chat.ID, fmt.Sprintf("%s: failed to download audio: %v", domain.RoleSystem, err))
			return
		}
		ev.Audio = audio
		ev.AudioHint = hint
	}

	replyText := c.dispatcher.HandleEvent(ctx, ev)
	if replyText == "" {
		return
	}
	c.reply(msg.Chat.ID, replyText)
	log.Printf("sent response to %d: %s", msg.From.ID, replyText)
}

// reply sends plain text back to a chat.
func (c *Client) reply(chatID int64, text string) {
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("WARN: failed to send reply to chat %d: %v", chatID, err)
	}
}

// downloadAudio fetches the voice or audio payload and reports its container
// hint. Voice notes are OGG/Opus; audio files keep their own extension.
func (c *Client) downloadAudio(ctx context.Context, msg *tgbotapi.Message) ([]byte, string, error) {
	var fileID, hint string
	switch {
	case msg.Voice != nil:
		fileID = msg.Voice.FileID
		hint = ".ogg"
		log.Printf("got voice message from %d", msg.From.ID)
	case msg.Audio != nil:
		fileID = msg.Audio.FileID
		hint = strings.ToLower(filepath.Ext(msg.Audio.FileName))
		if hint == "" {
			hint = ".m4a"
		}
		log.Printf("got audio message from %d", msg.From.ID)
	}

	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve file URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("file download returned status %d", resp.StatusCode)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file body: %w", err)
	}
	return payload, hint, nil
}
