package notifier

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"
)

// Message is an incoming chat message reduced to what the bot acts on.
// FileID is set for photos and image documents.
type Message struct {
	ChatID   string
	Text     string
	FileID   string
	MimeType string
}

// HasImage reports whether the message carries an image upload.
func (m Message) HasImage() bool { return m.FileID != "" }

// MessageHandler is called for every incoming message and returns an HTML reply.
type MessageHandler func(ctx context.Context, msg Message) string

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text    string `json:"text"`
		Caption string `json:"caption"`
		Photo   []struct {
			FileID   string `json:"file_id"`
			FileSize int    `json:"file_size"`
		} `json:"photo"`
		Document *struct {
			FileID   string `json:"file_id"`
			MimeType string `json:"mime_type"`
		} `json:"document"`
	} `json:"message"`
}

// message converts an update; ok is false when there is nothing to act on.
func (u telegramUpdate) message() (Message, bool) {
	if u.Message == nil {
		return Message{}, false
	}
	m := Message{
		ChatID: strconv.FormatInt(u.Message.Chat.ID, 10),
		Text:   strings.TrimSpace(u.Message.Text),
	}
	if m.Text == "" {
		m.Text = strings.TrimSpace(u.Message.Caption)
	}
	switch {
	case len(u.Message.Photo) > 0:
		// Telegram lists photo sizes smallest first.
		m.FileID = u.Message.Photo[len(u.Message.Photo)-1].FileID
		m.MimeType = "image/jpeg"
	case u.Message.Document != nil && strings.HasPrefix(u.Message.Document.MimeType, "image/"):
		m.FileID = u.Message.Document.FileID
		m.MimeType = u.Message.Document.MimeType
	}
	return m, m.Text != "" || m.FileID != ""
}

const pollTimeout = 30

// getUpdates performs one long-poll request.
func (t *TelegramNotifier) getUpdates(ctx context.Context, offset int) ([]telegramUpdate, error) {
	ctx, cancel := context.WithTimeout(ctx, (pollTimeout+5)*time.Second)
	defer cancel()
	var updates []telegramUpdate
	err := t.call(ctx, "getUpdates", map[string]int{"offset": offset, "timeout": pollTimeout}, &updates)
	return updates, err
}

// StartPolling begins long-polling for Telegram messages. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler MessageHandler) {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("telegram polling stopped")
			return
		default:
		}

		updates, err := t.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("telegram polling stopped")
				return
			}
			log.Warn().Err(err).Msg("polling request failed")
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}
		offset = t.dispatch(ctx, updates, offset, handler)
	}
}

// dispatch hands each update to handler, replies in the originating chat
// and returns the next offset.
func (t *TelegramNotifier) dispatch(ctx context.Context, updates []telegramUpdate, offset int, handler MessageHandler) int {
	for _, update := range updates {
		offset = update.UpdateID + 1
		msg, ok := update.message()
		if !ok {
			continue
		}
		log.Info().Str("chat", msg.ChatID).Str("text", msg.Text).Bool("image", msg.HasImage()).Msg("received message")
		reply := handler(ctx, msg)
		if reply == "" {
			continue
		}
		if err := t.SendTo(ctx, msg.ChatID, reply); err != nil {
			log.Error().Err(err).Str("chat", msg.ChatID).Msg("send reply")
		}
	}
	return offset
}
