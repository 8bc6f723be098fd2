package bot

import (
	"errors"
	"fmt"
	"testing"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain text", "plain text"},
		{"under_score", "under\\_score"},
		{"a-b.c!d", "a\\-b\\.c\\!d"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Sanitize(tt.input))
	}
}

func TestIsBlockedErr(t *testing.T) {
	blocked := &tgbotapi.TelegramError{Code: 403, Description: "Forbidden: bot was blocked by the user"}
	assert.True(t, isBlockedErr(blocked))
	assert.True(t, isBlockedErr(fmt.Errorf("sending: %w", blocked)))

	assert.False(t, isBlockedErr(&tgbotapi.TelegramError{Code: 400}))
	assert.False(t, isBlockedErr(errors.New("network down")))
	assert.False(t, isBlockedErr(nil))
}

func TestIsOwner(t *testing.T) {
	bot, _ := newTestBot(&fakeDB{}, BotConfig{Owners: []int64{10, 20}})

	assert.True(t, bot.isOwner(10))
	assert.True(t, bot.isOwner(20))
	assert.False(t, bot.isOwner(30))
}

func TestDeepLinks(t *testing.T) {
	bot, _ := newTestBot(&fakeDB{}, BotConfig{
		BotUsername: "coinfarm_bot",
		AppUrl:      "https://t.me/coinfarm_bot/app",
	})

	assert.Equal(t, "https://t.me/coinfarm_bot?start=start", bot.tryAgainUrl())
	assert.Equal(t, "https://t.me/coinfarm_bot/app?start=ref_42", bot.appUrl(42))
}

func TestNotifyOwners_FallsBackToPlainText(t *testing.T) {
	bot, sent := newTestBot(&fakeDB{}, BotConfig{Owners: []int64{10}})

	calls := 0
	bot.send = func(chatId int64, text string, opts *tgbotapi.SendMessageOpts) (*tgbotapi.Message, error) {
		calls++
		if opts != nil && opts.ParseMode == "MarkdownV2" {
			return nil, &tgbotapi.TelegramError{Code: 400, Description: "can't parse entities"}
		}
		*sent = append(*sent, sentMessage{chatId: chatId, text: text, opts: opts})
		return &tgbotapi.Message{}, nil
	}

	bot.NotifyOwners("status update")

	assert.Equal(t, 2, calls)
	if assert.Len(t, *sent, 1) {
		assert.Equal(t, int64(10), (*sent)[0].chatId)
		assert.Equal(t, "status update", (*sent)[0].text)
	}
}

func TestNotifyOwners_SkipsBlockedOwner(t *testing.T) {
	bot, sent := newTestBot(&fakeDB{}, BotConfig{Owners: []int64{10, 20}})

	bot.send = func(chatId int64, text string, opts *tgbotapi.SendMessageOpts) (*tgbotapi.Message, error) {
		if chatId == 10 {
			return nil, &tgbotapi.TelegramError{Code: 403}
		}
		*sent = append(*sent, sentMessage{chatId: chatId, text: text, opts: opts})
		return &tgbotapi.Message{}, nil
	}

	bot.NotifyOwners("status update")

	if assert.Len(t, *sent, 1) {
		assert.Equal(t, int64(20), (*sent)[0].chatId)
	}
}
