package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"coinfarm/lib/sl"
)

func (t *TgBot) isOwner(chatId int64) bool {
	for _, id := range t.config.Owners {
		if id == chatId {
			return true
		}
	}
	return false
}

// isBlockedErr reports whether a send failed because the user blocked the
// bot. Distinguished from other delivery errors so it can be logged at a
// lower severity.
func isBlockedErr(err error) bool {
	var tgErr *tgbotapi.TelegramError
	return errors.As(err, &tgErr) && tgErr.Code == 403
}

func (t *TgBot) plainResponse(chatId int64, text string) {
	if text == "" {
		t.log.With("id", chatId).Debug("empty message")
		return
	}

	_, err := t.send(chatId, text, nil)
	if err != nil {
		t.logSendError(chatId, err)
	}
}

func (t *TgBot) sendWithKeyboard(chatId int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if text == "" {
		return
	}
	_, err := t.send(chatId, text, &tgbotapi.SendMessageOpts{
		ReplyMarkup: keyboard,
	})
	if err != nil {
		t.logSendError(chatId, err)
	}
}

func (t *TgBot) logSendError(chatId int64, err error) {
	if isBlockedErr(err) {
		t.log.Info("user blocked the bot", slog.Int64("id", chatId))
		return
	}
	t.log.With(slog.Int64("id", chatId)).Warn("sending message", sl.Err(err))
}

// NotifyOwners delivers a MarkdownV2 message to every configured operator,
// retrying without markup when formatting is rejected. Used by the Telegram
// slog handler to surface high-severity records.
func (t *TgBot) NotifyOwners(text string) {
	if text == "" {
		return
	}
	for _, id := range t.config.Owners {
		_, err := t.send(id, text, &tgbotapi.SendMessageOpts{
			ParseMode: "MarkdownV2",
		})
		if err == nil {
			continue
		}
		if isBlockedErr(err) {
			t.log.Info("owner blocked the bot", slog.Int64("id", id))
			continue
		}
		_, err = t.send(id, text, nil)
		if err != nil {
			t.log.With(slog.Int64("id", id)).Warn("notifying owner", sl.Err(err))
		}
	}
}

// reportError logs the failure, notifies the operators with details, and
// sends a neutral message to the affected user.
func (t *TgBot) reportError(chatId int64, op string, err error) {
	t.log.Error("bot operation failed",
		slog.String("op", op),
		slog.Int64("user_id", chatId),
		sl.Err(err),
	)
	t.NotifyOwners(fmt.Sprintf(
		"Operation `%s` failed\nUser: `%d`\nError: `%s`",
		Sanitize(op), chatId, Sanitize(err.Error()),
	))
	t.plainResponse(chatId, "Something went wrong. Please try again later.")
}

func (t *TgBot) deleteCallbackMessage(cq *tgbotapi.CallbackQuery) {
	msg := cq.Message
	if msg == nil {
		return
	}
	if im, ok := msg.(tgbotapi.Message); ok {
		if err := t.removeMessage(im.Chat.Id, im.MessageId); err != nil {
			t.log.Warn("deleting message", slog.Int64("id", im.Chat.Id), sl.Err(err))
		}
	}
}

// tryAgainUrl is the deep link a join prompt offers to re-run the gate.
func (t *TgBot) tryAgainUrl() string {
	return fmt.Sprintf("https://t.me/%s?start=start", t.config.BotUsername)
}

// appUrl is the launch-app deep link, parameterized by the user's id so it
// doubles as their shareable referral link.
func (t *TgBot) appUrl(chatId int64) string {
	return fmt.Sprintf("%s?start=ref_%d", t.config.AppUrl, chatId)
}

func Sanitize(input string) string {
	reservedChars := "\\_{}#+-.!|()[]=*"
	sanitized := ""
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized += "\\" + string(char)
		} else {
			sanitized += string(char)
		}
	}
	return sanitized
}
