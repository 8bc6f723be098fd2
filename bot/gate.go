package bot

import (
	"log/slog"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"coinfarm/entity"
	"coinfarm/lib/sl"
)

// isJoinedStatus reports whether a chat member status counts as joined.
// "restricted" does not: a restricted member may not be able to see the
// channel at all.
func isJoinedStatus(status string) bool {
	switch status {
	case "member", "administrator", "creator":
		return true
	}
	return false
}

// outstandingChannels returns the mandatory channels the user has not been
// confirmed to have joined, in addition order. With probe set, channels not
// in the cache are checked against the live membership API and confirmed
// joins are cached; a failed lookup counts as not joined. Without probe
// only the cache is consulted.
func (t *TgBot) outstandingChannels(userId int64, probe bool) ([]*entity.Channel, error) {
	channels, err := t.db.GetChannels()
	if err != nil {
		return nil, err
	}

	var missing []*entity.Channel
	for _, channel := range channels {
		if t.members.Has(userId, channel.Name) {
			continue
		}
		if !probe {
			missing = append(missing, channel)
			continue
		}
		status, err := t.memberStatus(channel.ChatId, userId)
		if err != nil {
			// Fail closed: an unverifiable membership is a missing one.
			t.log.Warn("membership lookup failed",
				slog.String("channel", channel.Name),
				slog.Int64("user_id", userId),
				sl.Err(err),
			)
			missing = append(missing, channel)
			continue
		}
		if isJoinedStatus(status) {
			t.members.Add(userId, channel.Name)
		} else {
			missing = append(missing, channel)
		}
	}
	return missing, nil
}

// forceJoinMessage is the admission gate for message updates. It runs before
// all command handlers and ends processing with a join prompt when the
// sender has outstanding mandatory channels.
func (t *TgBot) forceJoinMessage(_ *tgbotapi.Bot, ctx *ext.Context) error {
	sender := ctx.EffectiveUser
	if sender == nil {
		return nil
	}
	missing, err := t.outstandingChannels(sender.Id, true)
	if err != nil {
		t.log.Error("force-join check", slog.Int64("user_id", sender.Id), sl.Err(err))
		return ext.EndGroups
	}
	if len(missing) == 0 {
		return nil
	}
	t.sendJoinPrompt(sender.Id, missing)
	return ext.EndGroups
}

// forceJoinCallback gates callback queries the same way, additionally
// answering the query so the client does not show a stuck spinner.
func (t *TgBot) forceJoinCallback(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	missing, err := t.outstandingChannels(cq.From.Id, true)
	if err != nil {
		t.log.Error("force-join check", slog.Int64("user_id", cq.From.Id), sl.Err(err))
		t.answerCallback(cq, "Something went wrong, try again later", false)
		return ext.EndGroups
	}
	if len(missing) == 0 {
		return nil
	}
	t.answerCallback(cq, "Please join the required channels first", true)
	t.sendJoinPrompt(cq.From.Id, missing)
	return ext.EndGroups
}

// sendJoinPrompt asks the user to join every outstanding channel, one join
// button per channel plus a "try again" deep link back into the bot.
func (t *TgBot) sendJoinPrompt(userId int64, channels []*entity.Channel) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(channels)+1)
	for _, channel := range channels {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			{Text: "Join community", Url: channel.Url()},
		})
	}
	if t.config.BotUsername != "" {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			{Text: "Try again", Url: t.tryAgainUrl()},
		})
	}

	t.sendWithKeyboard(userId,
		"Welcome to the CC Coin Community! 🚀\n\n"+
			"First step is to join our channel; join and click try again 👇",
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows},
	)
}
