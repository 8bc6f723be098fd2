package bot

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"coinfarm/entity"
	"coinfarm/lib/sl"
)

// start handles /start: the user record is created (or refreshed), a
// referral token in the payload credits the referrer once, and the user
// gets either a welcome message or a reminder of channels still to join.
func (t *TgBot) start(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	sender := ctx.EffectiveUser
	if sender == nil {
		return nil
	}
	chatId := sender.Id

	_, err := t.db.UpsertUser(chatId, sender.FirstName)
	if err != nil {
		t.reportError(chatId, "/start", err)
		return nil
	}

	if referrerId := referrerFrom(ctx.EffectiveMessage.Text); referrerId != 0 && referrerId != chatId {
		t.creditReferral(referrerId, chatId)
	}

	// The gate already confirmed membership where it could; this recheck is
	// cache-only and exists to catch entries that expired in between.
	missing, err := t.outstandingChannels(chatId, false)
	if err != nil {
		t.reportError(chatId, "/start", err)
		return nil
	}
	if len(missing) > 0 {
		t.sendJoinReminder(chatId, missing)
		return nil
	}
	t.sendWelcome(chatId)
	return nil
}

// creditReferral applies the referral bonus for referrerId bringing in
// referredId. A failure here never reaches the referred user; onboarding
// proceeds regardless.
func (t *TgBot) creditReferral(referrerId, referredId int64) {
	referrer, err := t.db.GetUserById(referrerId)
	if err != nil {
		t.log.Error("referrer lookup",
			slog.Int64("referrer_id", referrerId),
			sl.Err(err),
		)
		return
	}
	if referrer == nil {
		t.log.Debug("referral token with unknown referrer", slog.Int64("referrer_id", referrerId))
		return
	}

	credited, err := t.db.CreditReferral(referrerId, referredId)
	if err != nil {
		t.log.Error("crediting referral",
			slog.Int64("referrer_id", referrerId),
			slog.Int64("referred_id", referredId),
			sl.Err(err),
		)
		return
	}
	if credited {
		t.log.Info("referral credited",
			slog.Int64("referrer_id", referrerId),
			slog.Int64("referred_id", referredId),
		)
	}
}

// referrerFrom extracts the referrer id from a /start payload of the form
// "<prefix>_<referrerId>". Returns 0 when no valid token is present.
func referrerFrom(text string) int64 {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return 0
	}
	segments := strings.Split(parts[1], "_")
	if len(segments) < 2 {
		return 0
	}
	id, err := strconv.ParseInt(segments[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (t *TgBot) sendJoinReminder(chatId int64, channels []*entity.Channel) {
	var sb strings.Builder
	sb.WriteString("Hello \nYou need to join the following channels:")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(channels))
	for _, channel := range channels {
		sb.WriteString(fmt.Sprintf("\n- @%s", channel.Name))
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			{Text: "Join community", Url: channel.Url()},
		})
	}
	t.sendWithKeyboard(chatId, sb.String(), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (t *TgBot) sendWelcome(chatId int64) {
	var row []tgbotapi.InlineKeyboardButton
	if t.config.AppUrl != "" {
		row = append(row, tgbotapi.InlineKeyboardButton{
			Text: "Join our web app",
			Url:  t.appUrl(chatId),
		})
	}
	if t.config.CommunityUrl != "" {
		row = append(row, tgbotapi.InlineKeyboardButton{
			Text: "Our Community",
			Url:  t.config.CommunityUrl,
		})
	}

	text := "Welcome to CC Coin! 🎉✨\n\n" +
		"🚀 Get Started: Explore the amazing features and start earning CC COINS (CCs) right away!\n\n" +
		"🌐 Join Our Web App: Access all our exclusive features and manage your CCs efficiently by joining our web app. Simply click the button below!\n\n" +
		"💬 Connect with the Community: Engage with fellow users, share tips, and stay updated with the latest news.\n\n" +
		"🏅 Unlock Rewards: Participate in events, complete challenges, and earn exciting rewards. The adventure has just begun!\n\n" +
		"Tap the button below to get started:"

	if len(row) == 0 {
		t.plainResponse(chatId, text)
		return
	}
	t.sendWithKeyboard(chatId, text, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{row},
	})
}
