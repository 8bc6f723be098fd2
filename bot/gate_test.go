package bot

import (
	"fmt"
	"testing"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinfarm/entity"
)

func TestIsJoinedStatus(t *testing.T) {
	joined := []string{"member", "administrator", "creator"}
	for _, s := range joined {
		assert.True(t, isJoinedStatus(s), s)
	}
	notJoined := []string{"left", "kicked", "restricted", ""}
	for _, s := range notJoined {
		assert.False(t, isJoinedStatus(s), s)
	}
}

func TestForceJoinGate_NotMemberPrompted(t *testing.T) {
	db := &fakeDB{
		getChannels: func() ([]*entity.Channel, error) {
			return []*entity.Channel{channelFixture("news", -100)}, nil
		},
	}
	bot, sent := newTestBot(db, BotConfig{BotUsername: "CC_Coin_Farm_Bot"})

	err := bot.forceJoinMessage(nil, msgContext(42, "/start"))
	assert.Equal(t, ext.EndGroups, err)

	require.Len(t, *sent, 1)
	msg := (*sent)[0]
	assert.Equal(t, int64(42), msg.chatId)
	require.NotNil(t, msg.opts)
	keyboard, ok := msg.opts.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	// One join button plus the try-again deep link.
	require.Len(t, keyboard.InlineKeyboard, 2)
	assert.Equal(t, "https://t.me/news", keyboard.InlineKeyboard[0][0].Url)
	assert.Equal(t, "https://t.me/CC_Coin_Farm_Bot?start=start", keyboard.InlineKeyboard[1][0].Url)
}

func TestForceJoinGate_MemberAdmitted(t *testing.T) {
	db := &fakeDB{
		getChannels: func() ([]*entity.Channel, error) {
			return []*entity.Channel{channelFixture("news", -100)}, nil
		},
	}
	bot, sent := newTestBot(db, BotConfig{})
	bot.memberStatus = func(chatId, userId int64) (string, error) {
		return "member", nil
	}

	err := bot.forceJoinMessage(nil, msgContext(42, "hi"))
	assert.NoError(t, err)
	assert.Empty(t, *sent)
	assert.True(t, bot.members.Has(42, "news"))
}

func TestForceJoinGate_ConfirmedJoinIsCached(t *testing.T) {
	db := &fakeDB{
		getChannels: func() ([]*entity.Channel, error) {
			return []*entity.Channel{channelFixture("news", -100)}, nil
		},
	}
	bot, _ := newTestBot(db, BotConfig{})
	lookups := 0
	bot.memberStatus = func(chatId, userId int64) (string, error) {
		lookups++
		return "member", nil
	}

	require.NoError(t, bot.forceJoinMessage(nil, msgContext(42, "hi")))
	require.NoError(t, bot.forceJoinMessage(nil, msgContext(42, "hi again")))
	assert.Equal(t, 1, lookups)
}

func TestForceJoinGate_LookupFailureFailsClosed(t *testing.T) {
	db := &fakeDB{
		getChannels: func() ([]*entity.Channel, error) {
			return []*entity.Channel{channelFixture("news", -100)}, nil
		},
	}
	bot, sent := newTestBot(db, BotConfig{})
	bot.memberStatus = func(chatId, userId int64) (string, error) {
		return "", fmt.Errorf("api unavailable")
	}

	err := bot.forceJoinMessage(nil, msgContext(42, "hi"))
	assert.Equal(t, ext.EndGroups, err)
	assert.Len(t, *sent, 1)
	assert.False(t, bot.members.Has(42, "news"))
}

func TestForceJoinGate_ChannelListFailureDenies(t *testing.T) {
	db := &fakeDB{
		getChannels: func() ([]*entity.Channel, error) {
			return nil, fmt.Errorf("store down")
		},
	}
	bot, sent := newTestBot(db, BotConfig{})

	err := bot.forceJoinMessage(nil, msgContext(42, "hi"))
	assert.Equal(t, ext.EndGroups, err)
	assert.Empty(t, *sent)
}

func TestForceJoinGate_NoChannelsAdmits(t *testing.T) {
	bot, sent := newTestBot(&fakeDB{}, BotConfig{})

	err := bot.forceJoinMessage(nil, msgContext(42, "hi"))
	assert.NoError(t, err)
	assert.Empty(t, *sent)
}

func TestForceJoinGate_OnlyMissingChannelsListed(t *testing.T) {
	db := &fakeDB{
		getChannels: func() ([]*entity.Channel, error) {
			return []*entity.Channel{
				channelFixture("news", -100),
				channelFixture("chat", -200),
			}, nil
		},
	}
	bot, sent := newTestBot(db, BotConfig{BotUsername: "bot"})
	bot.memberStatus = func(chatId, userId int64) (string, error) {
		if chatId == -100 {
			return "member", nil
		}
		return "left", nil
	}

	err := bot.forceJoinMessage(nil, msgContext(42, "hi"))
	assert.Equal(t, ext.EndGroups, err)

	require.Len(t, *sent, 1)
	keyboard := (*sent)[0].opts.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, keyboard.InlineKeyboard, 2)
	assert.Equal(t, "https://t.me/chat", keyboard.InlineKeyboard[0][0].Url)
}

func TestForceJoinCallback_Gated(t *testing.T) {
	db := &fakeDB{
		getChannels: func() ([]*entity.Channel, error) {
			return []*entity.Channel{channelFixture("news", -100)}, nil
		},
	}
	bot, sent := newTestBot(db, BotConfig{})
	answered := ""
	bot.answerCallback = func(cq *tgbotapi.CallbackQuery, text string, alert bool) {
		answered = text
	}

	err := bot.forceJoinCallback(nil, cbContext(42, "ca:abc"))
	assert.Equal(t, ext.EndGroups, err)
	assert.NotEmpty(t, answered)
	assert.Len(t, *sent, 1)
}

func TestForceJoinCallback_MemberPasses(t *testing.T) {
	db := &fakeDB{
		getChannels: func() ([]*entity.Channel, error) {
			return []*entity.Channel{channelFixture("news", -100)}, nil
		},
	}
	bot, sent := newTestBot(db, BotConfig{})
	bot.memberStatus = func(chatId, userId int64) (string, error) {
		return "creator", nil
	}

	err := bot.forceJoinCallback(nil, cbContext(42, "ca:abc"))
	assert.NoError(t, err)
	assert.Empty(t, *sent)
}
