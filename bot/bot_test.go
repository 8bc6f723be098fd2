package bot

import (
	"fmt"
	"io"
	"log/slog"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"coinfarm/entity"
)

// fakeDB implements Database with overridable behavior and call recording.
type fakeDB struct {
	upsertUser     func(telegramId int64, name string) (*entity.User, error)
	getUserById    func(telegramId int64) (*entity.User, error)
	creditReferral func(referrerId, referredId int64) (bool, error)
	getChannels    func() ([]*entity.Channel, error)
	addChannel     func(channel *entity.Channel) error
	deleteOldest   func() (*entity.Channel, error)

	upsertCalls []int64
	creditCalls [][2]int64
	added       []*entity.Channel
	evictions   int
}

func (f *fakeDB) UpsertUser(telegramId int64, name string) (*entity.User, error) {
	f.upsertCalls = append(f.upsertCalls, telegramId)
	if f.upsertUser != nil {
		return f.upsertUser(telegramId, name)
	}
	return &entity.User{TelegramId: telegramId, Name: name, Points: entity.DefaultPoints}, nil
}

func (f *fakeDB) GetUserById(telegramId int64) (*entity.User, error) {
	if f.getUserById != nil {
		return f.getUserById(telegramId)
	}
	return nil, nil
}

func (f *fakeDB) CreditReferral(referrerId, referredId int64) (bool, error) {
	f.creditCalls = append(f.creditCalls, [2]int64{referrerId, referredId})
	if f.creditReferral != nil {
		return f.creditReferral(referrerId, referredId)
	}
	return true, nil
}

func (f *fakeDB) GetChannels() ([]*entity.Channel, error) {
	if f.getChannels != nil {
		return f.getChannels()
	}
	return nil, nil
}

func (f *fakeDB) AddChannel(channel *entity.Channel) error {
	f.added = append(f.added, channel)
	if f.addChannel != nil {
		return f.addChannel(channel)
	}
	return nil
}

func (f *fakeDB) DeleteOldestChannel() (*entity.Channel, error) {
	f.evictions++
	if f.deleteOldest != nil {
		return f.deleteOldest()
	}
	return nil, nil
}

type sentMessage struct {
	chatId int64
	text   string
	opts   *tgbotapi.SendMessageOpts
}

// newTestBot builds a TgBot with all outward Telegram calls intercepted.
// Sent messages are recorded; membership lookups default to "left".
func newTestBot(db Database, cfg BotConfig) (*TgBot, *[]sentMessage) {
	if cfg.MaxChannels == 0 {
		cfg.MaxChannels = 2
	}
	sent := &[]sentMessage{}
	t := &TgBot{
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		db:       db,
		config:   cfg,
		botId:    999,
		members:  newMembershipCache(cfg.MembershipTTL),
		sessions: newSessionStore(),
	}
	t.send = func(chatId int64, text string, opts *tgbotapi.SendMessageOpts) (*tgbotapi.Message, error) {
		*sent = append(*sent, sentMessage{chatId: chatId, text: text, opts: opts})
		return &tgbotapi.Message{}, nil
	}
	t.memberStatus = func(chatId, userId int64) (string, error) {
		return "left", nil
	}
	t.resolveChat = func(username string) (*chatInfo, error) {
		return nil, fmt.Errorf("chat not found: %s", username)
	}
	t.removeMessage = func(chatId, messageId int64) error {
		return nil
	}
	t.answerCallback = func(cq *tgbotapi.CallbackQuery, text string, alert bool) {}
	return t, sent
}

func msgContext(userId int64, text string) *ext.Context {
	user := tgbotapi.User{Id: userId, FirstName: "Test"}
	msg := tgbotapi.Message{
		MessageId: 1,
		Text:      text,
		Chat:      tgbotapi.Chat{Id: userId, Type: "private"},
		From:      &user,
	}
	return &ext.Context{
		Update:           &tgbotapi.Update{UpdateId: 1, Message: &msg},
		EffectiveMessage: &msg,
		EffectiveChat:    &msg.Chat,
		EffectiveUser:    &user,
	}
}

func cbContext(userId int64, data string) *ext.Context {
	user := tgbotapi.User{Id: userId, FirstName: "Test"}
	cq := tgbotapi.CallbackQuery{Id: "1", From: user, Data: data}
	return &ext.Context{
		Update:        &tgbotapi.Update{UpdateId: 2, CallbackQuery: &cq},
		EffectiveUser: &user,
	}
}

func channelFixture(name string, chatId int64) *entity.Channel {
	return &entity.Channel{Name: name, ChatId: chatId}
}
