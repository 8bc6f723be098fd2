// Package bot implements the Telegram bot gating a referral points program
// behind mandatory channel membership.
//
// Architecture overview:
//   - tgbot.go: TgBot struct, lifecycle (Start/Stop), Database interface
//   - gate.go: force-join gate, membership checks and join prompts
//   - commands.go: /start onboarding, referral crediting, welcome
//   - admin.go: operator-only channel administration (/add, /addchannel, /channels)
//   - membership.go: per-user cache of confirmed channel memberships
//   - menus.go: command menus via Telegram's BotCommandScope API
//   - helpers.go: shared utilities (Sanitize, plainResponse, reportError)
//
// Every incoming update passes the force-join gate before any command or
// callback handler runs: the gate checks the sender's membership in all
// mandatory channels (cache first, then live lookups) and stops processing
// with a join prompt when any is outstanding. Admitted updates reach the
// handlers, which read and write the user and channel collections.
//
// Thread safety: the membership cache and the operator session map carry
// their own locks; everything else is either immutable after Start or an
// atomic database operation.
package bot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"

	"coinfarm/entity"
	"coinfarm/lib/sl"
)

// gateGroup is the dispatcher group the force-join gate runs in; it is
// below the default group so the gate always sees an update first.
const gateGroup = -1

// BotConfig holds Telegram-specific configuration.
type BotConfig struct {
	BotUsername   string
	AppUrl        string
	CommunityUrl  string
	Owners        []int64
	VerifyAdmin   bool
	MaxChannels   int
	MembershipTTL time.Duration
}

// Database defines the storage operations the bot depends on.
// Implemented by internal/database/mongo.go.
type Database interface {
	UpsertUser(telegramId int64, name string) (*entity.User, error)
	GetUserById(telegramId int64) (*entity.User, error)
	CreditReferral(referrerId, referredId int64) (bool, error)
	GetChannels() ([]*entity.Channel, error)
	AddChannel(channel *entity.Channel) error
	DeleteOldestChannel() (*entity.Channel, error)
}

// chatInfo is the subset of a getChat result the bot needs when an operator
// submits a channel candidate.
type chatInfo struct {
	Id    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// TgBot is the central Telegram bot instance.
type TgBot struct {
	log      *slog.Logger
	api      *tgbotapi.Bot
	db       Database
	config   BotConfig
	botId    int64
	members  *membershipCache
	sessions *sessionStore
	updater  *ext.Updater

	// Outward Telegram calls go through these so tests can intercept them.
	send           func(chatId int64, text string, opts *tgbotapi.SendMessageOpts) (*tgbotapi.Message, error)
	memberStatus   func(chatId, userId int64) (string, error)
	resolveChat    func(username string) (*chatInfo, error)
	removeMessage  func(chatId, messageId int64) error
	answerCallback func(cq *tgbotapi.CallbackQuery, text string, alert bool)
}

func NewTgBot(apiKey string, db Database, log *slog.Logger, cfg BotConfig) (*TgBot, error) {
	if cfg.MaxChannels == 0 {
		cfg.MaxChannels = 2
	}

	t := &TgBot{
		log:      log.With(sl.Module("tgbot")),
		db:       db,
		config:   cfg,
		members:  newMembershipCache(cfg.MembershipTTL),
		sessions: newSessionStore(),
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	t.api = api
	t.botId = api.Id

	t.send = func(chatId int64, text string, opts *tgbotapi.SendMessageOpts) (*tgbotapi.Message, error) {
		return api.SendMessage(chatId, text, opts)
	}
	t.memberStatus = func(chatId, userId int64) (string, error) {
		member, err := api.GetChatMember(chatId, userId, nil)
		if err != nil {
			return "", err
		}
		return member.MergeChatMember().Status, nil
	}
	t.resolveChat = t.resolveChatRequest
	t.removeMessage = func(chatId, messageId int64) error {
		_, err := api.DeleteMessage(chatId, messageId, nil)
		return err
	}
	t.answerCallback = func(cq *tgbotapi.CallbackQuery, text string, alert bool) {
		_, err := cq.Answer(api, &tgbotapi.AnswerCallbackQueryOpts{Text: text, ShowAlert: alert})
		if err != nil {
			t.log.Debug("answering callback", sl.Err(err))
		}
	}

	return t, nil
}

func (t *TgBot) Start() error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	// The gate runs before every other group and stops the update when the
	// sender has outstanding mandatory channels.
	dispatcher.AddHandlerToGroup(handlers.NewMessage(message.All, t.forceJoinMessage), gateGroup)
	dispatcher.AddHandlerToGroup(handlers.NewCallback(callbackquery.All, t.forceJoinCallback), gateGroup)

	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("add", t.addChannel))
	dispatcher.AddHandler(handlers.NewCommand("addchannel", t.addChannel))
	dispatcher.AddHandler(handlers.NewCommand("channels", t.listChannels))
	dispatcher.AddHandler(handlers.NewMessage(plainText, t.onText))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbConfirmAdd), t.onConfirmAdd))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbCancelAdd), t.onCancelAdd))

	t.setCommandMenus()

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}

	t.log.Info("bot is running", slog.String("username", t.api.Username))
	t.updater.Idle()
	return nil
}

func (t *TgBot) Stop() {
	if t.updater != nil {
		t.log.Info("stopping telegram bot")
		t.updater.Stop()
	}
}

// plainText matches text messages that are not commands, so stray commands
// are never consumed as a channel name candidate.
func plainText(msg *tgbotapi.Message) bool {
	return message.Text(msg) && !message.Command(msg)
}

// resolveChatRequest looks a chat up by @username. The generated GetChat
// binding only accepts numeric ids, so this goes through a raw request.
func (t *TgBot) resolveChatRequest(username string) (*chatInfo, error) {
	raw, err := t.api.Request("getChat", map[string]string{"chat_id": username}, nil, nil)
	if err != nil {
		return nil, err
	}
	var info chatInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decoding chat: %w", err)
	}
	return &info, nil
}
