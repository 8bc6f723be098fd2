package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"coinfarm/entity"
	"coinfarm/internal/database"
	"coinfarm/lib/sl"
)

// Callback data prefixes for the channel-add confirmation buttons.
// Telegram limits callback data to 64 bytes, so prefixes are kept short.
const (
	cbConfirmAdd = "ca:" // ca:<session token>
	cbCancelAdd  = "cx:" // cx:<session token>
)

// addSession tracks one operator's in-flight channel-add flow. Sessions are
// keyed by the operator id, so free text from anyone else is never consumed
// as a channel name, and a stale confirmation button cannot act on a newer
// flow: its token no longer matches.
type addSession struct {
	token        string
	awaitingName bool
	name         string
	chatId       int64
	startedAt    time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*addSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[int64]*addSession)}
}

func (s *sessionStore) begin(operatorId int64) *addSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &addSession{
		token:        uuid.New().String()[:8],
		awaitingName: true,
		startedAt:    time.Now(),
	}
	s.sessions[operatorId] = sess
	return sess
}

// takeAwaiting returns the operator's session and clears its awaiting-name
// flag in one step, so the next text message is consumed at most once.
func (s *sessionStore) takeAwaiting(operatorId int64) *addSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[operatorId]
	if sess == nil || !sess.awaitingName {
		return nil
	}
	sess.awaitingName = false
	return sess
}

func (s *sessionStore) setCandidate(operatorId int64, name string, chatId int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[operatorId]; sess != nil {
		sess.name = name
		sess.chatId = chatId
	}
}

// take removes and returns the operator's session when its token matches.
func (s *sessionStore) take(operatorId int64, token string) *addSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[operatorId]
	if sess == nil || sess.token != token {
		return nil
	}
	delete(s.sessions, operatorId)
	return sess
}

func (s *sessionStore) drop(operatorId int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, operatorId)
}

// addChannel handles /add and /addchannel. Non-operators are ignored
// without a reply.
func (t *TgBot) addChannel(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	if !t.isOwner(chatId) {
		return nil
	}

	sess := t.sessions.begin(chatId)
	t.sendWithKeyboard(chatId,
		"Send the channel username (without @) that users must join.",
		cancelKeyboard(sess.token),
	)
	return nil
}

// onText consumes the next free-text message of an operator with an
// awaiting-name session as the channel candidate. The candidate must
// resolve to a broadcast channel, and with verify_admin enabled the bot
// itself must be an administrator there before confirmation is offered.
func (t *TgBot) onText(_ *tgbotapi.Bot, ctx *ext.Context) error {
	sender := ctx.EffectiveUser
	if sender == nil {
		return nil
	}
	sess := t.sessions.takeAwaiting(sender.Id)
	if sess == nil {
		return nil
	}

	name := strings.TrimPrefix(strings.TrimSpace(ctx.EffectiveMessage.Text), "@")
	if name == "" {
		t.plainResponse(sender.Id, "Channel name cannot be empty.")
		t.sessions.drop(sender.Id)
		return nil
	}

	info, err := t.resolveChat("@" + name)
	if err != nil {
		t.log.Warn("chat lookup failed", slog.String("channel", name), sl.Err(err))
		t.plainResponse(sender.Id, fmt.Sprintf(
			"Cannot access @%s. Check the username and make sure the channel is public.", name))
		t.sessions.drop(sender.Id)
		return nil
	}
	if info.Type != "channel" {
		t.plainResponse(sender.Id, fmt.Sprintf("@%s is not a channel.", name))
		t.sessions.drop(sender.Id)
		return nil
	}
	if t.config.VerifyAdmin {
		status, err := t.memberStatus(info.Id, t.botId)
		if err != nil || !isAdminStatus(status) {
			if err != nil {
				t.log.Warn("bot status lookup failed", slog.String("channel", name), sl.Err(err))
			}
			t.plainResponse(sender.Id, fmt.Sprintf(
				"I must be an administrator in @%s before it can be made mandatory.", name))
			t.sessions.drop(sender.Id)
			return nil
		}
	}

	t.sessions.setCandidate(sender.Id, name, info.Id)
	t.sendWithKeyboard(sender.Id,
		fmt.Sprintf("Make @%s a mandatory channel?", name),
		confirmKeyboard(sess.token),
	)
	return nil
}

// onConfirmAdd commits the channel-add flow. If the cap is reached the
// oldest channel is evicted first, and its cached memberships with it.
func (t *TgBot) onConfirmAdd(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	operatorId := cq.From.Id
	if !t.isOwner(operatorId) {
		t.answerCallback(cq, "", false)
		return nil
	}

	token := strings.TrimPrefix(cq.Data, cbConfirmAdd)
	sess := t.sessions.take(operatorId, token)
	if sess == nil || sess.name == "" {
		t.answerCallback(cq, "This confirmation has expired", false)
		return nil
	}
	t.deleteCallbackMessage(cq)

	// Reject a duplicate before any eviction, so a failed add leaves the
	// store exactly as it was.
	channels, err := t.db.GetChannels()
	if err != nil {
		t.reportError(operatorId, "channel add", err)
		t.answerCallback(cq, "", false)
		return nil
	}
	for _, channel := range channels {
		if channel.Name == sess.name {
			t.plainResponse(operatorId, fmt.Sprintf("Channel @%s is already in the list.", sess.name))
			t.answerCallback(cq, "", false)
			return nil
		}
	}

	if len(channels) >= t.config.MaxChannels {
		evicted, err := t.db.DeleteOldestChannel()
		if err != nil {
			t.reportError(operatorId, "channel add", err)
			t.answerCallback(cq, "", false)
			return nil
		}
		if evicted != nil {
			t.members.InvalidateChannel(evicted.Name)
			t.log.Info("mandatory channel evicted", slog.String("channel", evicted.Name))
			t.plainResponse(operatorId, fmt.Sprintf(
				"Channel @%s removed to stay within the limit of %d.", evicted.Name, t.config.MaxChannels))
		}
	}

	err = t.db.AddChannel(&entity.Channel{
		Name:    sess.name,
		ChatId:  sess.chatId,
		AddedAt: time.Now().UTC(),
	})
	switch {
	case errors.Is(err, database.ErrAlreadyExists):
		t.plainResponse(operatorId, fmt.Sprintf("Channel @%s is already in the list.", sess.name))
	case err != nil:
		t.reportError(operatorId, "channel add", err)
	default:
		t.log.Info("mandatory channel added",
			slog.String("channel", sess.name),
			slog.Int64("operator_id", operatorId),
		)
		t.plainResponse(operatorId, fmt.Sprintf("Channel @%s added successfully!", sess.name))
	}
	t.answerCallback(cq, "", false)
	return nil
}

// onCancelAdd abandons the flow at either step without touching the store.
func (t *TgBot) onCancelAdd(_ *tgbotapi.Bot, ctx *ext.Context) error {
	cq := ctx.CallbackQuery
	operatorId := cq.From.Id
	if !t.isOwner(operatorId) {
		t.answerCallback(cq, "", false)
		return nil
	}

	token := strings.TrimPrefix(cq.Data, cbCancelAdd)
	if sess := t.sessions.take(operatorId, token); sess != nil {
		t.deleteCallbackMessage(cq)
	}
	t.answerCallback(cq, "Cancelled", false)
	return nil
}

// listChannels handles /channels: an operator-only listing of the current
// mandatory channels in eviction order.
func (t *TgBot) listChannels(_ *tgbotapi.Bot, ctx *ext.Context) error {
	if t.db == nil {
		return nil
	}
	chatId := ctx.EffectiveUser.Id
	if !t.isOwner(chatId) {
		return nil
	}

	channels, err := t.db.GetChannels()
	if err != nil {
		t.reportError(chatId, "/channels", err)
		return nil
	}
	if len(channels) == 0 {
		t.plainResponse(chatId, "No mandatory channels configured.")
		return nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Mandatory channels (%d of %d):", len(channels), t.config.MaxChannels))
	for _, channel := range channels {
		sb.WriteString(fmt.Sprintf("\n@%s (added %s)", channel.Name, channel.AddedAt.Format("2006-01-02 15:04")))
	}
	t.plainResponse(chatId, sb.String())
	return nil
}

func isAdminStatus(status string) bool {
	return status == "administrator" || status == "creator"
}

func cancelKeyboard(token string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{
			{{Text: "Cancel", CallbackData: cbCancelAdd + token}},
		},
	}
}

func confirmKeyboard(token string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{
			{
				{Text: "Yes", CallbackData: cbConfirmAdd + token},
				{Text: "No", CallbackData: cbCancelAdd + token},
			},
		},
	}
}
