package bot

import (
	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"coinfarm/lib/sl"
)

// Command menus for Telegram's "/" button. Everyone sees /start; operators
// additionally get the channel administration commands, pushed with a
// per-chat scope so they stay invisible to regular users.

var commandsUser = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start earning CC COINS"},
}

var commandsOwner = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start earning CC COINS"},
	{Command: "add", Description: "Add a mandatory channel"},
	{Command: "channels", Description: "List mandatory channels"},
}

func (t *TgBot) setCommandMenus() {
	_, err := t.api.SetMyCommands(commandsUser, nil)
	if err != nil {
		t.log.Warn("setting default commands", sl.Err(err))
	}
	for _, id := range t.config.Owners {
		_, err = t.api.SetMyCommands(commandsOwner, &tgbotapi.SetMyCommandsOpts{
			Scope: tgbotapi.BotCommandScopeChat{ChatId: id},
		})
		if err != nil {
			t.log.Warn("setting owner commands", sl.Err(err))
		}
	}
}
