package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"coinfarm/bot"
	"coinfarm/impl/core"
	"coinfarm/internal/config"
	"coinfarm/internal/database"
	"coinfarm/internal/http-server/api"
	"coinfarm/lib/logger"
	"coinfarm/lib/sl"
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/coinfarm.log", "path to log file")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, *logPath)
	log.Info("starting coinfarm",
		slog.String("config", *configPath),
		slog.String("env", conf.Env),
		sl.Secret("token", conf.Telegram.Token),
	)

	db := database.NewMongoClient(conf)
	if err := db.EnsureIndexes(); err != nil {
		log.Error("preparing database", sl.Err(err))
		os.Exit(1)
	}

	tgBot, err := bot.NewTgBot(conf.Telegram.Token, db, log, bot.BotConfig{
		BotUsername:   conf.Telegram.BotUsername,
		AppUrl:        conf.Telegram.AppUrl,
		CommunityUrl:  conf.Telegram.CommunityUrl,
		Owners:        conf.Telegram.Owners,
		VerifyAdmin:   conf.Telegram.VerifyAdmin,
		MaxChannels:   conf.Telegram.MaxChannels,
		MembershipTTL: time.Duration(conf.Telegram.MembershipTTLMin) * time.Minute,
	})
	if err != nil {
		log.Error("launching bot", sl.Err(err))
		os.Exit(1)
	}

	// Errors logged anywhere in the service also reach the operators in
	// Telegram.
	log = slog.New(logger.NewTelegramHandler(log.Handler(), tgBot, slog.LevelError))

	statusCore := core.New(db, conf.Env, log)
	go func() {
		if err := api.New(conf, log, statusCore); err != nil {
			log.Error("api server stopped", sl.Err(err))
		}
	}()

	if err := tgBot.Start(); err != nil {
		log.Error("bot stopped", sl.Err(err))
		os.Exit(1)
	}
}
