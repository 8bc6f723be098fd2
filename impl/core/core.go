package core

import (
	"fmt"
	"log/slog"
	"time"

	"coinfarm/entity"
	"coinfarm/lib/clock"
	"coinfarm/lib/sl"
)

type Database interface {
	CountUsers() (int64, error)
	GetChannels() ([]*entity.Channel, error)
}

// Core backs the read-only HTTP status surface.
type Core struct {
	db      Database
	env     string
	started time.Time
	log     *slog.Logger
}

func New(db Database, env string, log *slog.Logger) *Core {
	return &Core{
		db:      db,
		env:     env,
		started: time.Now(),
		log:     log.With(sl.Module("core")),
	}
}

func (c *Core) Status() (*entity.Status, error) {
	if c.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	users, err := c.db.CountUsers()
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	channels, err := c.db.GetChannels()
	if err != nil {
		return nil, fmt.Errorf("listing channels: %w", err)
	}
	return &entity.Status{
		Env:      c.env,
		Uptime:   clock.Uptime(c.started),
		Users:    users,
		Channels: channels,
	}, nil
}
