package entity

import (
	"time"
)

// Channel is a mandatory channel every user must join before using the bot.
// Name is the public handle without the leading @. ChatId is the numeric
// chat id resolved when the channel was added; membership checks address
// the chat by this id. AddedAt orders the list, oldest first; the oldest
// record is the one evicted when the cap is exceeded.
type Channel struct {
	Name    string    `json:"name" bson:"name" validate:"required,min=1"`
	ChatId  int64     `json:"chat_id" bson:"chat_id" validate:"required"`
	AddedAt time.Time `json:"added_at" bson:"added_at"`
}

// Url returns the public join link for the channel.
func (c *Channel) Url() string {
	return "https://t.me/" + c.Name
}
