package entity

import (
	"time"
)

const (
	// DefaultPoints is the balance every user starts with.
	DefaultPoints = 10000
	// ReferralBonus is credited to a referrer for each new referred user.
	ReferralBonus = 600
	// DefaultImage is the cosmetic avatar tag assigned on registration.
	DefaultImage = "ccoin"
)

// User is a bot user with a points balance and a referral ledger.
// Created on the first /start; points only grow when this user refers
// someone (ReferralBonus per referral, applied atomically together with
// InvitedUsers and ReferredUsers by the database layer).
type User struct {
	TelegramId    int64     `json:"telegram_id" bson:"telegram_id" validate:"required"`
	Name          string    `json:"name" bson:"name"`
	Points        int64     `json:"points" bson:"points"`
	Image         string    `json:"image" bson:"image"`
	InvitedUsers  int64     `json:"invited_users" bson:"invited_users"`
	ReferredUsers []int64   `json:"referred_users" bson:"referred_users"`
	RegisteredAt  time.Time `json:"registered_at" bson:"registered_at"`
}

// HasReferred reports whether id is already recorded in the referral ledger.
// Used as the dedup guard: the same referred user never credits twice.
func (u *User) HasReferred(id int64) bool {
	for _, r := range u.ReferredUsers {
		if r == id {
			return true
		}
	}
	return false
}
