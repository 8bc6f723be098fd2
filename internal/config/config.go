package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/ilyakaznacheev/cleanenv"
)

// MaxOwners limits how many operator identities may manage the mandatory
// channel list.
const MaxOwners = 2

type Listen struct {
	BindIp string `yaml:"bind_ip" env:"BIND_IP" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env:"PORT" env-default:"3000"`
}

type TelegramConfig struct {
	Token            string  `yaml:"token" env:"BOT_TOKEN" env-default:""`
	BotUsername      string  `yaml:"bot_username" env:"BOT_USERNAME" env-default:""`
	AppUrl           string  `yaml:"app_url" env:"APP_URL" env-default:""`
	CommunityUrl     string  `yaml:"community_url" env:"COMMUNITY_URL" env-default:""`
	Owners           []int64 `yaml:"owners" env:"OWNER_IDS"`
	VerifyAdmin      bool    `yaml:"verify_admin" env:"VERIFY_ADMIN" env-default:"true"`
	MaxChannels      int     `yaml:"max_channels" env:"MAX_CHANNELS" env-default:"2"`
	MembershipTTLMin int     `yaml:"membership_ttl_min" env:"MEMBERSHIP_TTL_MIN" env-default:"0"`
}

type MongoConfig struct {
	Host     string `yaml:"host" env:"MONGO_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
	User     string `yaml:"user" env:"MONGO_USER" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"coinfarm"`
}

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Listen   Listen         `yaml:"listen"`
	Env      string         `yaml:"env" env:"ENV" env-default:"local"`
}

var instance *Config
var once sync.Once

func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("config: %s; %s", err, desc)
	}
	if len(conf.Telegram.Owners) > MaxOwners {
		return nil, fmt.Errorf("config: at most %d owners allowed, got %d", MaxOwners, len(conf.Telegram.Owners))
	}
	return conf, nil
}

func MustLoad(path string) *Config {
	once.Do(func() {
		conf, err := Load(path)
		if err != nil {
			log.Fatal(err)
		}
		instance = conf
	})
	return instance
}
