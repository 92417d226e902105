package config

import "github.com/caarlos0/env/v11"

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	DisconnectGraceSeconds int `env:"DISCONNECT_GRACE_SECONDS" envDefault:"10"`
	RoomIdleMinutes        int `env:"ROOM_IDLE_MINUTES" envDefault:"10"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}
