package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"gridmatch/internal/config"
	"gridmatch/internal/logging"
	"gridmatch/internal/store"
	"gridmatch/internal/ws"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}

	st, err := store.New(cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	if err := st.EnsureSchema(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("schema bootstrap failed")
	}

	coord := ws.NewServer(st,
		time.Duration(cfg.DisconnectGraceSeconds)*time.Second,
		time.Duration(cfg.RoomIdleMinutes)*time.Minute)
	coord.StartJanitor(context.Background(), time.Minute)

	r := newRouter(st, coord)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}
