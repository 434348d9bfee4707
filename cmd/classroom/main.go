package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/Classroom/internal/adapters/admin"
	"github.com/dkeye/Classroom/internal/adapters/httpapi"
	"github.com/dkeye/Classroom/internal/adapters/sfu"
	signalc "github.com/dkeye/Classroom/internal/adapters/signal"
	"github.com/dkeye/Classroom/internal/adapters/token"
	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	flags := pflag.NewFlagSet("classroom", pflag.ExitOnError)
	flags.String("role", "student", "teacher, student or admin")
	flags.String("name", "", "display name announced to the room")
	flags.String("room", "", "room id to join (students)")
	flags.String("signaling_url", "http://localhost:3000", "signaling server http base")
	flags.String("signaling_ws", "ws://localhost:3000/ws", "signaling channel endpoint")
	flags.String("sfu_url", "", "sfu control endpoint")
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("failed to parse flags")
	}

	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	role, err := domain.ParseRole(cfg.Role)
	if err != nil {
		log.Fatal().Str("role", cfg.Role).Msg("unknown role")
	}

	if role == domain.RoleAdmin {
		runAdmin(ctx, cfg)
		return
	}
	runClassroom(ctx, cfg, role)
}

// runAdmin polls the room listing and serves it locally; admins have
// no classroom session.
func runAdmin(ctx context.Context, cfg *config.Config) {
	poller := admin.NewPoller(cfg.SignalingURL, cfg.AdminPollPeriod, func(rooms []domain.RoomInfo) {
		log.Info().Int("rooms", len(rooms)).Msg("room listing refreshed")
	})

	disp := app.NewDispatcher(16)
	go disp.Run()
	defer disp.Stop()

	roster := core.NewRoster()
	chat := core.NewChatLog()
	ctrl := app.NewController(disp.Post, roster, chat, nil, app.Config{})

	srv := statusServer(cfg, ctrl, poller.LastRooms)
	go poller.Run(ctx)

	<-ctx.Done()
	shutdown(srv)
}

func runClassroom(ctx context.Context, cfg *config.Config, role domain.Role) {
	disp := app.NewDispatcher(256)
	go disp.Run()
	defer disp.Stop()

	roster := core.NewRoster()
	chat := core.NewChatLog()
	tokens := token.NewClient(cfg.SignalingURL)

	ctrl := app.NewController(disp.Post, roster, chat, tokens, app.Config{
		SFUURL:      cfg.SFUURL,
		AckTimeout:  cfg.AckTimeout,
		PingPeriod:  cfg.PingPeriod,
		PingTimeout: cfg.PingTimeout,
	})

	media := sfu.NewSession(ctrl.MediaEvents(), disp.Post)
	ctrl.BindMedia(media)

	channel, err := signalc.Dial(ctx, cfg.SignalingWS, ctrl.ChannelEvents(), disp.Post)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect signaling channel")
	}
	defer channel.Close()
	ctrl.BindChannel(channel)

	if err := ctrl.SelectRole(role, cfg.Name); err != nil {
		log.Fatal().Err(err).Msg("failed to select role")
	}

	srv := statusServer(cfg, ctrl, nil)

	switch role {
	case domain.RoleTeacher:
		if err := ctrl.CreateRoom(ctx); err != nil {
			log.Error().Err(err).Msg("room create failed")
		}
	case domain.RoleStudent:
		if err := ctrl.JoinRoom(ctx, domain.RoomID(cfg.Room)); err != nil {
			log.Error().Err(err).Msg("room join failed")
		}
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	if err := ctrl.Leave(); err != nil {
		log.Warn().Err(err).Msg("leave on shutdown")
	}
	shutdown(srv)
	log.Info().Msg("Client exited gracefully")
}

func statusServer(cfg *config.Config, ctrl *app.Controller, rooms func() []domain.RoomInfo) *http.Server {
	r := httpapi.SetupRouter(cfg, ctrl, rooms)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.StatusPort),
		Handler: r,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("status server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("status server error")
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("status server forced to shutdown")
	}
}
