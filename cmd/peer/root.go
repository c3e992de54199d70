package main

import (
	"errors"
	"time"

	"github.com/dkeye/MeshCall/internal/adapters/rtc"
	sig "github.com/dkeye/MeshCall/internal/adapters/signal"
	"github.com/dkeye/MeshCall/internal/app/peer"
	"github.com/dkeye/MeshCall/internal/config"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const statsPeriod = 10 * time.Second

func newRootCmd() *cobra.Command {
	v := config.NewPeerViper()

	cmd := &cobra.Command{
		Use:   "meshcall-peer",
		Short: "Headless MeshCall participant",
		Long: `meshcall-peer joins a MeshCall room and negotiates a direct WebRTC session
with every other participant. It sends Opus silence and reports what it receives.

Examples:
  meshcall-peer --room standup
  meshcall-peer --server ws://relay:5000/ws --room standup --auto-call=false`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, v)
		},
	}

	f := cmd.Flags()
	f.String("server", "", "relay WebSocket URL")
	f.String("room", "", "room to join")
	f.StringSlice("stun", nil, "STUN server URLs")
	f.Bool("auto-call", true, "call every member already in the room")
	f.Bool("audio", true, "publish an audio track")
	f.Bool("video", false, "publish a video track")
	f.String("log-level", "", "log level")

	for key, flag := range map[string]string{
		"server":    "server",
		"room":      "room",
		"stun":      "stun",
		"auto_call": "auto-call",
		"audio":     "audio",
		"video":     "video",
		"log_level": "log-level",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

func run(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.LoadPeer(v)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(config.ParseLevel(cfg.LogLevel))
	ctx := cmd.Context()

	p := newPresenter(ctx)
	o := peer.New(
		silentCapture{Capture: rtc.Capture{StreamID: "meshcall", Audio: cfg.Audio, Video: cfg.Video}, ctx: ctx},
		rtc.Factory{Config: rtc.DefaultWebRTCConfig(cfg.STUN...)},
		peer.Options{AutoCall: cfg.AutoCall, Hooks: p.hooks()},
	)

	client, err := sig.Dial(ctx, cfg.Server, o.HandleMessage)
	if err != nil {
		return err
	}
	defer client.Close()
	o.Attach(client)

	if err := o.Join(ctx, domain.RoomName(cfg.Room)); err != nil {
		return err
	}
	log.Info().Str("module", "cli").Str("server", cfg.Server).Str("room", cfg.Room).Bool("auto_call", cfg.AutoCall).Msg("joined")

	ticker := time.NewTicker(statsPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.Close()
			p.close()
			return nil
		case <-client.Done():
			p.close()
			return errors.New("relay closed the channel")
		case <-ticker.C:
			p.report(o)
		}
	}
}
