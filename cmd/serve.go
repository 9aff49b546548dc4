package main

import (
	"context"
	"net/http"

	"github.com/desertthunder/rolx/internal/server"
	"github.com/desertthunder/rolx/internal/shared"
	"github.com/desertthunder/rolx/internal/stream"
	"github.com/urfave/cli/v3"
)

// Serve runs the playback daemon: the JSON control API, its event stream and the audio endpoints.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	c, err := r.newCore(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	r.start(ctx, c, cmd.Bool("local") || r.config.Playback.LocalOutput)

	api := server.NewAPI(server.APIOptions{
		Playback:    c.engine,
		Queue:       c.queue,
		Equalizer:   c.graph,
		Requests:    c.session,
		Downloads:   c.downloader,
		History:     c.store.downloads,
		Catalog:     r.catalogService(ctx),
		Media:       c.media,
		BaseContext: ctx,
		Logger:      r.logger,
	})
	defer api.Close()

	rtc := stream.NewWebRTCHandler(c.broadcaster, stream.WebRTCOptions{
		Bitrate:       r.config.Stream.OpusBitrate,
		ICEServers:    r.config.Stream.ICEServers,
		GatherTimeout: shared.Seconds(r.config.Stream.GatherSeconds),
		Logger:        r.logger,
	})
	defer rtc.Close()

	mp3 := stream.NewHTTPHandler(c.broadcaster, stream.HTTPOptions{
		FFmpegPath: r.config.Playback.FFmpegPath,
		Bitrate:    r.config.Stream.MP3Bitrate,
		Name:       r.config.App.Name,
		Logger:     r.logger,
	})

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	router.Handler(api)
	router.Handle(http.MethodGet, "/stream.mp3", mp3)
	router.Handle(http.MethodPost, "/webrtc", rtc)
	router.Handle(http.MethodGet, "/api/outputs", c.broadcaster)
	router.Index("/{$}")

	addr := r.config.Server.Addr()
	if a := cmd.String("addr"); a != "" {
		addr = a
	}

	r.writePlain("%s listening on http://%s\n", r.config.App.Name, addr)
	r.writePlain("  control API  http://%s/api/state\n", addr)
	r.writePlain("  audio        http://%s/stream.mp3\n", addr)
	r.logger.Debug("routes registered", "count", len(router.Routes()))

	return server.Serve(ctx, addr, server.CORS(cmd.String("cors-origin"))(router), r.logger)
}
