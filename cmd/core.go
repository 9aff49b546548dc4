package main

import (
	"context"

	"github.com/desertthunder/rolx/internal/audio"
	"github.com/desertthunder/rolx/internal/dsp"
	"github.com/desertthunder/rolx/internal/metadata"
	"github.com/desertthunder/rolx/internal/player"
	"github.com/desertthunder/rolx/internal/queue"
	"github.com/desertthunder/rolx/internal/resolver"
	"github.com/desertthunder/rolx/internal/server"
	"github.com/desertthunder/rolx/internal/stream"
	"github.com/desertthunder/rolx/internal/tasks"
)

// core is the in-process playback stack: resolver, queue, signal graph, pipeline, engine and
// the request/download tasks around them.
type core struct {
	store       *store
	resolver    *resolver.Resolver
	queue       *queue.Manager
	graph       *dsp.Graph
	pipeline    *audio.Pipeline
	engine      *player.Engine
	media       *server.MediaSession
	session     *tasks.Session
	downloader  *tasks.Downloader
	broadcaster *stream.Broadcaster
}

func (r *Runner) newCore(ctx context.Context) (*core, error) {
	cfg := r.config

	st, err := r.openStore()
	if err != nil {
		return nil, err
	}

	graph := dsp.NewGraph(dsp.Options{
		SampleRate:  audio.SampleRate,
		HallSeconds: cfg.Equalizer.HallSeconds,
		HallMix:     cfg.Equalizer.HallMix,
		MasterGain:  cfg.Equalizer.MasterGain,
		Logger:      r.logger,
	})
	if cfg.Equalizer.DefaultPreset != "" {
		if err := graph.SetPreset(cfg.Equalizer.DefaultPreset); err != nil {
			r.logger.Warn("ignoring default preset", "preset", cfg.Equalizer.DefaultPreset, "err", err)
		}
	}
	graph.SetHallEnabled(cfg.Equalizer.Hall)

	q := queue.NewManager(r.logger)
	pipeline := audio.NewPipeline(audio.FFmpegDecoder{Path: cfg.Playback.FFmpegPath}, r.logger)
	media := server.NewMediaSession()
	engine := player.New(player.Options{
		Output:                pipeline,
		Queue:                 q,
		Graph:                 graph,
		Session:               media,
		AppName:               cfg.App.Name,
		SkipPreviousThreshold: cfg.Playback.SkipPreviousThreshold,
		Logger:                r.logger,
	})

	res := r.newResolver(ctx, st.tracks)
	dopts := tasks.DownloadOptsFromConfig(cfg.Download, cfg.App.Name)
	dopts.UserAgent = cfg.Catalog.UserAgent

	return &core{
		store:       st,
		resolver:    res,
		queue:       q,
		graph:       graph,
		pipeline:    pipeline,
		engine:      engine,
		media:       media,
		session:     tasks.NewSession(res, engine, q, r.logger),
		downloader:  tasks.NewDownloader(r.httpClient, metadata.NewTagger(), st.downloads, dopts, r.logger),
		broadcaster: stream.NewBroadcaster(r.logger),
	}, nil
}

// start runs the pipeline, the engine and the frame fan-out until ctx is done. With local set,
// frames are also played on this machine.
func (r *Runner) start(ctx context.Context, c *core, local bool) {
	go c.pipeline.Run(ctx)
	go c.engine.Run(ctx)
	go c.broadcaster.Run(ctx, c.pipeline.Frames())

	if !local {
		return
	}
	sink := stream.NewLocalSink(c.broadcaster, r.config.Playback.FFplayPath, r.logger)
	go func() {
		if err := sink.Run(ctx); err != nil {
			r.logger.Error("local output stopped", "err", err)
		}
	}()
}

func (c *core) Close() error {
	c.engine.Stop()
	return c.store.Close()
}
