// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the configuration file and database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write the default config.toml",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "Search the catalog for songs",
		ArgsUsage: "<query>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "page",
				Usage: "Result page, starting at 1",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results to return",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Search,
	}
}

func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a track to a playable source",
		ArgsUsage: "<id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "title",
				Usage: "Known title, used for the search fallback",
			},
			&cli.StringFlag{
				Name:  "artist",
				Usage: "Known artist, used for the search fallback",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Resolve,
	}
}

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "Play tracks on this machine until the queue runs out",
		ArgsUsage: "<id> [id...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "preset",
				Usage: "Equalizer preset to apply",
			},
			&cli.BoolFlag{
				Name:  "hall",
				Usage: "Enable the hall reverb",
			},
			&cli.BoolFlag{
				Name:  "loop",
				Usage: "Repeat the current track",
			},
		},
		Action: r.Play,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the playback daemon with its control API and audio streams",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overriding [server] in the config",
			},
			&cli.StringFlag{
				Name:  "cors-origin",
				Usage: "Allowed CORS origin",
				Value: "*",
			},
			&cli.BoolFlag{
				Name:  "local",
				Usage: "Also play audio on this machine",
			},
		},
		Action: r.Serve,
	}
}

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Save a track as a tagged audio file",
		ArgsUsage: "<id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory to save into",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the finished job as JSON",
			},
		},
		Action: r.Download,
		Commands: []*cli.Command{
			{
				Name:  "history",
				Usage: "List recorded downloads",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show done or failed downloads",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.DownloadHistory,
			},
		},
	}
}

func eqCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "eq",
		Usage: "Equalizer presets",
		Commands: []*cli.Command{
			{
				Name:  "presets",
				Usage: "List the built-in presets",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.EQPresets,
			},
		},
	}
}

func queueCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "queue",
		Usage: "Queue operations",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Export the daemon's queue, or a list of tracks, to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, md, txt or json",
						Value:   "md",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file, or directory for Markdown",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Title for the export",
						Value: "Queue",
					},
					&cli.StringSliceFlag{
						Name:  "ids",
						Usage: "Export these tracks instead of the daemon's queue",
					},
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the export when done",
					},
				},
				Action: r.QueueExport,
			},
		},
	}
}

func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the resolved-track cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached tracks",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of tracks",
						Value: 50,
					},
					&cli.StringFlag{
						Name:  "artist-id",
						Usage: "Only tracks by this artist",
					},
					&cli.StringFlag{
						Name:  "language",
						Usage: "Only tracks in this language",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Evict tracks from the cache",
				ArgsUsage: "<id> [id...]",
				Action:    r.CacheRemove,
			},
		},
	}
}

// ctlCommand drives a running daemon over its control API
func ctlCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ctl",
		Usage: "Control a running daemon",
		Commands: []*cli.Command{
			{
				Name:  "state",
				Usage: "Show playback state",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CtlState,
			},
			{Name: "toggle", Usage: "Play or pause", Action: r.ctlAction("/api/toggle")},
			{Name: "pause", Usage: "Pause playback", Action: r.ctlAction("/api/pause")},
			{Name: "resume", Usage: "Resume playback", Action: r.ctlAction("/api/resume")},
			{Name: "next", Usage: "Skip to the next queued track", Action: r.ctlAction("/api/next")},
			{Name: "previous", Aliases: []string{"prev"}, Usage: "Restart the current track", Action: r.ctlAction("/api/previous")},
			{
				Name:      "seek",
				Usage:     "Seek to a position in seconds or m:ss",
				ArgsUsage: "<position>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "position"},
				},
				Action: r.CtlSeek,
			},
			{
				Name:  "loop",
				Usage: "Toggle loop mode",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "on", Usage: "Enable loop"},
					&cli.BoolFlag{Name: "off", Usage: "Disable loop"},
				},
				Action: r.CtlLoop,
			},
			{
				Name:      "preset",
				Usage:     "Apply an equalizer preset",
				ArgsUsage: "<name>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.CtlPreset,
			},
			{
				Name:      "play",
				Usage:     "Play tracks by id",
				ArgsUsage: "<id> [id...]",
				Action:    r.CtlPlay,
			},
			{
				Name:      "enqueue",
				Aliases:   []string{"add"},
				Usage:     "Add a track to the queue",
				ArgsUsage: "<id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "next",
						Usage: "Play it after the current track",
					},
				},
				Action: r.CtlEnqueue,
			},
			{
				Name:      "transport",
				Usage:     "Send a media-session action (play, pause, next, previous, seekforward, seekbackward)",
				ArgsUsage: "<action>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "action"},
				},
				Action: r.CtlTransport,
			},
			{
				Name:  "get",
				Usage: "Direct GET to the control API, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Compact JSON output",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON body to send",
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Interactive player",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Search results per query",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "mute",
				Usage: "Do not play audio on this machine",
			},
		},
		Action: r.TUI,
	}
}
