package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/repositories"
	"github.com/desertthunder/rolx/internal/resolver"
	"github.com/desertthunder/rolx/internal/services"
	"github.com/desertthunder/rolx/internal/shared"
	"github.com/desertthunder/rolx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	api        *services.APIService
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, searchCommand, resolveCommand, playCommand, serveCommand, downloadCommand,
		eqCommand, queueCommand, cacheCommand, ctlCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// UseConfig swaps in a loaded configuration. It must run before any command builds a service.
func (r *Runner) UseConfig(config *shared.Config, path string) {
	r.config = config
	r.configPath = path
}

// control returns the daemon client, built from the configured listen address on first use.
func (r *Runner) control() *services.APIService {
	if r.api == nil {
		r.api = services.NewAPIService("http://"+r.config.Server.Addr(), r.httpClient)
	}
	return r.api
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// catalogService returns the configured catalog, building the HTTP client on first use.
func (r *Runner) catalogService(ctx context.Context) services.Catalog {
	if r.catalog == nil {
		client := services.NewCatalogClient(ctx, r.config.Catalog)
		r.catalog = services.NewSaavnService(r.config.Catalog, client, r.logger)
	}
	return r.catalog
}

// store is the sqlite-backed persistence shared by commands.
type store struct {
	db        *sql.DB
	tracks    *repositories.TrackRepository
	downloads *repositories.DownloadRepository
}

func (r *Runner) openStore() (*store, error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &store{
		db:        db,
		tracks:    repositories.NewTrackRepository(db),
		downloads: repositories.NewDownloadRepository(db),
	}, nil
}

func (s *store) Close() error {
	return s.db.Close()
}

func (r *Runner) newResolver(ctx context.Context, tracks *repositories.TrackRepository) *resolver.Resolver {
	opts := resolver.OptionsFromConfig(r.config.Resolver)
	opts.Catalog = r.catalogService(ctx)
	opts.Cache = repositories.NewTrackCacheAdapter(tracks, time.Duration(r.config.Resolver.CacheTTLMinutes)*time.Minute)
	opts.Logger = r.logger
	return resolver.New(opts)
}

// withProgress runs fn with a progress channel whose updates are printed as they arrive.
func (r *Runner) withProgress(fn func(progress chan<- tasks.ProgressUpdate) error) error {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		lastPercent := -10
		for update := range progress {
			if update.Phase == tasks.Download {
				if update.Step/10 == lastPercent/10 {
					continue
				}
				lastPercent = update.Step
			}
			r.printUpdate(update)
		}
	}()

	err := fn(progress)
	close(progress)
	<-done
	return err
}

func (r *Runner) printUpdate(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.Resolve:
		r.writePlain("🔍 %s\n", update.Message)
	case tasks.Queued:
		r.writePlain("   %s\n", update.Message)
	case tasks.Playback:
		r.writePlain("▶ %s\n", update.Message)
	case tasks.Download, tasks.Tag, tasks.Save:
		r.writePlain("📥 %s\n", update.Message)
	default:
		r.writePlain("%s\n", update.Message)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
