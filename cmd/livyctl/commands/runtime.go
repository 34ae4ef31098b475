// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"strings"

	"github.com/google/uuid"

	"github.com/bureau-foundation/livyctl/cmd/livyctl/cli"
	"github.com/bureau-foundation/livyctl/lib/clock"
	"github.com/bureau-foundation/livyctl/lib/config"
	"github.com/bureau-foundation/livyctl/lib/controller"
	"github.com/bureau-foundation/livyctl/lib/dispatch"
	"github.com/bureau-foundation/livyctl/lib/endpoint"
	"github.com/bureau-foundation/livyctl/lib/kernel"
	"github.com/bureau-foundation/livyctl/lib/livy"
	"github.com/bureau-foundation/livyctl/lib/session"
	"github.com/bureau-foundation/livyctl/lib/statefile"
)

// LogLevel is the level of the logger main hands to commands. Commands
// set it from the config file once that is loaded.
var LogLevel = new(slog.LevelVar)

// These are swapped by tests.
var (
	stdin  io.Reader = os.Stdin
	stderr io.Writer = os.Stderr
	now              = clock.Real()
)

// globalParams are accepted by every command that talks to a session.
type globalParams struct {
	ConfigPath string `flag:"config" desc:"config file (default $LIVYCTL_CONFIG)"`
	Endpoint   string `flag:"endpoint,e" desc:"endpoint name from the config file, or a connection string: url=...;username=...;password=..."`
	Session    string `flag:"session,n" desc:"logical session name (default derived from user and endpoint)"`
	LogLevel   string `flag:"log-level" desc:"debug, info, warn or error (default from config)"`
}

// openOptions adjust how a runtime is assembled for one command.
type openOptions struct {
	// sampling overrides the configured query sampling.
	sampling *session.Sampling

	// tablesToStderr sends displayed text to stderr, leaving stdout for
	// JSON bindings.
	tablesToStderr bool
}

// runtime is everything one command invocation needs: the loaded
// configuration, one endpoint, a controller seeded from the state
// file, and a kernel over the logical session.
type runtime struct {
	config     *config.Config
	logger     *slog.Logger
	endpoint   *endpoint.Endpoint
	controller *controller.Controller
	kernel     *kernel.Kernel
	display    *streamDisplay
	bindings   *bindings
	stateKey   *statefile.Key
	statePath  string
}

func (g *globalParams) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case g.ConfigPath != "":
		cfg, err = config.LoadFile(g.ConfigPath)
	case os.Getenv(config.EnvVar) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolveEndpoint treats a value containing "=" as a connection string
// and anything else as a configured endpoint name.
func (g *globalParams) resolveEndpoint(cfg *config.Config) (*endpoint.Endpoint, error) {
	if strings.Contains(g.Endpoint, "=") {
		return endpoint.Parse(g.Endpoint)
	}
	return cfg.Endpoint(g.Endpoint)
}

// open assembles the runtime for one command. The caller must call
// finish.
func (g *globalParams) open(logger *slog.Logger, options openOptions) (*runtime, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	LogLevel.Set(level)

	ep, err := g.resolveEndpoint(cfg)
	if err != nil {
		return nil, err
	}

	name := g.Session
	if name == "" {
		name = cfg.Defaults.SessionName
	}
	if name == "" {
		name = defaultSessionName(ep)
	}
	logger = logger.With("session", name, "endpoint", ep.URL())

	stateKey, err := statefile.LoadKey(cfg.StateDir)
	if err != nil {
		ep.Close()
		return nil, err
	}
	fail := func(err error) (*runtime, error) {
		stateKey.Close()
		ep.Close()
		return nil, err
	}

	state, err := statefile.Load(cfg.StateDir, stateKey, ep.Identity(), name)
	if err != nil {
		return fail(err)
	}

	language := state.Language
	if language == "" {
		language, err = session.ParseLanguage(cfg.Defaults.Language)
		if err != nil {
			return fail(err)
		}
	}
	sessionConfig := state.Config
	if state.UpdatedAt.IsZero() {
		sessionConfig, err = cfg.SessionConfig()
		if err != nil {
			return fail(err)
		}
	}

	ctrl := controller.New(controller.Config{
		Clock:  now,
		Logger: logger,
		Retry: livy.RetryPolicy{
			MaxAttempts:      cfg.Retry.MaxAttempts,
			InitialBackoff:   cfg.Retry.InitialBackoff,
			MaxBackoff:       cfg.Retry.MaxBackoff,
			RetryStatusCodes: livy.DefaultRetryPolicy().RetryStatusCodes,
		},
		Polling: controller.PollingConfig{
			StartTimeout:     cfg.Polling.StartTimeout,
			StatementTimeout: cfg.Polling.StatementTimeout,
			InitialInterval:  cfg.Polling.InitialInterval,
			MaxInterval:      cfg.Polling.MaxInterval,
		},
	})
	restored := ctrl.Restore(ep, state.Sessions)
	_, tracked := ctrl.GetSessionIDForClient(ep, name)
	logger.Debug("state loaded", "restored", restored, "started", state.Started && tracked)

	display := &streamDisplay{out: cli.Stdout, errOut: stderr}
	if options.tablesToStderr {
		display.out = stderr
	}
	values := newBindings()

	k := kernel.New(kernel.Config{
		SessionName:   name,
		Endpoint:      ep,
		Controller:    ctrl,
		Executor:      dispatch.New(values, cfg.Sampling),
		Display:       display,
		Language:      language,
		SessionConfig: sessionConfig,
		Sampling:      options.sampling,
		Started:       state.Started && tracked,
	})

	return &runtime{
		config:     cfg,
		logger:     logger,
		endpoint:   ep,
		controller: ctrl,
		kernel:     k,
		display:    display,
		bindings:   values,
		stateKey:   stateKey,
		statePath:  statefile.Path(cfg.StateDir, ep.Identity(), name),
	}, nil
}

// save writes the kernel's state for the next invocation.
func (r *runtime) save() error {
	if err := r.config.EnsureStateDir(); err != nil {
		return err
	}
	guard := r.kernel.Guard()
	return statefile.Write(r.statePath, r.stateKey, statefile.State{
		EndpointIdentity: r.endpoint.Identity(),
		SessionName:      r.kernel.SessionName(),
		Language:         guard.Language(),
		Config:           guard.Config(),
		Started:          r.kernel.SessionStarted(),
		Sessions:         r.controller.Snapshot(),
		UpdatedAt:        now.Now().UTC(),
	})
}

// finish persists state, releases the endpoint and the state key, and
// folds the command's outcome into one error. A failure already shown
// on the display exits 1 without further output.
func (r *runtime) finish(err error) error {
	saveErr := r.save()
	r.stateKey.Close()
	r.endpoint.Close()
	if err != nil {
		if saveErr != nil {
			r.logger.Warn("saving state failed", "error", saveErr)
		}
		return err
	}
	if saveErr != nil {
		return fmt.Errorf("saving state: %w", saveErr)
	}
	if r.display.failed {
		return &cli.ExitError{Code: cli.ExitFailure}
	}
	return nil
}

// view returns the controller's record of the kernel's session.
func (r *runtime) view() (session.View, bool) {
	name := r.kernel.SessionName()
	for _, view := range r.controller.Snapshot() {
		if view.Name == name && view.EndpointIdentity == r.endpoint.Identity() {
			return view, true
		}
	}
	return session.View{}, false
}

// run opens a runtime, calls action, and finishes.
func (g *globalParams) run(logger *slog.Logger, options openOptions, action func(*runtime) error) error {
	r, err := g.open(logger, options)
	if err != nil {
		return err
	}
	return r.finish(action(r))
}

// defaultSessionName derives a stable name from the local user and the
// endpoint, so repeated invocations find the same session and two users
// sharing an endpoint do not collide.
func defaultSessionName(ep *endpoint.Endpoint) string {
	username := os.Getenv("USER")
	if current, err := user.Current(); err == nil {
		username = current.Username
	}
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(ep.Identity()+"/"+username))
	return "livyctl-" + id.String()[:8]
}

// readSource returns the text of path, or of stdin when path is "" or
// "-".
func readSource(path string) (string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", displayPath(path), err)
	}
	return string(data), nil
}

func displayPath(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return path
}
