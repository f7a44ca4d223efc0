package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"explora/internal/archiver"
	"explora/pkg/config"
	"explora/pkg/events"
	"explora/pkg/store"
	"explora/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	srv       *http.Server
	archClose context.CancelFunc
}

// New initializes resources that do not require a running context (DB,
// validation rules, runtime keys). It does not start the archiver or the
// HTTP server; call Run to start those and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	initValidation(eff)

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	return &App{eff: eff, version: version, commit: commit, buildDate: buildDate}, nil
}

// Run starts the event publisher, the archive scheduler and the HTTP server,
// and blocks until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	if err := events.Init(a.eff.Config.Events.URL, a.eff.Config.Events.Token); err != nil {
		return fmt.Errorf("failed to connect event publisher: %w", err)
	}

	archiver.SetEffectiveConfig(a.eff)
	cancelArch, err := archiver.Start(ctx, a.eff)
	if err != nil {
		return err
	}
	a.archClose = cancelArch

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.stop()
		return nil
	case err := <-errCh:
		a.stop()
		return err
	}
}

func (a *App) stop() {
	if a.archClose != nil {
		a.archClose()
	}
	if a.srv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(shutCtx)
	}
	events.Default.Close()
	_ = store.Close()
}

// validateConfig fails fast on configurations the server cannot run with.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.Config == nil {
		return fmt.Errorf("no configuration loaded")
	}
	if eff.DBPath == "" {
		return fmt.Errorf("db path is required (set --db, EXPLORA_DB_PATH or server.db_path)")
	}
	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert == "") != (key == "") {
		return fmt.Errorf("tls requires both cert_file and key_file")
	}
	return nil
}

// initValidation builds validation rules from config and sets them globally.
func initValidation(eff config.EffectiveConfigResult) {
	v := eff.Config.Validation
	validation.SetRules(validation.Rules{
		MaxContentBytes: v.MaxContentBytes.Int64(),
		MaxAuthorLen:    v.MaxAuthorLen,
		Roles:           append([]string{}, v.Roles...),
		Confidence:      append([]string{}, v.Confidence...),
	})
}
