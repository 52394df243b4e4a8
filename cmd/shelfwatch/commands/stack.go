package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"

	"github.com/shelfwatch/shelfwatch/internal/extract"
	"github.com/shelfwatch/shelfwatch/internal/fetch"
	"github.com/shelfwatch/shelfwatch/internal/logger"
	"github.com/shelfwatch/shelfwatch/internal/sites"
	"github.com/shelfwatch/shelfwatch/internal/store"
)

// stack bundles the wired-up collaborators shared by the commands.
type stack struct {
	registry *sites.Registry
	store    *store.Store
	browser  *fetch.Browser
	picker   *fetch.Picker
	pipeline *extract.Pipeline
	config   fetch.Config
}

// newStack initializes logging and builds the fetch/extract/store stack from
// the resolved configuration.
func newStack(withStore bool) (*stack, error) {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})

	registry, err := sites.Load(viper.GetString("sites"))
	if err != nil {
		return nil, fmt.Errorf("site catalog: %w", err)
	}
	logger.Info("site catalog loaded", "sites", registry.Len())

	cfg := fetch.DefaultConfig()
	browser := fetch.NewBrowser(cfg.UserAgent)
	picker := fetch.NewPicker(fetch.NewStatic(cfg), fetch.NewRendered(cfg, browser))

	// One pooled client with per-host ceilings shared by the pipeline's
	// network-backed stages.
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxConnsPerHost:     4,
		MaxIdleConnsPerHost: 2,
	}
	pipeline := extract.NewPipeline(extract.Options{
		Client:    &http.Client{Timeout: 20 * time.Second, Transport: transport},
		ProxyBase: viper.GetString("proxy_base"),
		UserAgent: cfg.UserAgent,
	})

	s := &stack{
		registry: registry,
		browser:  browser,
		picker:   picker,
		pipeline: pipeline,
		config:   cfg,
	}
	if withStore {
		s.store, err = store.Open(viper.GetString("db"))
		if err != nil {
			picker.Close()
			return nil, fmt.Errorf("store: %w", err)
		}
	}
	return s, nil
}

// close releases the stack's resources.
func (s *stack) close() {
	if s.picker != nil {
		_ = s.picker.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}
