// -----------------------------------------------------------------------
// Application wiring - constructs storage, services and the scheduler
// from a resolved configuration
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderwatch/internal/common"
	"github.com/ternarybob/tenderwatch/internal/interfaces"
	"github.com/ternarybob/tenderwatch/internal/services/extractor"
	"github.com/ternarybob/tenderwatch/internal/services/fetcher"
	"github.com/ternarybob/tenderwatch/internal/services/mailer"
	"github.com/ternarybob/tenderwatch/internal/services/pipeline"
	"github.com/ternarybob/tenderwatch/internal/services/scheduler"
	"github.com/ternarybob/tenderwatch/internal/services/scrape"
	"github.com/ternarybob/tenderwatch/internal/storage/badger"
)

// App holds the constructed application components
type App struct {
	Config    *common.Config
	Storage   interfaces.StorageManager
	Pipeline  interfaces.CrawlController
	Scheduler *scheduler.Service
	logger    arbor.ILogger
}

// New wires the application from a resolved configuration. The config is
// cloned so a caller reloading its copy cannot mutate live components; a
// settings change means building a fresh App.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	config = common.DeepCloneConfig(config)

	storage, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	lister := fetcher.NewWeChatLister(config.Fetcher, logger)
	fetchSvc := fetcher.NewService(lister, config.Fetcher, logger)
	retriever := scrape.NewService(config.Scrape, logger)
	extractSvc := extractor.NewService(config, logger)
	notifier := mailer.NewService(config.Email, logger)

	pipelineSvc := pipeline.NewService(config, fetchSvc, retriever, extractSvc, storage, notifier, logger)
	schedulerSvc := scheduler.NewService(pipelineSvc, config.Scheduler, logger)

	return &App{
		Config:    config,
		Storage:   storage,
		Pipeline:  pipelineSvc,
		Scheduler: schedulerSvc,
		logger:    logger,
	}, nil
}

// Reset drops all stored data.
func (a *App) Reset(ctx context.Context) error {
	return a.Storage.Reset(ctx)
}

// Close stops the scheduler and releases storage.
func (a *App) Close() error {
	a.Scheduler.Stop()
	if err := a.Storage.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close storage cleanly")
		return err
	}
	return nil
}
