package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"folio/internal/batch"
	"folio/internal/config"
	"folio/internal/fileutil"
	"folio/internal/joblock"
	"folio/internal/jobs"
	"folio/internal/lifecycle"
	"folio/internal/naming"
	"folio/internal/store"
)

// runtime holds the collaborators every job-running command shares.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	machine  *lifecycle.Machine
	launcher *batch.Launcher
	catalog  *jobs.Catalog
	metrics  *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider

	closeLocker func() error
}

func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	table, err := loadTable(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	files := fileutil.Files{}
	namer := naming.New()
	machine := lifecycle.NewMachine(table, lifecycle.Env{Files: files, Namer: namer}, logger)
	machine.AddListener(st.TransitionLog())

	locker, closeLocker, err := joblock.New(ctx, cfg, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init job locks: %w", err)
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := batch.NewMetricsListener(provider)
	if err != nil {
		_ = closeLocker()
		st.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	catalog, err := jobs.NewCatalog(jobs.Deps{
		Config:    cfg,
		Repo:      st,
		Tx:        st,
		Machine:   machine,
		Files:     files,
		Namer:     namer,
		Blocked:   st,
		Listeners: []batch.ChunkListener{batch.LoggingListener{Logger: logger}, metrics},
		Logger:    logger,
	})
	if err != nil {
		_ = closeLocker()
		st.Close()
		return nil, err
	}

	var opts []batch.LauncherOption
	if locker != nil {
		opts = append(opts, batch.WithLocker(locker))
	}

	return &runtime{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		machine:     machine,
		launcher:    batch.NewLauncher(st, logger, opts...),
		catalog:     catalog,
		metrics:     reader,
		provider:    provider,
		closeLocker: closeLocker,
	}, nil
}

func loadTable(cfg *config.Config) (*lifecycle.Table, error) {
	path := strings.TrimSpace(cfg.Lifecycle.TablePath)
	if path == "" {
		return lifecycle.DefaultTable(), nil
	}
	table, err := lifecycle.LoadTableFile(path, lifecycle.DefaultRegistry())
	if err != nil {
		return nil, fmt.Errorf("load transition table: %w", err)
	}
	return table, nil
}

// launch builds and runs one job. The run is returned even when it failed.
func (r *runtime) launch(ctx context.Context, name string, params batch.Parameters) (*batch.JobRun, error) {
	job, err := r.catalog.Build(name, params)
	if err != nil {
		return nil, err
	}
	return r.launcher.Run(ctx, job, params)
}

func (r *runtime) Close() error {
	var errs []error
	if r.provider != nil {
		errs = append(errs, r.provider.Shutdown(context.Background()))
	}
	if r.closeLocker != nil {
		errs = append(errs, r.closeLocker())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}
