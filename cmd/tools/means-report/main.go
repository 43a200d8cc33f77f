// cmd/tools/means-report/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bankruptcy-workers/internal/casefile"
	"bankruptcy-workers/internal/common/caselock"
	"bankruptcy-workers/internal/common/config"
	"bankruptcy-workers/internal/common/database"
	"bankruptcy-workers/internal/common/docintel"
	"bankruptcy-workers/internal/common/logger"
	"bankruptcy-workers/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openService).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

// openService wires the case file service the way the worker manager does,
// without Zeebe or review alerts.
func openService(ctx context.Context, configPath string) (CaseService, func(), error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewStructured("warn", "console")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Ping(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}

	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		pg.Close()
		return nil, nil, err
	}
	closeAll := func() {
		rdb.Close()
		pg.Close()
	}

	params, err := casefile.ParamsFromConfig(cfg.Reconciliation)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	tables, err := casefile.TablesFromConfig(cfg.MeansTest)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	svc, err := casefile.New(casefile.Deps{
		Store: repository.New(pg),
		Fetcher: docintel.NewClient(docintel.Config{
			BaseURL:    cfg.DocumentIntel.BaseURL,
			APIKey:     cfg.DocumentIntel.APIKey,
			Timeout:    config.GetDuration(cfg.DocumentIntel.Timeout),
			RetryCount: cfg.DocumentIntel.RetryCount,
		}, log),
		Locker: caselock.New(rdb.Client, caselock.Options{
			TTL:           config.GetDuration(cfg.Lock.TTL),
			WaitTimeout:   config.GetDuration(cfg.Lock.WaitTimeout),
			RetryInterval: config.GetDuration(cfg.Lock.RetryInterval),
		}),
	}, casefile.Options{
		Params:         params,
		Tables:         tables,
		MaxConcurrency: cfg.DocumentIntel.MaxConcurrency,
	}, log)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return svc, closeAll, nil
}
