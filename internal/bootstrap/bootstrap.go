// Package bootstrap wires the configuration into the clients shared by the
// server and the worker.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/netswatch/internal/config"
	"github.com/OFFIS-RIT/netswatch/internal/metrics"
	"github.com/OFFIS-RIT/netswatch/internal/migrations"
	"github.com/OFFIS-RIT/netswatch/internal/queue"
	"github.com/OFFIS-RIT/netswatch/internal/scheduler"
	"github.com/OFFIS-RIT/netswatch/internal/storage"
	"github.com/OFFIS-RIT/netswatch/pkg/graph"
	"github.com/OFFIS-RIT/netswatch/pkg/leaselock"
	"github.com/OFFIS-RIT/netswatch/pkg/logger"
	"github.com/OFFIS-RIT/netswatch/pkg/reconcile"
	"github.com/OFFIS-RIT/netswatch/pkg/store/etcd"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
)

type Deps struct {
	Metrics    *metrics.Registry
	Store      *etcd.Client
	Graph      *graph.GraphClient
	Reconciler *reconcile.Reconciler
	Syncer     *scheduler.Syncer

	// Channel is nil when no broker is configured.
	Channel *amqp091.Channel

	closers []func()
}

// Close releases every connection opened by Build, newest first.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// Build creates the store, graph, reconcile and sync clients. The lease
// lock, broker and report archive are only set up when configured.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Deps, error) {
	d := &Deps{Metrics: metrics.NewRegistry()}

	layout, err := graph.ParseLayout(cfg.Layout)
	if err != nil {
		return nil, err
	}

	d.Store, err = etcd.NewClient(etcd.NewClientParams{
		Endpoint: cfg.Etcd.Endpoint,
		Username: cfg.Etcd.Username,
		Password: cfg.Etcd.Password,
		Timeout:  cfg.EtcdTimeout(),
		Observer: d.Metrics,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	d.Graph, err = graph.NewGraphClient(graph.NewGraphClientParams{
		Store:     d.Store,
		Namespace: cfg.TopologyPath(),
		Layout:    layout,
		Logger:    log,
		Observer:  d.Metrics,
	})
	if err != nil {
		return nil, err
	}

	d.Reconciler, err = reconcile.NewReconciler(reconcile.NewReconcilerParams{
		Store:       d.Store,
		SubnetsPath: cfg.SubnetPath,
		NodesPath:   cfg.NodePath,
		Logger:      log,
		Observer:    d.Metrics,
	})
	if err != nil {
		return nil, err
	}

	syncParams := scheduler.NewSyncerParams{Runner: d.Reconciler, Logger: log}

	if cfg.DatabaseURL != "" {
		if err := migrations.Up(cfg.DatabaseURL, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		syncParams.Locker, err = leaselock.NewClient(leaselock.NewClientParams{DB: pool, Logger: log})
		if err != nil {
			d.Close()
			return nil, err
		}
	} else {
		log.Warn("No DATABASE_URL set, reconcile passes are not coordinated across replicas")
	}

	if cfg.S3.Enabled() {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			d.Close()
			return nil, err
		}
		syncParams.Archive, err = storage.NewReportArchive(client, cfg.S3.Bucket, log)
		if err != nil {
			d.Close()
			return nil, err
		}
	}

	if cfg.Rabbit.Enabled() {
		conn, err := queue.Dial(ctx, cfg.Rabbit.URL(), log)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		d.closers = append(d.closers, func() { _ = conn.Close() })
		ch, err := conn.Channel()
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to open channel: %w", err)
		}
		d.closers = append(d.closers, func() { _ = ch.Close() })
		if err := queue.SetupQueues(ch); err != nil {
			d.Close()
			return nil, err
		}
		d.Channel = ch
	}

	d.Syncer, err = scheduler.NewSyncer(syncParams)
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}
