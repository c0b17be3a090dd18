package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/weak-head/smartmeter-pipe/internal/config"
	"github.com/weak-head/smartmeter-pipe/internal/deadletter"
	"github.com/weak-head/smartmeter-pipe/internal/logger"
	"github.com/weak-head/smartmeter-pipe/internal/metrics"
	"github.com/weak-head/smartmeter-pipe/internal/pipeline"
	"github.com/weak-head/smartmeter-pipe/internal/processor"
	"github.com/weak-head/smartmeter-pipe/internal/reading"
	"github.com/weak-head/smartmeter-pipe/internal/sleeper"
	"github.com/weak-head/smartmeter-pipe/internal/storage"
	"github.com/weak-head/smartmeter-pipe/internal/stream"
)

const (
	shutdownTimeout = 5 * time.Second
)

type cli struct {
	cfg config.Config
	log logger.Log

	closers []io.Closer
}

// initConfig loads the configuration and validates it for the command.
func (c *cli) initConfig(validate func(*config.Config) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(cmd.Flags(), nil); err != nil {
			return err
		}

		if err := validate(&c.cfg); err != nil {
			return err
		}

		return c.initLogger()
	}
}

func (c *cli) initLogger() error {
	l, err := logger.NewLogger(c.cfg.Log)
	if err != nil {
		return err
	}

	c.log = l.WithFields(logger.Fields{
		"project": c.cfg.Job.Project,
		"region":  c.cfg.Job.Region,
		"job":     c.cfg.Job.Name,
	})
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := c.log.WithFields(logger.Fields{
		logger.FieldPackage:  "main",
		logger.FieldFunction: "cli.run",
	})
	defer c.close(log)

	reporter, err := metrics.NewReporter(metrics.ServiceInfo{Job: c.cfg.Job.Name})
	if err != nil {
		return err
	}

	server, err := metrics.NewPrometheusServer(c.cfg.Metrics)
	if err != nil {
		log.Error(err, "Failed to create the metrics server.")
		return err
	}

	proc, err := processor.NewProcessor(reading.NewTransformer(), reporter, c.log)
	if err != nil {
		return err
	}

	deadLetterer, err := c.newDeadLetterer()
	if err != nil {
		log.Error(err, "Failed to create the dead-letterer.")
		return err
	}

	writer, err := stream.NewWriter(c.cfg.Writer())
	if err != nil {
		log.Error(err, "Failed to create the output topic writer.")
		return err
	}
	c.closers = append(c.closers, writer)

	pipelines := make([]*pipeline.Pipeline, 0, c.cfg.Job.Workers)
	for i := 0; i < c.cfg.Job.Workers; i++ {
		readerConfig, err := c.cfg.Reader()
		if err != nil {
			return err
		}

		reader, err := stream.NewReader(readerConfig)
		if err != nil {
			log.Error(err, "Failed to create the subscription reader.")
			return err
		}
		c.closers = append(c.closers, reader)

		backoff, err := sleeper.NewExponentialSleeper(c.cfg.Backoff, c.cfg.BackoffCeiling)
		if err != nil {
			return err
		}

		p, err := pipeline.NewPipeline(
			pipeline.Config{
				Streaming:    c.cfg.Job.Streaming,
				DrainTimeout: c.cfg.Job.DrainTimeout,
			},
			reader,
			writer,
			proc,
			deadLetterer,
			backoff,
			reporter,
			c.log,
		)
		if err != nil {
			return err
		}
		pipelines = append(pipelines, p)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(server.Serve)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Stop(shutdownCtx)
	})

	g.Go(func() error {
		// Batch pipelines finish on their own, the metrics server stops with them.
		defer cancel()

		pg, pctx := errgroup.WithContext(gctx)
		for _, p := range pipelines {
			p := p
			pg.Go(func() error {
				return p.Run(pctx)
			})
		}
		return pg.Wait()
	})

	log.Infof("Started %d pipelines.", len(pipelines))
	if err := g.Wait(); err != nil {
		log.Error(err, "Job has failed.")
		return err
	}

	log.Info("Job has finished.")
	return nil
}

// newDeadLetterer returns nil if no dead-letter topic is configured.
func (c *cli) newDeadLetterer() (pipeline.DeadLetterer, error) {
	if c.cfg.DeadLetterTopic == "" {
		return nil, nil
	}

	writer, err := stream.NewWriter(c.cfg.DeadLetterWriter())
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, writer)

	store, location, err := c.newStorage()
	if err != nil {
		return nil, err
	}

	return deadletter.NewDeadLetterer(
		deadletter.Config{
			JobName: c.cfg.Job.Name,
			Staging: location,
		},
		writer,
		store,
		c.log,
	)
}

// newStorage returns nil if no staging storage is configured.
func (c *cli) newStorage() (deadletter.Storage, storage.Location, error) {
	conf, location, ok, err := c.cfg.Storage()
	if err != nil || !ok {
		return nil, location, err
	}

	s, err := storage.NewMinioStorage(conf, c.log)
	if err != nil {
		return nil, location, err
	}
	return s, location, nil
}

func (c *cli) replay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := c.log.WithFields(logger.Fields{
		logger.FieldPackage:  "main",
		logger.FieldFunction: "cli.replay",
	})
	defer c.close(log)

	reader, err := stream.NewReader(c.cfg.ReplayReader())
	if err != nil {
		log.Error(err, "Failed to create the dead-letter topic reader.")
		return err
	}
	c.closers = append(c.closers, reader)

	writer, err := stream.NewWriter(c.cfg.ReplayWriter())
	if err != nil {
		log.Error(err, "Failed to create the replay writer.")
		return err
	}
	c.closers = append(c.closers, writer)

	store, _, err := c.newStorage()
	if err != nil {
		log.Error(err, "Failed to create the staging storage.")
		return err
	}

	replayer, err := deadletter.NewReplayer(
		deadletter.ReplayConfig{DrainTimeout: c.cfg.Job.DrainTimeout},
		reader,
		writer,
		store,
		c.log,
	)
	if err != nil {
		return err
	}

	replayed, err := replayer.Replay(ctx)
	if err != nil {
		log.Error(err, "Replay has failed.")
		return err
	}

	log.Infof("Replayed %d records.", replayed)
	return nil
}

func (c *cli) close(log logger.Log) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			log.Error(err, "Failed to close the stream.")
		}
	}
}

func main() {
	cli := &cli{cfg: config.Default()}
	cmd := &cobra.Command{
		Use:          "smartmeter-pipe",
		Short:        "Converts smart meter readings to imperial units",
		Long:         "Reads smart meter readings from a subscription, converts temperature to Fahrenheit and pressure to psi and publishes them to the output topic.",
		PreRunE:      cli.initConfig((*config.Config).Validate),
		RunE:         cli.run,
		SilenceUsage: true,
	}
	cli.cfg.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(&cobra.Command{
		Use:          "replay",
		Short:        "Republishes dead-lettered readings to their source topic",
		Long:         "Drains the dead-letter topic and publishes every payload back to the topic it was read from, retrieving archived payloads from the staging storage.",
		PreRunE:      cli.initConfig((*config.Config).ValidateReplay),
		RunE:         cli.replay,
		SilenceUsage: true,
	})

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
