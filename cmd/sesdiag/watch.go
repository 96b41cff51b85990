package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sigreer/sesdiag/internal/db"
	"github.com/sigreer/sesdiag/internal/enclosure"
	"github.com/sigreer/sesdiag/internal/metrics"
	"github.com/sigreer/sesdiag/internal/notify"
)

var watchCmd = &cobra.Command{
	Use:   "watch [device]",
	Short: "Poll enclosure status and report element changes",
	Long: `Poll the Enclosure Status page and report elements whose status,
predicted failure or swap flag changed since the previous poll.

Depending on the config file every poll is also:
  - stored in the SQLite history (history.enabled), with alerts raised for
    failed, failing and removed elements
  - exported as Prometheus metrics on metrics.listen (metrics.enabled)
  - published to a Redis channel and list (notify.redis.enabled)

The configuration page is cached and read again when the enclosure reports
a new generation code. A busy enclosure skips a poll.`,
	Args: maxArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationP("interval", "i", 0, "poll interval (default from config)")
	watchCmd.Flags().Bool("once", false, "poll once and exit")
	watchCmd.Flags().BoolP("quiet", "q", false, "don't print changes to stdout")
	watchCmd.Flags().Bool("no-history", false, "don't record to the history database")
	rootCmd.AddCommand(watchCmd)
}

// printSink writes changes to the terminal.
type printSink struct {
	w io.Writer
}

func (p printSink) Record(_ context.Context, r *enclosure.ChangeReport) error {
	for _, c := range r.Changes {
		before, after := "absent", "absent"
		if c.Before != nil {
			before = c.Before.Status
			if c.Before.PredictedFailure {
				before += " PrdFail"
			}
		}
		if c.After != nil {
			after = c.After.Status
			if c.After.PredictedFailure {
				after += " PrdFail"
			}
		}
		mark := " "
		if c.Alert() {
			mark = "!"
		}
		fmt.Fprintf(p.w, "%s %s %-28s %s -> %s\n",
			r.DetectedAt.Format("2006-01-02 15:04:05"), mark, c.Target, before, after)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	interval, _ := cmd.Flags().GetDuration("interval")
	once, _ := cmd.Flags().GetBool("once")
	quiet, _ := cmd.Flags().GetBool("quiet")
	noHistory, _ := cmd.Flags().GetBool("no-history")
	if interval <= 0 {
		interval = cfg.Watch.Interval
	}

	sess, dev, err := openSession(args)
	if err != nil {
		return err
	}
	defer dev.Close()

	ctx := cmd.Context()
	var sinks []enclosure.Sink
	if !quiet {
		sinks = append(sinks, printSink{w: os.Stdout})
	}

	if cfg.History.Enabled && !noHistory {
		database, err := db.New(cfg.History.Path)
		if err != nil {
			return err
		}
		defer database.Close()
		sinks = append(sinks, database)
		log.WithField("path", database.Path()).Info("recording history")
	}

	if cfg.Metrics.Enabled {
		exp := metrics.NewExporter(log)
		sinks = append(sinks, exp)
		if !once {
			go func() {
				if err := exp.Serve(ctx, cfg.Metrics.Listen); err != nil {
					log.WithError(err).Error("metrics server stopped")
				}
			}()
		}
	}

	if r := cfg.Notify.Redis; r.Enabled {
		pub, err := notify.NewPublisher(ctx, notify.Options{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Channel:  r.Channel,
		}, log)
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}

	w := &enclosure.Watcher{
		Session:  sess,
		Interval: interval,
		Sinks:    sinks,
		Log:      log.WithField("device", dev.Path),
	}

	if once {
		pollCtx, cancel := commandContext(cmd)
		defer cancel()
		r, err := w.Poll(pollCtx)
		if err != nil {
			return err
		}
		if r == nil {
			return errPollSkipped
		}
		fmt.Printf("%s elements, generation %d\n", humanize.Comma(int64(len(r.Snapshot.Elements))), r.Snapshot.Generation)
		return nil
	}

	log.WithField("interval", interval).Info("watching enclosure")
	return w.Run(ctx)
}
