package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sigreer/sesdiag/internal/config"
	"github.com/sigreer/sesdiag/internal/enclosure"
	"github.com/sigreer/sesdiag/internal/sgio"
)

var (
	cfgFile   string
	devFlag   string
	timeout   time.Duration
	verbosity int

	cfg *config.Config
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "sesdiag",
	Short: "SCSI Enclosure Services diagnostic tool",
	Long: `sesdiag reads and decodes SCSI Enclosure Services (SES) diagnostic pages
from an enclosure's SCSI generic device and sends control pages back.

It can also poll an enclosure for element status changes, keeping a history
in SQLite, exporting Prometheus metrics and publishing changes to Redis.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/sesdiag/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&devFlag, "device", "d", "", "enclosure sg device, e.g. /dev/sg3")
	rootCmd.PersistentFlags().DurationVar(&timeout, "scsi-timeout", 0, "SCSI command timeout (default from config)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErr(err)
	})
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return usageErr(fmt.Errorf("loading config: %w", err))
	}
	if devFlag != "" {
		c.Device = devFlag
	}
	if timeout > 0 {
		c.Timeout = timeout
	}
	cfg = c
	setupLogging(cfg.Log, verbosity)
	return nil
}

// setupLogging sends log output to stderr so decoded pages on stdout stay
// clean. Each -v raises the configured level by one step.
func setupLogging(lc config.Log, verbose int) {
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		level = logrus.WarnLevel
	}
	for i := 0; i < verbose && level < logrus.TraceLevel; i++ {
		level++
	}
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	if lc.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	fd := os.Stderr.Fd()
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors: !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd),
		FullTimestamp: true,
	})
}

// deviceFrom picks the device from the positional argument, falling back to
// --device and the config file.
func deviceFrom(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Device != "" {
		return cfg.Device, nil
	}
	return "", usageErr(errors.New("no enclosure device given (pass it as an argument, use --device or set device in the config)"))
}

// openSession opens the sg node and wraps it in a session. The caller
// closes the returned device.
func openSession(args []string) (*enclosure.Session, *sgio.Device, error) {
	path, err := deviceFrom(args)
	if err != nil {
		return nil, nil, err
	}
	dev, err := sgio.Open(path, log)
	if err != nil {
		return nil, nil, err
	}
	sess := enclosure.NewSession(dev, enclosure.Options{
		Key:               path,
		MaxResponseLen:    cfg.MaxResponseLen,
		MaxElementHeaders: cfg.MaxElementHeaders,
		Log:               log.WithField("device", path),
	})
	return sess, dev, nil
}

// commandContext bounds a single request by the configured timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), cfg.Timeout)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
