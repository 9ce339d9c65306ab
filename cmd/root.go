package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/heatdispatch/app"
	"github.com/kilianp07/heatdispatch/config"
	coremon "github.com/kilianp07/heatdispatch/core/monitoring"
	"github.com/kilianp07/heatdispatch/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "heatdispatch",
	Short:         "Greedy heat dispatch with co-generation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

// Execute runs the CLI.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		logger.New("main").Errorf("%v", err)
		coremon.CaptureException(err, map[string]string{"module": "cli"})
	}
	coremon.Flush(2 * time.Second)
	return err
}

// newService loads the configuration and builds the service.
func newService() (*app.Service, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}

func closeService(svc *app.Service) {
	if err := svc.Close(); err != nil {
		logger.New("main").Errorf("service close: %v", err)
	}
}

func createFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
