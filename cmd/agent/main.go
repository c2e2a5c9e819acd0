package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"remoteq/internal/agent"
	"remoteq/internal/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		listen   string
		command  string
		timeout  time.Duration
		logLevel string
	)
	cmd := &cobra.Command{
		Use:          "agent",
		Short:        "Run programs received from the remoteq dispatcher on a local board",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Configure(logLevel, "text")

			a := &agent.Agent{Command: command, Timeout: timeout}
			srv := &http.Server{
				Addr:              listen,
				Handler:           a.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			log.WithFields(log.Fields{"addr": listen, "command": command}).Info("Agent listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":9090", "address to listen on")
	cmd.Flags().StringVar(&command, "command", "cat", "shell command run for each job; the program arrives on stdin")
	cmd.Flags().DurationVar(&timeout, "timeout", 4*time.Minute, "maximum run time of one job")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}
