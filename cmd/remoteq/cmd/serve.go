package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"remoteq/internal/blockchain"
	"remoteq/internal/config"
	"remoteq/internal/core"
	"remoteq/internal/logging"
	"remoteq/internal/notify"
	"remoteq/internal/security"
	"remoteq/internal/server"
	"remoteq/internal/storage"
)

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway and one dispatcher per configured device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logging.Configure(cfg.Log.Level, cfg.Log.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default ./config/remoteq.yaml)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	registry, err := core.LoadDeployment(cfg.DeploymentFile)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"devices": registry.Len(), "boards": registry.Boards()}).Info("Loaded deployment")

	results := storage.NewResultStorage(cfg.ResultsDir)
	if err := results.Prepare(); err != nil {
		return err
	}

	runnerCfg := core.RunnerConfig{
		Registry:          registry,
		Executor:          core.NewHTTPExecutor(&http.Client{}, cfg.Dispatch.Timeout),
		Results:           results,
		PollInterval:      cfg.Dispatch.PollInterval,
		MinRestartBackoff: cfg.Dispatch.MinRestartBackoff,
		MaxRestartBackoff: cfg.Dispatch.MaxRestartBackoff,
	}

	if cfg.LedgerFile != "" {
		pub, priv, generated, err := security.EnsureKeyPair(cfg.KeysDir)
		if err != nil {
			return errors.Wrap(err, "init ledger keys")
		}
		if generated {
			log.WithField("dir", cfg.KeysDir).Info("Generated new ledger keys")
		}
		ledger, err := blockchain.OpenLedger(cfg.LedgerFile)
		if err != nil {
			return err
		}
		if err := ledger.VerifyChain(); err != nil {
			log.WithError(err).Warn("Existing ledger does not verify")
		}
		runnerCfg.Ledger, runnerCfg.PrivKey, runnerCfg.PubKey = ledger, priv, pub
	}

	if cfg.Mail.Enabled() {
		mailer := notify.NewMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Sender, cfg.Mail.Password)
		if err := mailer.Verify(ctx); err != nil {
			log.WithError(err).Warn("Couldn't login with mail credentials. E-mails will not be sent.")
		} else {
			runnerCfg.Notifier = mailer
		}
	} else {
		log.Warn("Missing mail sender or password (EMAIL/PASSW). E-mails will not be sent.")
	}

	runner := core.NewRunner(runnerCfg)
	srv := server.NewServer(runner.Service(), results)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx, cfg.Listen)
	})
	g.Go(func() error {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}
