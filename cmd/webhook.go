package cmd

import (
	"dualbot/pkg/channel"
	"dualbot/pkg/channel/telegram"
	"dualbot/pkg/webhook"

	"github.com/spf13/cobra"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Receive pushed updates over HTTP",
	Long: `Registers the Telegram webhook, serves both platforms' callbacks under the
configured path and removes the webhook again on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		p, err := loadPipeline(true)
		if err != nil {
			return err
		}
		log := p.log.With("component", "cmd.webhook")

		server, err := webhook.NewServer(p.cfg, p.log)
		if err != nil {
			return err
		}

		bot, err := telegram.NewBot(p.cfg.Telegram)
		if err != nil {
			return err
		}
		registrar, err := telegram.NewRegistrar(bot, *p.cfg.Webhook, p.log)
		if err != nil {
			return err
		}
		lifecycle, err := webhook.NewLifecycle(registrar, p.log)
		if err != nil {
			return err
		}

		svc, err := p.service([]channel.Source{server})
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		log.Info("Webhook mode starting", "address", p.cfg.Webhook.Address(), "telegram_url", registrar.URL())
		if err := lifecycle.Run(ctx, svc.Run); err != nil {
			log.Error("Webhook mode failed", "error", err)
			return err
		}

		log.Info("Webhook mode stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(webhookCmd)
}
