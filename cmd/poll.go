package cmd

import (
	"fmt"

	"dualbot/pkg/channel"
	"dualbot/pkg/channel/poll"
	"dualbot/pkg/channel/telegram"
	"dualbot/pkg/channel/vk"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Receive updates by long polling both platforms",
	Long:  "Runs one long-poll loop per platform and dispatches their updates to the worker pool.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		p, err := loadPipeline(false)
		if err != nil {
			return err
		}
		log := p.log.With("component", "cmd.poll")

		sources, err := p.pollSources()
		if err != nil {
			log.Error("Poll configuration invalid", "error", err)
			return err
		}

		svc, err := p.service(sources)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		log.Info("Polling started", "sources", sourceNames(sources), "workers", p.pool.Size(), "queue_capacity", p.queue.Cap())
		if err := svc.Run(ctx); err != nil {
			log.Error("Polling failed", "error", err)
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)
}

// pollSources builds the VK and Telegram long-poll loops.
func (p *pipeline) pollSources() ([]channel.Source, error) {
	vkFetcher, err := vk.NewFetcher(p.client, p.cfg, p.log)
	if err != nil {
		return nil, fmt.Errorf("configure vk fetcher: %w", err)
	}
	vkPoller, err := poll.New(vkFetcher, p.cfg, p.log)
	if err != nil {
		return nil, fmt.Errorf("configure vk poller: %w", err)
	}

	bot, err := telegram.NewBot(p.cfg.Telegram)
	if err != nil {
		return nil, err
	}
	tgFetcher, err := telegram.NewFetcher(bot, p.cfg)
	if err != nil {
		return nil, fmt.Errorf("configure telegram fetcher: %w", err)
	}
	tgPoller, err := poll.New(tgFetcher, p.cfg, p.log)
	if err != nil {
		return nil, fmt.Errorf("configure telegram poller: %w", err)
	}

	return []channel.Source{vkPoller, tgPoller}, nil
}
