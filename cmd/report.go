package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/solvik/mqttc/codec"
	"github.com/solvik/mqttc/internal/logging"
	"github.com/solvik/mqttc/internal/report"
	"github.com/solvik/mqttc/session"
)

var (
	reportOut      string
	reportTopic    string
	reportDuration time.Duration
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run a short subscribe session and render a diagnostics PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		timeline := report.NewTimeline()

		opts := []session.ClientOption{
			session.WithCleanSession(true),
			session.WithEventSink(timeline.Record),
		}
		if ClientID != "" {
			opts = append(opts, session.WithClientID(ClientID))
		}

		c, err := session.Connect(Broker, opts...)
		if err != nil {
			return logging.LoggedErrorf("connect: %w", err)
		}
		defer c.Terminate()

		if err := c.Subscribe([]codec.SubscribeTopic{{Filter: reportTopic, QoS: codec.AtMostOnce}}); err != nil {
			return logging.LoggedErrorf("subscribe: %w", err)
		}

		deadline := time.Now().Add(reportDuration)
		for time.Now().Before(deadline) {
			if _, err := c.Await(); err != nil {
				break
			}
		}

		return report.RenderPDF(reportOut, timeline)
	},
}

func init() {
	RootCmd.AddCommand(reportCmd)

	flags := reportCmd.Flags()
	flags.StringVar(&reportOut, "out", "session.pdf", "output PDF path")
	flags.StringVarP(&reportTopic, "topic", "t", "test", "topic filter to observe")
	flags.DurationVar(&reportDuration, "duration", 10*time.Second, "how long to observe the session")
}
