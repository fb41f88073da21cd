package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/solvik/mqttc/codec"
	"github.com/solvik/mqttc/internal/logging"
	"github.com/solvik/mqttc/session"
	"github.com/solvik/mqttc/store"
	"github.com/solvik/mqttc/topicpath"
)

var (
	pubTopic   string
	pubMessage string
	pubQoS     int
	pubRetain  bool
)

var publishCmd = &cobra.Command{
	Use:   "pub",
	Short: "Publish a single MQTT message",
	Args: func(cmd *cobra.Command, args []string) error {
		if pubQoS < 0 || pubQoS > 2 {
			return fmt.Errorf("--qos must be between 0 and 2, got %d", pubQoS)
		}
		if _, err := topicpath.ToTopicName(pubTopic); err != nil {
			return fmt.Errorf("--topic: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []session.ClientOption{session.WithCleanSession(true)}
		if pubQoS == int(codec.ExactlyOnce) {
			opts = append(opts, session.WithOutgoingStore(store.NewMemory()))
		}
		if ClientID != "" {
			opts = append(opts, session.WithClientID(ClientID))
		}

		c, err := session.Connect(Broker, opts...)
		if err != nil {
			return logging.LoggedErrorf("connect: %w", err)
		}

		if err := c.Publish(pubTopic, []byte(pubMessage), codec.QoS(pubQoS), pubRetain); err != nil {
			return logging.LoggedErrorf("publish: %w", err)
		}

		if pubQoS > 0 {
			if _, err := c.Await(); err != nil {
				return logging.LoggedErrorf("awaiting ack: %w", err)
			}
		}

		if err := c.Disconnect(); err != nil {
			log.WithError(err).Warn("disconnect failed")
		}
		return c.Terminate()
	},
}

func init() {
	RootCmd.AddCommand(publishCmd)

	flags := publishCmd.Flags()
	flags.StringVarP(&pubTopic, "topic", "t", "test", "topic to publish to")
	flags.StringVarP(&pubMessage, "message", "m", "", "message payload")
	flags.IntVarP(&pubQoS, "qos", "q", 0, "quality of service 0-2")
	flags.BoolVarP(&pubRetain, "retain", "r", false, "set the retain flag")
}
