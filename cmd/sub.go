package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/solvik/mqttc/codec"
	"github.com/solvik/mqttc/internal/logging"
	"github.com/solvik/mqttc/session"
	"github.com/solvik/mqttc/store"
)

var (
	subTopic string
	subQoS   int
)

var subscribeCmd = &cobra.Command{
	Use:   "sub",
	Short: "Subscribe to a topic filter and print delivered messages until interrupted",
	Args: func(cmd *cobra.Command, args []string) error {
		if subQoS < 0 || subQoS > 2 {
			return fmt.Errorf("--qos must be between 0 and 2, got %d", subQoS)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []session.ClientOption{session.WithCleanSession(true)}
		if subQoS == int(codec.ExactlyOnce) {
			opts = append(opts, session.WithIncomingStore(store.NewMemory()))
		}
		if ClientID != "" {
			opts = append(opts, session.WithClientID(ClientID))
		}

		c, err := session.Connect(Broker, opts...)
		if err != nil {
			return logging.LoggedErrorf("connect: %w", err)
		}
		defer c.Terminate()

		if err := c.Subscribe([]codec.SubscribeTopic{{Filter: subTopic, QoS: codec.QoS(subQoS)}}); err != nil {
			return logging.LoggedErrorf("subscribe: %w", err)
		}

		for {
			msg, err := c.Await()
			if err != nil {
				return logging.LoggedErrorf("await: %w", err)
			}
			if msg == nil {
				continue
			}
			fmt.Printf("%s: %s\n", msg.Topic, string(msg.Payload.Bytes()))
			if msg.QoS == codec.ExactlyOnce {
				if err := c.Complete(msg.Pid); err != nil {
					log.WithError(err).Warn("complete failed")
				}
			}
		}
	},
}

func init() {
	RootCmd.AddCommand(subscribeCmd)

	flags := subscribeCmd.Flags()
	flags.StringVarP(&subTopic, "topic", "t", "test", "topic filter to subscribe to")
	flags.IntVarP(&subQoS, "qos", "q", 0, "requested quality of service 0-2")
}
