package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/mq"
)

// NewEventsCmd создаёт группу команд для чтения событий из RabbitMQ.
func NewEventsCmd(outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read simulation events from the message broker",
	}

	cmd.AddCommand(newEventsTailCmd(outputFn))
	return cmd
}

// eventTypes — допустимые значения --type.
var eventTypes = map[string]domain.EventType{
	"":       "",
	"step":   domain.EventStep,
	"state":  domain.EventState,
	"log":    domain.EventLog,
	"closed": domain.EventClosed,
}

func newEventsTailCmd(outputFn func() *Output) *cobra.Command {
	var amqpURL string
	var simulation string
	var eventType string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print simulation events as they are published",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			simID := uuid.Nil
			if simulation != "" {
				id, err := uuid.Parse(simulation)
				if err != nil {
					return fmt.Errorf("invalid simulation id: %w", err)
				}
				simID = id
			}

			et, ok := eventTypes[eventType]
			if !ok {
				return fmt.Errorf("unknown event type %q (step, state, log, closed)", eventType)
			}

			if amqpURL == "" {
				amqpURL = os.Getenv("RABBITMQ_URL")
			}
			if amqpURL == "" {
				amqpURL = mq.DefaultURL()
			}

			logger := cliLogger()
			conn, err := mq.NewConnection(amqpURL, logger)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			key := mq.BindingKey(simID, et)
			out.Info(fmt.Sprintf("Listening on %s (%s)", mq.ExchangeEvents, key))

			sub := mq.NewSubscriber(conn, logger, key, func(_ context.Context, ev domain.Event) error {
				printTailEvent(out, ev)
				return nil
			})

			if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&amqpURL, "amqp-url", "", "RabbitMQ URL (default $RABBITMQ_URL)")
	cmd.Flags().StringVar(&simulation, "simulation", "", "Only events of this simulation")
	cmd.Flags().StringVar(&eventType, "type", "", "Only events of this type (step, state, log, closed)")

	return cmd
}

// printTailEvent выводит событие с идентификатором сессии.
func printTailEvent(out *Output, ev domain.Event) {
	if out.JSONMode() {
		out.JSON(ev)
		return
	}

	short := ev.SimulationID.String()[:8]
	switch ev.Type {
	case domain.EventStep:
		if ev.Step == nil {
			return
		}
		status := "ok"
		if ev.Step.Failed() {
			status = ev.Step.Error
		}
		fmt.Fprintf(out.w, "%s step  %s (%s) %s\n", short, ev.Step.NodeID, ev.Step.NodeType, status)
	case domain.EventState:
		fmt.Fprintf(out.w, "%s state %s\n", short, ev.State)
	case domain.EventLog:
		if ev.Log != nil {
			fmt.Fprintf(out.w, "%s log   %s\n", short, ev.Log.Message)
		}
	case domain.EventClosed:
		fmt.Fprintf(out.w, "%s closed (%s)\n", short, ev.State)
	}
}
