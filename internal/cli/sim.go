package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowgraph/internal/domain"
)

// NewSimCmd создаёт группу команд для управления симуляциями на сервере.
func NewSimCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Manage server-side simulations",
	}

	cmd.AddCommand(
		newSimStartCmd(clientFn, outputFn),
		newSimShowCmd(clientFn, outputFn),
		newSimActionCmd("pause", "Pause a running simulation", clientFn, outputFn),
		newSimActionCmd("resume", "Resume a paused simulation", clientFn, outputFn),
		newSimActionCmd("reset", "Reset a simulation to idle", clientFn, outputFn),
		newSimStepCmd(clientFn, outputFn),
		newSimHistoryCmd(clientFn, outputFn),
		newSimWatchCmd(clientFn, outputFn),
	)

	return cmd
}

var simHeaders = []string{"ID", "FLOW_ID", "STATE", "PROGRESS", "ACTIVE_NODE"}

func simRow(s SimulationResponse) []string {
	return []string{s.ID, s.FlowID, string(s.State), progressString(s.Progress), s.ActiveNodeID}
}

func printSimulation(out *Output, sim *SimulationResponse) {
	out.Print(simHeaders, [][]string{simRow(*sim)}, sim)
	if sim.Error != "" && !out.JSONMode() {
		out.Error(sim.Error)
	}
}

func newSimStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var auto bool

	cmd := &cobra.Command{
		Use:   "start FLOW_ID",
		Short: "Create a simulation session for a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sim, err := client.CreateSimulation(args[0], CreateSimulationRequest{AutoStart: auto})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Simulation created: %s", sim.ID))
			printSimulation(out, sim)
			return nil
		},
	}

	cmd.Flags().BoolVar(&auto, "auto", false, "Start the pacing loop immediately")

	return cmd
}

func newSimShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show simulation state and steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sim, err := client.GetSimulation(args[0])
			if err != nil {
				return err
			}

			printSimulation(out, sim)
			if !out.JSONMode() && len(sim.Steps) > 0 {
				fmt.Fprintln(out.w)
				out.Table(stepHeaders, stepRows(sim.Steps))
			}
			return nil
		},
	}
}

func newSimActionCmd(action, short string, clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   action + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sim, err := client.SimulationAction(args[0], action)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Simulation %s: %s", args[0], sim.State))
			printSimulation(out, sim)
			return nil
		},
	}
}

func newSimStepCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "step ID",
		Short: "Execute the next node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.StepSimulation(args[0])
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(res)
				return nil
			}
			if res.Step != nil {
				out.Table(stepHeaders, stepRows([]domain.ExecutionStep{*res.Step}))
			}
			out.Info(fmt.Sprintf("Progress: %s, state: %s", progressString(res.Simulation.Progress), res.Simulation.State))
			return nil
		},
	}
}

func newSimHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history FLOW_ID",
		Short: "List finished simulations of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			records, err := client.ListHistory(args[0], limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "SESSION", "STATE", "STEPS", "FAILED", "DURATION", "FINISHED"}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					r.ID,
					r.SessionID,
					string(r.State),
					strconv.Itoa(r.StepCount),
					strconv.Itoa(r.FailedSteps),
					r.Duration,
					r.FinishedAt,
				}
			}

			out.Print(headers, rows, records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newSimWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "watch ID",
		Short: "Stream simulation events until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			err := client.WatchSimulation(ctx, args[0], func(ev domain.Event) bool {
				printEvent(out, ev)
				return !isFinalEvent(ev)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// printEvent выводит событие симуляции: JSON-строкой или строкой журнала.
func printEvent(out *Output, ev domain.Event) {
	if out.JSONMode() {
		out.JSON(ev)
		return
	}

	switch ev.Type {
	case domain.EventLog:
		if ev.Log != nil {
			out.Log(*ev.Log)
		}
	case domain.EventState:
		msg := "State: " + string(ev.State)
		if ev.Progress != nil {
			msg += ", progress: " + progressString(*ev.Progress)
		}
		out.Info(msg)
	case domain.EventClosed:
		out.Info("Simulation removed, last state: " + string(ev.State))
	}
}

// isFinalEvent — после события поток watch больше ничего не покажет.
func isFinalEvent(ev domain.Event) bool {
	switch ev.Type {
	case domain.EventClosed:
		return true
	case domain.EventState:
		return ev.State.IsTerminal()
	}
	return false
}
