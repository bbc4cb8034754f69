package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowgraph/internal/flowfile"
)

// NewFlowCmd создаёт группу команд для управления flows.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage stored flows",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowCreateCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowDeleteCmd(clientFn, outputFn),
		newFlowExportCmd(clientFn, outputFn),
	)

	return cmd
}

var flowHeaders = []string{"ID", "NAME", "NODES", "EDGES", "UPDATED"}

func flowRow(f FlowResponse) []string {
	return []string{f.ID, f.Name, strconv.Itoa(f.NodeCount), strconv.Itoa(f.EdgeCount), f.UpdatedAt}
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flows, err := client.ListFlows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(flows))
			for i, f := range flows {
				rows[i] = flowRow(f)
			}

			out.Print(flowHeaders, rows, flows)
			return nil
		},
	}
}

func newFlowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create FILE",
		Short: "Create a flow from an editor document (json or yaml)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read flow file: %w", err)
			}

			// Проверяем документ локально, чтобы ошибка формата не ушла в API
			format := flowfile.FormatFromPath(args[0])
			if _, err := flowfile.Import(data, format); err != nil {
				return err
			}

			flow, err := client.ImportFlow(name, data, string(format))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow created: %s", flow.ID))
			out.Print(flowHeaders, [][]string{flowRow(*flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Flow name")

	return cmd
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show flow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(args[0])
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(flow)
				return nil
			}

			out.Table(flowHeaders, [][]string{flowRow(*flow)})

			rows := make([][]string, len(flow.Graph.Nodes))
			for i, n := range flow.Graph.Nodes {
				rows[i] = []string{n.ID, string(n.Type), fmt.Sprintf("%v", n.Data["label"])}
			}
			fmt.Fprintln(out.w)
			out.Table([]string{"NODE", "TYPE", "LABEL"}, rows)
			return nil
		},
	}
}

func newFlowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteFlow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow deleted: %s", args[0]))
			return nil
		},
	}
}

func newFlowExportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var format string
	var outFile string

	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Export a flow as an editor document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			f, err := flowfile.ParseFormat(format)
			if err != nil {
				return err
			}

			data, err := client.ExportFlow(args[0], string(f))
			if err != nil {
				return err
			}

			if outFile == "" {
				out.Raw(data)
				return nil
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outFile, err)
			}
			out.Success(fmt.Sprintf("Flow exported to %s", outFile))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Document format (json, yaml)")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write to file instead of stdout")

	return cmd
}
