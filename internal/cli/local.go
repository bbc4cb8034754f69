package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/flowgraph/internal/domain"
	"github.com/shaiso/flowgraph/internal/engine"
	"github.com/shaiso/flowgraph/internal/flowfile"
	"github.com/shaiso/flowgraph/internal/nodes"
	"github.com/shaiso/flowgraph/internal/orchestrator"
	"github.com/shaiso/flowgraph/internal/telemetry"
)

// Локальные команды работают с файлом документа и не обращаются к API.

// ErrInvalidFlow — документ не прошёл проверку.
var ErrInvalidFlow = errors.New("flow is invalid")

// readDocument читает документ редактора, формат определяется по расширению.
func readDocument(path string) (*flowfile.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	doc, err := flowfile.Import(data, flowfile.FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// cliLogger пишет служебные логи в stderr; по умолчанию только ошибки.
func cliLogger() *slog.Logger {
	return telemetry.NewLogger(os.Stderr, telemetry.LevelFromEnv(slog.LevelError), "text")
}

// logPublisher выводит события сессии в терминал.
type logPublisher struct {
	out *Output
}

func (p logPublisher) Publish(_ context.Context, ev domain.Event) error {
	if ev.Type == domain.EventLog && ev.Log != nil {
		p.out.Log(*ev.Log)
	}
	return nil
}

// SimulateOptions — параметры локального прогона.
type SimulateOptions struct {
	Interval time.Duration
	MaxDelay time.Duration
	Logger   *slog.Logger
}

// Simulate выполняет граф до конца в отдельной сессии и возвращает итог.
func Simulate(ctx context.Context, g domain.Graph, opts SimulateOptions, out *Output) (orchestrator.Snapshot, error) {
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewLogger(io.Discard, slog.LevelError, "text")
	}

	orch := orchestrator.New(orchestrator.Config{
		MaxDelay:     opts.MaxDelay,
		StepInterval: opts.Interval,
		Publishers:   map[string]orchestrator.Publisher{"terminal": logPublisher{out: out}},
		Logger:       logger,
	})
	defer orch.Shutdown()

	session, err := orch.Create(uuid.Nil, g)
	if err != nil {
		return orchestrator.Snapshot{}, err
	}

	if err := session.Start(); err != nil {
		return session.Snapshot(), err
	}
	if _, err := session.Wait(ctx); err != nil {
		return session.Snapshot(), err
	}
	return session.Snapshot(), nil
}

// NewSimulateCmd создаёт команду локального прогона.
func NewSimulateCmd(outputFn func() *Output) *cobra.Command {
	var interval time.Duration
	var maxDelay time.Duration

	cmd := &cobra.Command{
		Use:   "simulate FILE",
		Short: "Run a flow document locally and print every step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			snap, err := Simulate(ctx, doc.Graph(), SimulateOptions{
				Interval: interval,
				MaxDelay: maxDelay,
				Logger:   cliLogger(),
			}, out)
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(snap)
				return nil
			}

			out.Table(stepHeaders, stepRows(snap.Steps))

			failed := 0
			for _, s := range snap.Steps {
				if s.Failed() {
					failed++
				}
			}
			out.Success(fmt.Sprintf("Simulation %s: %d steps, %d failed", snap.State, len(snap.Steps), failed))
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", orchestrator.DefaultStepInterval, "Pause between steps")
	cmd.Flags().DurationVar(&maxDelay, "max-delay", nodes.DefaultMaxDelay, "Upper bound for delay nodes")

	return cmd
}

// NewValidateCmd создаёт команду проверки документа.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a flow document structure and node settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}

			eval := engine.NewEvaluator()
			validator := nodes.NewValidator(nodes.DefaultCatalog(), eval)
			verr := validator.Validate(doc.Graph())

			issues := issuesOf(verr)
			if out.JSONMode() {
				out.JSON(map[string]any{"valid": verr == nil, "issues": issues})
			} else if verr != nil {
				out.Table([]string{"NODE", "FIELD", "MESSAGE"}, issues)
			}

			if verr != nil {
				return fmt.Errorf("%w: %d issue(s)", ErrInvalidFlow, len(issues))
			}
			out.Success(fmt.Sprintf("%s: %d nodes, %d edges, valid", args[0], len(doc.Nodes), len(doc.Edges)))
			return nil
		},
	}
}

// issuesOf раскладывает ошибку проверки на строки NODE, FIELD, MESSAGE.
func issuesOf(err error) [][]string {
	if err == nil {
		return nil
	}

	var list nodes.ValidationErrors
	if errors.As(err, &list) {
		rows := make([][]string, len(list))
		for i, ve := range list {
			rows[i] = []string{ve.NodeID, ve.Field, ve.Message}
		}
		return rows
	}

	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		return [][]string{{ve.NodeID, ve.Field, ve.Message}}
	}
	return [][]string{{"", "", err.Error()}}
}

// NewConvertCmd создаёт команду конвертации документа между json и yaml.
func NewConvertCmd(outputFn func() *Output) *cobra.Command {
	var to string
	var outFile string

	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Convert a flow document between json and yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			format, err := flowfile.ParseFormat(to)
			if err != nil {
				return err
			}

			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}

			data, err := flowfile.Export(doc, format)
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
			out.Success(fmt.Sprintf("Written %s", outFile))
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Target format (json, yaml)")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write to file instead of stdout")
	cmd.MarkFlagRequired("to")

	return cmd
}
