// flowgraph — инструмент командной строки: локальные прогоны и проверка
// документов, управление flows и симуляциями через HTTP API.
//
// Использование:
//
//	flowgraph [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	simulate  Прогон документа локально
//	validate  Проверка документа
//	convert   Конвертация json ⇄ yaml
//	flow      Управление flows
//	sim       Управление симуляциями
//	events    Чтение событий из RabbitMQ
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/flowgraph/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "flowgraph",
		Short:         "flowgraph CLI: simulate and manage flow graphs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("FLOWGRAPH_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewSimulateCmd(outputFn),
		cli.NewValidateCmd(outputFn),
		cli.NewConvertCmd(outputFn),
		cli.NewFlowCmd(clientFn, outputFn),
		cli.NewSimCmd(clientFn, outputFn),
		cli.NewEventsCmd(outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		cli.NewOutput(jsonOutput).Error(err.Error())
		os.Exit(1)
	}
}
