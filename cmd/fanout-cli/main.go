// Fanout CLI — инструмент командной строки для gateway API:
// пользователи, агрегированные сводки и downstream-сервисы.
//
// Использование:
//
//	fanout [--api-url URL] [--json] [--request-id ID] <command> [subcommand] [flags]
//
// Команды:
//
//	user      Управление пользователями
//	summary   Сводка по всем сервисам
//	targets   Downstream-сервисы и их доступность
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Fanout/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL, requestID string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "fanout",
		Short:         "Fanout CLI — fan-out aggregation gateway client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&requestID, "request-id", "", "X-Request-Id to send with every request")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, requestID) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewUserCmd(clientFn, outputFn),
		cli.NewSummaryCmd(clientFn, outputFn),
		cli.NewTargetsCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
