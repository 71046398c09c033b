package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewUserCmd создаёт команду "user" с подкомандами.
func NewUserCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	cmd.AddCommand(
		newUserListCmd(clientFn, outputFn),
		newUserShowCmd(clientFn, outputFn),
		newUserCreateCmd(clientFn, outputFn),
		newUserForwardCmd(clientFn, outputFn),
		newUserSummaryCmd(clientFn, outputFn),
	)

	return cmd
}

func newUserListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := clientFn().ListUsers()
			if err != nil {
				return err
			}

			out := outputFn()
			headers := []string{"ID", "NAME", "EMAIL", "CREATED"}
			rows := make([][]string, len(users))
			for i, u := range users {
				rows[i] = []string{u.ID, u.Name, u.Email, u.CreatedAt}
			}
			out.Print(headers, rows, users)
			return nil
		},
	}
}

func newUserShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show user details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := clientFn().GetUser(args[0])
			if err != nil {
				return err
			}

			out := outputFn()
			headers := []string{"FIELD", "VALUE"}
			rows := [][]string{
				{"ID", user.ID},
				{"Name", user.Name},
				{"Email", user.Email},
				{"Created", user.CreatedAt},
			}
			out.Print(headers, rows, user)
			return nil
		},
	}
}

func newUserCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name, email, idempotencyKey string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user and its records in all downstream services",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFn().CreateUser(name, email, idempotencyKey)
			if err != nil {
				return err
			}

			printAggregated(outputFn(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "User name (required)")
	cmd.Flags().StringVar(&email, "email", "", "User email")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency-Key header value")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newUserForwardCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "forward <user-id> <kind>",
		Short: "Create a record of the given kind in its downstream service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := clientFn().Forward(args[0], args[1], name)
			if err != nil {
				return err
			}

			out := outputFn()
			if out.jsonMode {
				out.JSON(raw)
				return nil
			}
			out.Table([]string{"KIND", "RESPONSE"}, [][]string{{args[1], compact(raw)}})
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Record name (required)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newUserSummaryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <id>",
		Short: "Show a user and their records in all downstream services",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := clientFn().UserSummary(args[0])
			if err != nil {
				return err
			}

			printAggregated(outputFn(), result)
			return nil
		},
	}
}

// printAggregated выводит агрегированный ответ: ключ и значение
// в компактном JSON. Warnings идут в stderr в любом режиме.
func printAggregated(out *Output, result *Aggregated) {
	keys := result.Keys()
	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, compact(result.Fields[k])}
	}

	out.Print([]string{"KEY", "VALUE"}, rows, result)
	out.Warnings(result.Warnings)
}

// compact сжимает JSON в одну строку для таблицы.
func compact(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
