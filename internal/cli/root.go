// Package cli contains the Cobra commands of the idgen binary.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/maauso/idworker/internal/identity"
)

// ErrInvalidCount is returned when -n is not positive.
var ErrInvalidCount = errors.New("cli: count must be positive")

// RegistryFunc provides the registry the commands draw ids from.
type RegistryFunc func() (*identity.Registry, error)

// NewRoot constructs the root command and registers the subcommands.
func NewRoot(registry RegistryFunc) *cobra.Command {
	root := &cobra.Command{
		Use:           "idgen",
		Short:         "Generate unique 64-bit ids",
		Long:          "idgen claims a worker id on this host and prints snowflake ids built from it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newNextCommand(registry),
		newWorkerCommand(registry),
		newDecodeCommand(registry),
	)
	return root
}

// newNextCommand constructs the `next` subcommand.
func newNextCommand(registry RegistryFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print new ids, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, _ := cmd.Flags().GetInt("count")
			narrow, _ := cmd.Flags().GetBool("narrow")
			if n <= 0 {
				return fmt.Errorf("%w: %d", ErrInvalidCount, n)
			}

			reg, err := registry()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			for range n {
				if narrow {
					id, err := reg.NextInt(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, id)
					continue
				}
				id, err := reg.Next(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}
	cmd.Flags().IntP("count", "n", 1, "Number of ids to print")
	cmd.Flags().Bool("narrow", false, "Print non-negative 32-bit ids")
	return cmd
}

// newWorkerCommand constructs the `worker` subcommand.
func newWorkerCommand(registry RegistryFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Claim and print this process's worker id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry()
			if err != nil {
				return err
			}
			id, err := reg.WorkerID(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

type decodeOutput struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Millis    int64  `json:"millis"`
	WorkerID  int64  `json:"worker_id"`
	Sequence  int64  `json:"sequence"`
}

// newDecodeCommand constructs the `decode` subcommand. It does not claim a
// worker id.
func newDecodeCommand(registry RegistryFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <id>",
		Short: "Split a 64-bit id into its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 0 {
				return fmt.Errorf("invalid id %q", args[0])
			}

			reg, err := registry()
			if err != nil {
				return err
			}

			p := reg.Decode(id)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(decodeOutput{
				ID:        id,
				Timestamp: p.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
				Millis:    p.Millis,
				WorkerID:  p.WorkerID,
				Sequence:  p.Sequence,
			})
		},
	}
}
