package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"remoteq/internal/client"
)

func newClient(cmd *cobra.Command) (*client.Client, error) {
	addr, err := cmd.Flags().GetString("server")
	if err != nil {
		return nil, err
	}
	return client.New(addr, 30*time.Second), nil
}

func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid job id %q", arg)
	}
	return id, nil
}

func submitCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "submit <board> <file>",
		Short: "Queue an assembly file for a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[1])
			if err != nil {
				return errors.Wrap(err, "read program")
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			id, err := c.Submit(cmd.Context(), args[0], string(source), email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "address the result is mailed to")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show where a job is, or its result once finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch v := st.Status.(type) {
			case float64:
				fmt.Fprintf(out, "Queued (position %d)\n", int(v))
			default:
				fmt.Fprintln(out, v)
			}
			if st.Device != "" {
				fmt.Fprintf(out, "Device: %s\n", st.Device)
			}
			if st.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", st.Error)
			}
			if st.Result != "" {
				fmt.Fprintln(out, st.Result)
			}
			return nil
		},
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Remove a job that is still queued",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			if err := c.Cancel(cmd.Context(), id); err != nil {
				if errors.Is(err, client.ErrNotFound) {
					return errors.Errorf("job %d is not queued", id)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled job %d\n", id)
			return nil
		},
	}
}

func positionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "position <id>",
		Short: "Show the queue position of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			pos, err := c.Position(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pos)
			return nil
		},
	}
}

func boardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List the boards the server has devices for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			boards, err := c.Boards(cmd.Context())
			if err != nil {
				return err
			}
			for _, b := range boards {
				fmt.Fprintln(cmd.OutOrStdout(), b)
			}
			return nil
		},
	}
}
