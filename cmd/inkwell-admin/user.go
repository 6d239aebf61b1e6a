package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var password string
	create := &cobra.Command{
		Use:   "create USERNAME EMAIL",
		Short: "Create a user",
		Long: `Create a user with a password.

Examples:
  inkwell-admin user create alice alice@example.com --password s3cret`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return fmt.Errorf("--password is required")
			}
			return a.run(cmd, func(ctx context.Context, s *services) error {
				u, err := s.users.Register(ctx, args[0], args[1], password)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(u)
				}
				fmt.Fprintf(a.out, "✓ created user %s (id %d)\n", u.Username, u.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&password, "password", "", "Password for the new user")

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *services) error {
				users, err := s.users.List(ctx)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(users)
				}
				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tLAST SEEN")
				for _, u := range users {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.LastSeen.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a user and every post they wrote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *services) error {
				if err := s.users.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "✓ deleted user %d\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
