package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// taxonomyOps adapts the category or tag half of TaxonomyService to the
// shared create/list/delete commands.
type taxonomyOps struct {
	noun        string
	short       string
	deleteShort string
	create      func(ctx context.Context, s *services, name, slug string) (id int64, err error)
	list        func(ctx context.Context, s *services) ([]taxonomyRow, error)
	delete      func(ctx context.Context, s *services, id int64) error
}

type taxonomyRow struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug,omitempty"`
	DatePosted time.Time `json:"datePosted"`
}

func (a *app) categoryCmd() *cobra.Command {
	return a.taxonomyCmd(taxonomyOps{
		noun:        "category",
		short:       "Manage categories",
		deleteShort: "Delete a category and every post filed under it",
		create: func(ctx context.Context, s *services, name, slug string) (int64, error) {
			c, err := s.taxonomy.CreateCategory(ctx, name, slug)
			if err != nil {
				return 0, err
			}
			return c.ID, nil
		},
		list: func(ctx context.Context, s *services) ([]taxonomyRow, error) {
			cs, err := s.taxonomy.ListCategories(ctx)
			if err != nil {
				return nil, err
			}
			rows := make([]taxonomyRow, 0, len(cs))
			for _, c := range cs {
				rows = append(rows, taxonomyRow{c.ID, c.Name, c.Slug, c.DatePosted})
			}
			return rows, nil
		},
		delete: func(ctx context.Context, s *services, id int64) error {
			return s.taxonomy.DeleteCategory(ctx, id)
		},
	})
}

func (a *app) tagCmd() *cobra.Command {
	return a.taxonomyCmd(taxonomyOps{
		noun:        "tag",
		short:       "Manage tags",
		deleteShort: "Delete a tag (its posts are kept)",
		create: func(ctx context.Context, s *services, name, slug string) (int64, error) {
			t, err := s.taxonomy.CreateTag(ctx, name, slug)
			if err != nil {
				return 0, err
			}
			return t.ID, nil
		},
		list: func(ctx context.Context, s *services) ([]taxonomyRow, error) {
			ts, err := s.taxonomy.ListTags(ctx)
			if err != nil {
				return nil, err
			}
			rows := make([]taxonomyRow, 0, len(ts))
			for _, t := range ts {
				rows = append(rows, taxonomyRow{t.ID, t.Name, t.Slug, t.DatePosted})
			}
			return rows, nil
		},
		delete: func(ctx context.Context, s *services, id int64) error {
			return s.taxonomy.DeleteTag(ctx, id)
		},
	})
}

func (a *app) taxonomyCmd(ops taxonomyOps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   ops.noun,
		Short: ops.short,
	}

	var slug string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a " + ops.noun,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *services) error {
				id, err := ops.create(ctx, s, args[0], slug)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(map[string]any{"id": id, "name": args[0]})
				}
				fmt.Fprintf(a.out, "✓ created %s %q (id %d)\n", ops.noun, args[0], id)
				return nil
			})
		},
	}
	create.Flags().StringVar(&slug, "slug", "", "URL slug")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every " + ops.noun,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *services) error {
				rows, err := ops.list(ctx, s)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(rows)
				}
				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSLUG\tCREATED")
				for _, r := range rows {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Name, r.Slug, r.DatePosted.Format("2006-01-02"))
				}
				return w.Flush()
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: ops.deleteShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.run(cmd, func(ctx context.Context, s *services) error {
				if err := ops.delete(ctx, s, id); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "✓ deleted %s %d\n", ops.noun, id)
				return nil
			})
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}
