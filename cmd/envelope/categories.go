package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/envelopezero/engine/internal/cli"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage category envelopes",
		Long:  `Add, list, rename, and remove the category envelopes money is assigned to, grouped by supercategory.`,
	}

	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(renameCategoryCmd())
	cmd.AddCommand(removeCategoryCmd())
	cmd.AddCommand(groupsCmd())

	return cmd
}

func addCategoryCmd() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category envelope",
		Long:  `Create a category under a supercategory. The supercategory is created on the fly when it does not exist yet.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			budget, err := resolveBudget(ctx, store)
			if err != nil {
				return err
			}

			supercategories, err := store.ListSupercategories(ctx, budget.ID)
			if err != nil {
				return fmt.Errorf("failed to list supercategories: %w", err)
			}

			var supercategoryID string
			for _, sc := range supercategories {
				if sc.Name == group || sc.ID == group {
					supercategoryID = sc.ID
					break
				}
			}
			if supercategoryID == "" {
				sc, err := store.CreateSupercategory(ctx, budget.ID, group)
				if err != nil {
					return fmt.Errorf("failed to create supercategory: %w", err)
				}
				supercategoryID = sc.ID
			}

			category, err := store.CreateCategory(ctx, budget.ID, supercategoryID, args[0])
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Created category %q (%s)", category.Name, category.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "General", "supercategory name or ID")

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories grouped by supercategory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			budget, err := resolveBudget(ctx, store)
			if err != nil {
				return err
			}

			supercategories, err := store.ListSupercategories(ctx, budget.ID)
			if err != nil {
				return fmt.Errorf("failed to list supercategories: %w", err)
			}
			categories, err := store.ListCategories(ctx, budget.ID)
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}

			if len(categories) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No categories yet. Use 'envelope categories add' to create one."))
				return nil
			}

			groupNames := make(map[string]string, len(supercategories))
			for _, sc := range supercategories {
				groupNames[sc.ID] = sc.Name
			}

			byGroup := make(map[string][]string)
			for _, cat := range categories {
				byGroup[cat.SupercategoryID] = append(byGroup[cat.SupercategoryID],
					fmt.Sprintf("%s\t%s", cat.ID, cat.Name))
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			groupIDs := make([]string, 0, len(byGroup))
			for id := range byGroup {
				groupIDs = append(groupIDs, id)
			}
			sort.Slice(groupIDs, func(i, j int) bool {
				return groupNames[groupIDs[i]] < groupNames[groupIDs[j]]
			})

			for _, id := range groupIDs {
				fmt.Fprintln(w, cli.HeaderStyle.Render(groupNames[id]))
				for _, line := range byGroup[id] {
					fmt.Fprintf(w, "  %s\n", line)
				}
			}
			return nil
		},
	}
}

func renameCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <category> <new-name>",
		Short: "Rename a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			budget, err := resolveBudget(ctx, store)
			if err != nil {
				return err
			}

			category, err := resolveCategory(ctx, store, budget.ID, args[0])
			if err != nil {
				return err
			}

			if err := store.RenameCategory(ctx, category.ID, args[1]); err != nil {
				return fmt.Errorf("failed to rename category: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Renamed %q to %q.", category.Name, args[1])))
			return nil
		},
	}
}

func removeCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <category>",
		Short: "Remove a category",
		Long:  `Remove a category. Refused while any transaction split or assignment references it, so ledger history is never orphaned.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			budget, err := resolveBudget(ctx, store)
			if err != nil {
				return err
			}

			category, err := resolveCategory(ctx, store, budget.ID, args[0])
			if err != nil {
				return err
			}

			if err := store.DeleteCategory(ctx, category.ID); err != nil {
				return fmt.Errorf("failed to remove category: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Removed category %q.", category.Name)))
			return nil
		},
	}
}

func groupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Manage supercategories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a supercategory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			budget, err := resolveBudget(ctx, store)
			if err != nil {
				return err
			}

			sc, err := store.CreateSupercategory(ctx, budget.ID, args[0])
			if err != nil {
				return fmt.Errorf("failed to create supercategory: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Created supercategory %q (%s)", sc.Name, sc.ID)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <id> <new-name>",
		Short: "Rename a supercategory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.RenameSupercategory(ctx, args[0], args[1]); err != nil {
				return fmt.Errorf("failed to rename supercategory: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render("Supercategory renamed."))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an empty supercategory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteSupercategory(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to remove supercategory: %w", err)
			}

			fmt.Println(cli.SuccessStyle.Render("Supercategory removed."))
			return nil
		},
	})

	return cmd
}
