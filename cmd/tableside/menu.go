package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tableside/internal/app"
	"tableside/internal/menu"
)

func menuCmd() *cobra.Command {
	m := &cobra.Command{
		Use:   "menu",
		Short: "Menu catalog",
	}
	m.AddCommand(menuListCmd())
	m.AddCommand(menuImportCmd())
	m.AddCommand(menuSeedCmd())
	return m
}

func menuListCmd() *cobra.Command {
	var category string
	var available bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List menu items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				items, err := env.Catalog().List(ctx, category, available)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Category", "Price", "Available", "Modifiers"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Name, it.Category, it.Price.StringFixed(2), it.Available, len(it.Modifiers)})
				}
				tw.AppendFooter(table.Row{"", "", "", "", "", fmt.Sprintf("%d items", len(items))})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only this category")
	cmd.Flags().BoolVar(&available, "available", false, "only available items")
	return cmd
}

func menuImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yml>",
		Short: "Replace the menu from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := menu.FromFile(args[0])
			if err != nil {
				return err
			}
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				if err := env.Catalog().Import(ctx, viper.GetString("actor-id"), items); err != nil {
					return err
				}
				fmt.Printf("Imported %d menu items from %s\n", len(items), args[0])
				return nil
			})
		},
	}
}

func menuSeedCmd() *cobra.Command {
	var n int
	var seed int64
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the menu with generated demo items",
		RunE: func(cmd *cobra.Command, args []string) error {
			items := menu.DemoMenu(seed, n)
			return withEnv(cmd.Context(), func(ctx context.Context, env *app.Env) error {
				if err := env.Catalog().Import(ctx, viper.GetString("actor-id"), items); err != nil {
					return err
				}
				fmt.Printf("Seeded %d demo menu items (seed %d)\n", len(items), seed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 12, "number of items")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	return cmd
}
