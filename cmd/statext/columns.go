package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coolbeans/statext/pkg/statement"
)

func columnsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "columns",
		Short: "Manage a document's custom columns",
	}
	cmd.AddCommand(columnsAddCmd())
	cmd.AddCommand(columnsListCmd())
	cmd.AddCommand(columnsDeleteCmd())
	return cmd
}

func columnsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [document] [name]",
		Short: "Add a custom column",
		Long: `Add a custom column to a document.

Column types: text, long_text, number, date, enum, multi_select,
checkbox, url. The enum and multi_select types require --options.

Example:
  statext columns add mydoc Owner --type text
  statext columns add mydoc Risk --type enum --options low,medium,high`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			colType, _ := cmd.Flags().GetString("type")
			options, _ := cmd.Flags().GetStringSlice("options")
			defaultValue, _ := cmd.Flags().GetString("default")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}

			col := statement.NewColumn(docID, args[1], statement.ColumnType(colType))
			col.Options = options
			if defaultValue != "" {
				col.DefaultValue = defaultValue
			}

			if err := a.store.AddColumn(col); err != nil {
				return err
			}
			if err := a.persist(docID); err != nil {
				return err
			}

			fmt.Printf("Added column %q (%s)\n", col.Name, col.Type)
			return nil
		},
	}

	cmd.Flags().String("type", "text", "Column type")
	cmd.Flags().StringSlice("options", nil, "Allowed values for enum and multi_select columns")
	cmd.Flags().String("default", "", "Default value")
	return cmd
}

func columnsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [document]",
		Short: "List a document's custom columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}

			columns := a.store.Columns(docID)
			if len(columns) == 0 {
				fmt.Println("No custom columns defined.")
				return nil
			}
			for _, col := range columns {
				line := fmt.Sprintf("%2d  %-9s %-24s %s", col.Position, shortID(col.ID), col.Name, col.Type)
				if len(col.Options) > 0 {
					line += " [" + strings.Join(col.Options, ", ") + "]"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func columnsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [document] [column-id]",
		Short: "Delete a custom column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}

			columnID := args[1]
			for _, col := range a.store.Columns(docID) {
				if strings.HasPrefix(col.ID, columnID) {
					columnID = col.ID
					break
				}
			}

			if err := a.store.DeleteColumn(docID, columnID); err != nil {
				return err
			}
			if err := a.persist(docID); err != nil {
				return err
			}

			fmt.Println("Column deleted.")
			return nil
		},
	}
}

func templatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage column templates",
	}
	cmd.AddCommand(templatesSaveCmd())
	cmd.AddCommand(templatesApplyCmd())
	cmd.AddCommand(templatesListCmd())
	return cmd
}

func templatesSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [document] [name]",
		Short: "Save a document's columns as a reusable template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}

			columns := a.store.Columns(docID)
			if len(columns) == 0 {
				return fmt.Errorf("document has no custom columns to save")
			}

			tpl := statement.NewTemplate(args[1], columns)
			tpl.Description = description
			if err := a.store.SaveTemplate(tpl); err != nil {
				return err
			}
			if err := a.lib.SaveTemplates(a.store.Templates()); err != nil {
				return err
			}

			fmt.Printf("Saved template %q with %d columns\n", tpl.Name, len(columns))
			return nil
		},
	}

	cmd.Flags().String("description", "", "Template description")
	return cmd
}

func templatesApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply [document] [template]",
		Short: "Apply a template's columns to a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}

			templateID := args[1]
			for _, tpl := range a.store.Templates() {
				if tpl.Name == templateID || strings.HasPrefix(tpl.ID, templateID) {
					templateID = tpl.ID
					break
				}
			}

			added, err := a.store.ApplyTemplate(templateID, docID)
			if err != nil {
				return err
			}
			if err := a.persist(docID); err != nil {
				return err
			}

			fmt.Printf("Applied template: %d columns added\n", added)
			return nil
		},
	}
}

func templatesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}

			templates := a.store.Templates()
			if len(templates) == 0 {
				fmt.Println("No templates saved.")
				return nil
			}
			for _, tpl := range templates {
				fmt.Printf("%-9s %-24s %d columns  %s\n",
					shortID(tpl.ID), tpl.Name, len(tpl.Columns), tpl.Description)
			}
			return nil
		},
	}
}
