package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coolbeans/statext/pkg/document"
	"github.com/coolbeans/statext/pkg/edit"
	"github.com/coolbeans/statext/pkg/export"
	"github.com/coolbeans/statext/pkg/library"
	"github.com/coolbeans/statext/pkg/pattern"
	"github.com/coolbeans/statext/pkg/store"
)

// app bundles the wired components every command needs. State is
// hydrated from the library on open and persisted back after edits.
type app struct {
	lib      *library.Library
	registry *document.Registry
	store    *store.Store
	pipeline *document.Pipeline
	engine   *edit.Engine
	profiles *pattern.Registry
}

// openApp opens the library named by --library and hydrates all state.
func openApp(cmd *cobra.Command) (*app, error) {
	libPath, _ := cmd.Flags().GetString("library")
	log := newLogger(cmd)

	lib, err := library.OpenOrInit(libPath)
	if err != nil {
		return nil, err
	}

	profiles := pattern.NewRegistry()
	if dir, _ := cmd.Flags().GetString("profiles"); dir != "" {
		if err := profiles.LoadDirectory(dir); err != nil {
			return nil, fmt.Errorf("failed to load profiles: %w", err)
		}
	}

	registry := document.NewRegistry()
	st := store.New()
	if err := lib.Hydrate(registry, st); err != nil {
		return nil, fmt.Errorf("failed to load library state: %w", err)
	}

	return &app{
		lib:      lib,
		registry: registry,
		store:    st,
		pipeline: document.NewPipeline(registry, st, document.WithLogger(log), document.WithProfiles(profiles)),
		engine:   edit.NewEngine(st, edit.WithLogger(log)),
		profiles: profiles,
	}, nil
}

// persist writes one document's current state back to the library.
func (a *app) persist(documentID string) error {
	doc, ok := a.registry.Get(documentID)
	if !ok {
		return fmt.Errorf("document not found: %s", documentID)
	}
	if _, err := a.lib.SaveDocument(doc, nil); err != nil {
		return err
	}
	return a.lib.Persist(a.store, documentID)
}

// resolveDocument accepts a full document id or a unique prefix.
func (a *app) resolveDocument(ref string) (string, error) {
	if _, ok := a.registry.Get(ref); ok {
		return ref, nil
	}
	var matches []string
	for _, doc := range a.registry.List() {
		if strings.HasPrefix(doc.ID, ref) {
			matches = append(matches, doc.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("document not found: %s", ref)
	default:
		return "", fmt.Errorf("ambiguous document prefix %s (%d matches)", ref, len(matches))
	}
}

// resolveStatement accepts a statement id, a unique id prefix, or a
// display-order index within the given document.
func (a *app) resolveStatement(documentID, ref string) (string, error) {
	statements := a.store.List(documentID, false)

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 0 || n >= len(statements) {
			return "", fmt.Errorf("index %d out of range (document has %d statements)", n, len(statements))
		}
		return statements[n].ID, nil
	}

	var matches []string
	for _, st := range statements {
		if st.ID == ref {
			return st.ID, nil
		}
		if strings.HasPrefix(st.ID, ref) {
			matches = append(matches, st.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("statement not found: %s", ref)
	default:
		return "", fmt.Errorf("ambiguous statement prefix %s (%d matches)", ref, len(matches))
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new statement library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			libPath, _ := cmd.Flags().GetString("library")
			if _, err := library.Init(libPath); err != nil {
				return err
			}
			fmt.Printf("Initialized statement library: %s\n", libPath)
			fmt.Printf("\nNext steps:\n")
			fmt.Printf("  1. Run: statext ingest --source your-regulation.txt\n")
			fmt.Printf("  2. Run: statext list <document-id>\n")
			return nil
		},
	}
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a regulatory document",
		Long: `Ingest a document, segment it into statements and store the result.

The source is plain text. Page boundaries can be marked with [PAGE n]
lines; they carry through to the page_number of each statement.

Example:
  statext ingest --source gdpr.txt --name "GDPR"
  statext ingest --source notice.txt --profile numeric-dotted`,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			name, _ := cmd.Flags().GetString("name")
			profileID, _ := cmd.Flags().GetString("profile")

			if source == "" {
				return fmt.Errorf("--source flag is required")
			}
			data, err := os.ReadFile(source)
			if err != nil {
				return fmt.Errorf("failed to read source: %w", err)
			}
			if name == "" {
				name = source
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}

			fmt.Printf("Ingesting document from: %s\n", source)
			doc, err := a.pipeline.IngestWithProfile(context.Background(), name, source, string(data), profileID)
			if doc != nil {
				// Record the document even on failure so the failed
				// state is visible in the library.
				if _, saveErr := a.lib.SaveDocument(doc, data); saveErr != nil {
					return saveErr
				}
			}
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
			if err := a.lib.Persist(a.store, doc.ID); err != nil {
				return err
			}

			fmt.Printf("Document %s ingested: %d statements\n", doc.ID, doc.TotalStatements)
			return nil
		},
	}

	cmd.Flags().StringP("source", "s", "", "Source document path")
	cmd.Flags().StringP("name", "n", "", "Display name (defaults to source path)")
	cmd.Flags().String("profile", "", "Segmentation profile id")
	cmd.Flags().String("profiles", "", "Directory of segmentation profile YAML files")
	return cmd
}

func documentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List documents in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}

			entries := a.lib.ListDocuments()
			if len(entries) == 0 {
				fmt.Println("Library is empty. Run: statext ingest --source <file>")
				return nil
			}

			fmt.Printf("%-38s %-10s %6s  %s\n", "ID", "STATUS", "STMTS", "NAME")
			for _, entry := range entries {
				doc := entry.Document
				fmt.Printf("%-38s %-10s %6d  %s\n", doc.ID, doc.Status, doc.TotalStatements, doc.Name)
			}
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [document]",
		Short: "List a document's statements in display order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			includeSuperseded, _ := cmd.Flags().GetBool("all")
			full, _ := cmd.Flags().GetBool("full")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}

			statements := a.store.List(docID, includeSuperseded)
			for _, st := range statements {
				text := st.RegulationText
				if !full && len(text) > 70 {
					text = text[:67] + "..."
				}
				text = strings.ReplaceAll(text, "\n", " ")

				marker := " "
				if st.IsSuperseded {
					marker = "x"
				}
				fmt.Printf("%3d %s %-9s %-16s %-14s %s\n",
					st.OrderIndex, marker, shortID(st.ID), st.HierarchyPath, st.Type, text)
			}
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "Include superseded statements")
	cmd.Flags().Bool("full", false, "Print full statement text")
	return cmd
}

func splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split [document] [statement]",
		Short: "Split a statement into parts",
		Long: `Split a statement into two or more parts at character offsets.

Each --range is start:end into the statement's text. Ranges must not
overlap; gaps are allowed and the gap text is dropped.

Example:
  statext split mydoc 4 --range 0:120 --range 121:300`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rangeSpecs, _ := cmd.Flags().GetStringSlice("range")
			inherit, _ := cmd.Flags().GetBool("inherit-columns")

			ranges := make([]edit.Range, 0, len(rangeSpecs))
			for _, spec := range rangeSpecs {
				r, err := parseRange(spec)
				if err != nil {
					return err
				}
				ranges = append(ranges, r)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}
			stID, err := a.resolveStatement(docID, args[1])
			if err != nil {
				return err
			}

			statements, err := a.engine.Split(stID, ranges, inherit)
			if err != nil {
				return err
			}
			if err := a.persist(docID); err != nil {
				return err
			}

			fmt.Printf("Split statement %s into %d parts (%d visible statements)\n",
				shortID(stID), len(ranges), len(statements))
			return nil
		},
	}

	cmd.Flags().StringSlice("range", nil, "Character range start:end (repeatable, at least two)")
	cmd.Flags().Bool("inherit-columns", false, "Copy the parent's custom field values to each part")
	return cmd
}

func mergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge [document] [statement...]",
		Short: "Merge statements into one",
		Long: `Merge two or more statements into a single statement. The merged
text joins the inputs in their given order; section metadata comes from
the first input. The inputs are superseded, not destroyed.

Example:
  statext merge mydoc 3 4 5 --delimiter " "`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			delimiter, _ := cmd.Flags().GetString("delimiter")
			sectionRef, _ := cmd.Flags().GetString("section-ref")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(args)-1)
			for _, ref := range args[1:] {
				id, err := a.resolveStatement(docID, ref)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			statements, err := a.engine.Merge(ids, delimiter, sectionRef)
			if err != nil {
				return err
			}
			if err := a.persist(docID); err != nil {
				return err
			}

			fmt.Printf("Merged %d statements (%d visible statements)\n", len(ids), len(statements))
			return nil
		},
	}

	cmd.Flags().String("delimiter", " ", "Text joined between merged parts")
	cmd.Flags().String("section-ref", "", "Section reference for the merged statement")
	return cmd
}

func groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group [document] [statement...]",
		Short: "Group statements under a heading",
		Long: `Create a group heading over two or more statements. The members
stay editable; the heading is a new statement placed directly above
them.

Example:
  statext group mydoc 2 3 4 --title "Data subject rights"`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			if title == "" {
				return fmt.Errorf("--title flag is required")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(args)-1)
			for _, ref := range args[1:] {
				id, err := a.resolveStatement(docID, ref)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			statements, err := a.engine.Group(title, ids)
			if err != nil {
				return err
			}
			if err := a.persist(docID); err != nil {
				return err
			}

			fmt.Printf("Grouped %d statements under %q (%d visible statements)\n",
				len(ids), title, len(statements))
			return nil
		},
	}

	cmd.Flags().String("title", "", "Group heading text")
	return cmd
}

func moveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move [document] [statement]",
		Short: "Move a statement up or down one position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			up, _ := cmd.Flags().GetBool("up")
			down, _ := cmd.Flags().GetBool("down")
			if up == down {
				return fmt.Errorf("exactly one of --up or --down is required")
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}
			stID, err := a.resolveStatement(docID, args[1])
			if err != nil {
				return err
			}

			if up {
				_, err = a.engine.MoveUp(stID)
			} else {
				_, err = a.engine.MoveDown(stID)
			}
			if err != nil {
				return err
			}
			return a.persist(docID)
		},
	}

	cmd.Flags().Bool("up", false, "Move toward the top")
	cmd.Flags().Bool("down", false, "Move toward the bottom")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [document] [statement...]",
		Short: "Delete statements",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(args)-1)
			for _, ref := range args[1:] {
				id, err := a.resolveStatement(docID, ref)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			statements, err := a.engine.Delete(docID, ids)
			if err != nil {
				return err
			}
			if err := a.persist(docID); err != nil {
				return err
			}

			fmt.Printf("Deleted %d statements (%d remain)\n", len(ids), len(statements))
			return nil
		},
	}
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [document] [statement] [field=value...]",
		Short: "Set custom field values on a statement",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}
			stID, err := a.resolveStatement(docID, args[1])
			if err != nil {
				return err
			}

			fields := make(map[string]any, len(args)-2)
			for _, pair := range args[2:] {
				key, value, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("invalid field assignment %q (want field=value)", pair)
				}
				fields[key] = value
			}

			if err := a.store.UpdateCustomFields(stID, fields); err != nil {
				return err
			}
			return a.persist(docID)
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [document]",
		Short: "Export a document's statements as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			docID, err := a.resolveDocument(args[0])
			if err != nil {
				return err
			}

			table := export.Build(a.store.List(docID, false), a.store.Columns(docID))

			w := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := table.WriteCSV(w); err != nil {
				return err
			}
			if output != "" {
				fmt.Printf("Exported %d statements to %s\n", len(table.Rows), output)
			}
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	return cmd
}

// parseRange parses a "start:end" character range.
func parseRange(spec string) (edit.Range, error) {
	startStr, endStr, ok := strings.Cut(spec, ":")
	if !ok {
		return edit.Range{}, fmt.Errorf("invalid range %q (want start:end)", spec)
	}
	start, err := strconv.Atoi(startStr)
	if err != nil {
		return edit.Range{}, fmt.Errorf("invalid range start %q", startStr)
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return edit.Range{}, fmt.Errorf("invalid range end %q", endStr)
	}
	return edit.Range{Start: start, End: end}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
