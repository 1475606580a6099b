/*
Copyright © 2025 Vitalii Kuzmyk <vitalii.kuzmyk@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vkuzmyk/mdlate/internal/state"
	"github.com/vkuzmyk/mdlate/internal/store"
)

var glossaryDBPath string

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Manage the terminology glossary",
	Long: `Add, list, delete, import, and export glossary entries.

Glossary entries fix how a source term is rendered in the target language.
During a run the stored entries seed the document glossary, and terms the
run discovers are written back, unless the term already has a rendering:
established renderings always win.`,
}

var (
	glossaryListSource string
	glossaryListTarget string
)

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List glossary entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(glossaryDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		// Empty filters list everything; flags narrow them.
		entries, err := db.ListGlossary(context.Background(), glossaryListSource, glossaryListTarget)
		if err != nil {
			return fmt.Errorf("failed to list glossary: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("Glossary is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE LANG\tTARGET LANG\tSOURCE TERM\tTARGET TERM")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.SourceLang, e.TargetLang, e.SourceTerm, e.TargetTerm)
		}
		return w.Flush()
	},
}

var (
	glossaryAddSource string
	glossaryAddTarget string
)

var glossaryAddCmd = &cobra.Command{
	Use:   "add <source-term> <target-term>",
	Short: "Add or update a glossary entry",
	Long: `Add a glossary entry mapping a source-language term to a target-language
rendering, replacing any existing rendering for that term.

Example:
  mdlate glossary add "Kyiv" "Київ" --source en --target uk`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if glossaryAddSource == "" || glossaryAddTarget == "" {
			return fmt.Errorf("--source and --target language flags are required")
		}

		db, err := store.New(glossaryDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		term := state.Term{Source: args[0], Target: args[1]}
		if err := db.UpsertGlossaryTerm(context.Background(), glossaryAddSource, glossaryAddTarget, term); err != nil {
			return fmt.Errorf("failed to add glossary entry: %w", err)
		}
		fmt.Printf("Added: [%s->%s] %q -> %q\n", glossaryAddSource, glossaryAddTarget, args[0], args[1])
		return nil
	},
}

var (
	glossaryDelSource string
	glossaryDelTarget string
)

var glossaryDeleteCmd = &cobra.Command{
	Use:   "delete <source-term>",
	Short: "Delete a glossary entry",
	Long: `Delete the entry for a source term in one language pair.

Example:
  mdlate glossary delete "Kyiv" --source en --target uk`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if glossaryDelSource == "" || glossaryDelTarget == "" {
			return fmt.Errorf("--source and --target language flags are required")
		}

		db, err := store.New(glossaryDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		deleted, err := db.DeleteGlossaryTerm(context.Background(), glossaryDelSource, glossaryDelTarget, args[0])
		if err != nil {
			return fmt.Errorf("failed to delete glossary entry: %w", err)
		}
		if !deleted {
			return fmt.Errorf("no entry for %q in %s->%s", args[0], glossaryDelSource, glossaryDelTarget)
		}
		fmt.Printf("Deleted: [%s->%s] %q\n", glossaryDelSource, glossaryDelTarget, args[0])
		return nil
	},
}

var (
	glossaryExportSource string
	glossaryExportTarget string
)

var glossaryExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export a language pair's glossary to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if glossaryExportSource == "" || glossaryExportTarget == "" {
			return fmt.Errorf("--source and --target language flags are required")
		}

		db, err := store.New(glossaryDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		terms, err := db.GlossaryTerms(context.Background(), glossaryExportSource, glossaryExportTarget)
		if err != nil {
			return fmt.Errorf("failed to read glossary: %w", err)
		}
		if err := writeGlossaryFile(args[0], terms); err != nil {
			return err
		}
		fmt.Printf("Exported %d term(s) to %s\n", len(terms), args[0])
		return nil
	},
}

var (
	glossaryImportSource    string
	glossaryImportTarget    string
	glossaryImportOverwrite bool
)

var glossaryImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import glossary entries from a YAML file",
	Long: `Import entries from a YAML glossary file into one language pair. Existing
renderings are kept unless --overwrite is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if glossaryImportSource == "" || glossaryImportTarget == "" {
			return fmt.Errorf("--source and --target language flags are required")
		}

		terms, err := readGlossaryFile(args[0])
		if err != nil {
			return err
		}

		db, err := store.New(glossaryDBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		ctx := context.Background()
		added := 0
		for _, t := range terms {
			if glossaryImportOverwrite {
				if err := db.UpsertGlossaryTerm(ctx, glossaryImportSource, glossaryImportTarget, t); err != nil {
					return fmt.Errorf("failed to import %q: %w", t.Source, err)
				}
				added++
				continue
			}
			ok, err := db.SeedGlossaryTerm(ctx, glossaryImportSource, glossaryImportTarget, t)
			if err != nil {
				return fmt.Errorf("failed to import %q: %w", t.Source, err)
			}
			if ok {
				added++
			}
		}
		fmt.Printf("Imported %d of %d term(s)\n", added, len(terms))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryCmd.PersistentFlags().StringVar(&glossaryDBPath, "db", "./data/mdlate.db", "Database path")

	glossaryListCmd.Flags().StringVarP(&glossaryListSource, "source", "s", "", "Filter by source language code (e.g. en)")
	glossaryListCmd.Flags().StringVarP(&glossaryListTarget, "target", "t", "", "Filter by target language code (e.g. uk)")

	glossaryAddCmd.Flags().StringVarP(&glossaryAddSource, "source", "s", "", "Source language code (e.g. en)")
	glossaryAddCmd.Flags().StringVarP(&glossaryAddTarget, "target", "t", "", "Target language code (e.g. uk)")

	glossaryDeleteCmd.Flags().StringVarP(&glossaryDelSource, "source", "s", "", "Source language code (e.g. en)")
	glossaryDeleteCmd.Flags().StringVarP(&glossaryDelTarget, "target", "t", "", "Target language code (e.g. uk)")

	glossaryExportCmd.Flags().StringVarP(&glossaryExportSource, "source", "s", "", "Source language code (e.g. en)")
	glossaryExportCmd.Flags().StringVarP(&glossaryExportTarget, "target", "t", "", "Target language code (e.g. uk)")

	glossaryImportCmd.Flags().StringVarP(&glossaryImportSource, "source", "s", "", "Source language code (e.g. en)")
	glossaryImportCmd.Flags().StringVarP(&glossaryImportTarget, "target", "t", "", "Target language code (e.g. uk)")
	glossaryImportCmd.Flags().BoolVar(&glossaryImportOverwrite, "overwrite", false, "Replace existing renderings")

	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryAddCmd)
	glossaryCmd.AddCommand(glossaryDeleteCmd)
	glossaryCmd.AddCommand(glossaryExportCmd)
	glossaryCmd.AddCommand(glossaryImportCmd)
}
