package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"docgen-workers/internal/models"
	"docgen-workers/internal/store"
	"docgen-workers/pkg/registry"

	"github.com/spf13/cobra"
)

var (
	templatesFile     string
	templatesCategory string
	templatesLimit    int
	templatesJSON     bool
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage the template catalogue",
	Long: `Manage the template registry file and the template store.

Subcommands:
  validate  - Check the registry file against its schema and rules
  import    - Upsert every registry template into the configured store
  bump      - Increment the version of one registry template
  list      - List templates from the configured store

Examples:
  docgen templates validate --file configs/templates.json
  docgen templates import
  docgen templates bump viewing_confirmation
  docgen templates list --category viewing`,
}

var templatesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the registry file",
	RunE:  runTemplatesValidate,
}

var templatesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Upsert registry templates into the store",
	RunE:  runTemplatesImport,
}

var templatesBumpCmd = &cobra.Command{
	Use:   "bump <template-id>",
	Short: "Increment a template's version in the registry file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesBump,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates from the store",
	RunE:  runTemplatesList,
}

func init() {
	templatesCmd.PersistentFlags().StringVarP(&templatesFile, "file", "f", "", "registry file (default: template.registry_path)")

	templatesListCmd.Flags().StringVar(&templatesCategory, "category", "", "filter by category")
	templatesListCmd.Flags().IntVar(&templatesLimit, "limit", 50, "maximum templates to list")
	templatesListCmd.Flags().BoolVar(&templatesJSON, "json", false, "print JSON instead of a table")

	templatesCmd.AddCommand(templatesValidateCmd)
	templatesCmd.AddCommand(templatesImportCmd)
	templatesCmd.AddCommand(templatesBumpCmd)
	templatesCmd.AddCommand(templatesListCmd)
}

// registryPath prefers --file and only reads the config when it is unset.
func registryPath() (string, error) {
	if templatesFile != "" {
		return templatesFile, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.Template.RegistryPath, nil
}

func runTemplatesValidate(cmd *cobra.Command, _ []string) error {
	path, err := registryPath()
	if err != nil {
		return err
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d templates, version %s\n", path, len(reg.Templates), reg.Version)
	return nil
}

func runTemplatesImport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if templatesFile != "" {
		cfg.Template.RegistryPath = templatesFile
	}
	zapLog, log := newLoggers(cfg)
	defer zapLog.Sync()

	reg, err := registry.LoadRegistry(cfg.Template.RegistryPath)
	if err != nil {
		return err
	}
	if err := reg.Validate(); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	stores, err := store.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	imported := 0
	for _, entry := range reg.Templates {
		t := store.FromRegistryEntry(entry)
		if err := stores.Templates.Upsert(ctx, t); err != nil {
			return fmt.Errorf("upsert %s: %w", entry.ID, err)
		}
		if stores.Indexer != nil {
			if err := stores.Indexer.Index(ctx, t); err != nil {
				log.Warn("template not indexed", map[string]interface{}{"templateId": entry.ID, "error": err.Error()})
			}
		}
		imported++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d templates into %s store\n", imported, cfg.Store.Driver)
	return nil
}

func runTemplatesBump(cmd *cobra.Command, args []string) error {
	path, err := registryPath()
	if err != nil {
		return err
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	entry, ok := reg.Find(args[0])
	if !ok {
		return fmt.Errorf("template %q not found in %s", args[0], path)
	}
	entry.Version++
	reg.Upsert(entry)
	if err := reg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now version %d\n", entry.ID, entry.Version)
	return nil
}

func runTemplatesList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	zapLog, log := newLoggers(cfg)
	defer zapLog.Sync()

	category := models.Category(templatesCategory)
	if category != "" && !category.Valid() {
		return fmt.Errorf("unknown category %q", templatesCategory)
	}

	ctx := commandContext(cmd)
	stores, err := store.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	list, err := stores.Searcher.Search(ctx, models.TemplateFilter{
		Category:     category,
		OrderByUsage: true,
		Limit:        templatesLimit,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if templatesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tVERSION\tUSES\tSUCCESS")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\n", t.ID, t.Category, t.Version, t.Metadata.UsageCount, t.Metadata.SuccessRate)
	}
	return w.Flush()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
