package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/webview-content-blocker/internal/models"
	"github.com/bnema/webview-content-blocker/internal/store"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage named rule sets",
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved rule sets",
	Args:  cobra.NoArgs,
	RunE:  runStoreList,
}

var storeSaveCmd = &cobra.Command{
	Use:   "save <name> <file>",
	Short: "Save a rule file under a name",
	Args:  cobra.ExactArgs(2),
	RunE:  runStoreSave,
}

var storeActivateCmd = &cobra.Command{
	Use:   "activate <name>",
	Short: "Make a rule set the one loaded by serve",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreActivate,
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a rule set",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreDelete,
}

var storeExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Write a rule set as a JSON payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreExport,
}

func init() {
	storeSaveCmd.Flags().Bool("activate", false, "activate the rule set after saving")
	storeExportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	storeCmd.AddCommand(storeListCmd, storeSaveCmd, storeActivateCmd, storeDeleteCmd, storeExportCmd)
}

func openStore() (*store.Store, error) {
	return store.Open(cfg.Store.Path)
}

func runStoreList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	recs, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println(theme.Muted.Render("No rule sets in " + cfg.Store.Path))
		return nil
	}

	for _, rec := range recs {
		status := theme.Muted.Render("inactive")
		if rec.IsActive {
			status = theme.Success.Render("active")
		}
		fmt.Printf("  [%s] %s\n", status, theme.Title.Render(rec.Name))
		fmt.Printf("         %d rules, updated %s\n\n", rec.RuleCount, rec.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runStoreSave(cmd *cobra.Command, args []string) error {
	activate, _ := cmd.Flags().GetBool("activate")

	defs, err := models.LoadRuleFile(args[1])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.Save(cmd.Context(), args[0], defs)
	if err != nil {
		return err
	}
	if activate {
		if err := st.Activate(cmd.Context(), rec.Name); err != nil {
			return err
		}
	}
	fmt.Printf("Saved rule set %s (%d rules)\n", rec.Name, rec.RuleCount)
	return nil
}

func runStoreActivate(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Activate(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Activated rule set %s\n", args[0])
	return nil
}

func runStoreDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted rule set %s\n", args[0])
	return nil
}

func runStoreExport(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	set, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if output == "" {
		return models.EncodeRuleDefinitions(os.Stdout, set.Rules)
	}
	if err := writeRules(output, set.Rules); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", output)
	return nil
}
