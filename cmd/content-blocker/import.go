package main

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/webview-content-blocker/internal/converter"
	"github.com/bnema/webview-content-blocker/internal/fetcher"
	"github.com/bnema/webview-content-blocker/internal/models"
	"github.com/bnema/webview-content-blocker/internal/parser"
	"github.com/bnema/webview-content-blocker/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Convert the configured filter lists into a rule payload",
	Long: `Download the enabled uBlock/ABP filter lists, convert them to rules and
write the deduplicated payload to a file or save it as a named rule set.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringP("output", "o", "", "output file (default: rules.file from config)")
	importCmd.Flags().String("save-as", "", "save to the store under this name instead of a file")
	importCmd.Flags().Bool("activate", false, "activate the saved rule set")
	importCmd.Flags().Bool("dry-run", false, "parse and convert without writing")
	importCmd.Flags().Bool("verbose", false, "verbose output")
	importCmd.Flags().Int("parallel", 4, "lists downloaded at once")
}

// listResult is the outcome of one filter list
type listResult struct {
	name         string
	size         int
	rules        []models.RuleDefinition
	parseStats   parser.Stats
	convertStats converter.Stats
	err          error
}

func runImport(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	saveAs, _ := cmd.Flags().GetString("save-as")
	activate, _ := cmd.Flags().GetBool("activate")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verbose, _ := cmd.Flags().GetBool("verbose")
	parallel, _ := cmd.Flags().GetInt("parallel")

	enabledLists := cfg.EnabledLists()
	if len(enabledLists) == 0 {
		return fmt.Errorf("no enabled filter lists found in config")
	}

	fmt.Printf("Converting %d filter lists...\n", len(enabledLists))
	if dryRun {
		fmt.Println("[DRY RUN] Nothing will be written")
	}

	ctx := cmd.Context()
	f := fetcher.New(cfg.HTTP, newLogger())
	results := make([]listResult, len(enabledLists))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, list := range enabledLists {
		i, list := i, list
		g.Go(func() error {
			res := listResult{name: list.Name}
			defer func() { results[i] = res }()

			data, err := f.Fetch(gctx, list.URL)
			if err != nil {
				res.err = err
				return nil
			}
			res.size = len(data)

			// fresh parser and converter per list for accurate stats
			p := parser.New()
			filters, err := p.Parse(bytes.NewReader(data))
			if err != nil {
				res.err = fmt.Errorf("parse: %w", err)
				return nil
			}
			c := converter.New()
			res.rules = c.Convert(filters)
			res.parseStats = p.Stats()
			res.convertStats = c.Stats()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var all []models.RuleDefinition
	skips := make(map[string]int)
	for _, res := range results {
		fmt.Printf("\n  %s\n", theme.Title.Render(res.name))
		if res.err != nil {
			fmt.Printf("    %s %v\n", theme.Error.Render("ERROR"), res.err)
			continue
		}

		skipped := res.parseStats.Unsupported + res.convertStats.Skipped
		fmt.Printf("    Downloaded: %d bytes\n", res.size)
		fmt.Printf("    Converted: %d rules (skipped: %d)\n", len(res.rules), skipped)
		if verbose {
			fmt.Printf("    Parsed: %d total, %d network, %d cosmetic, %d exceptions\n",
				res.parseStats.Total, res.parseStats.Network, res.parseStats.Cosmetic, res.parseStats.Exception)
		}
		for reason, n := range res.parseStats.SkipReasons {
			skips[reason] += n
		}
		for reason, n := range res.convertStats.SkipReasons {
			skips[reason] += n
		}
		all = append(all, res.rules...)
	}

	if len(skips) > 0 {
		fmt.Printf("\nSkipped filters summary:\n")
		reasons := make([]string, 0, len(skips))
		for reason := range skips {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Printf("  %s: %d\n", reason, skips[reason])
		}
	}

	all = converter.Deduplicate(all)
	fmt.Printf("\nTotal rules: %d (after deduplication)\n", len(all))
	if len(all) == 0 {
		return fmt.Errorf("no rules converted")
	}
	if dryRun {
		return nil
	}

	if saveAs != "" {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := st.Save(ctx, saveAs, all)
		if err != nil {
			return err
		}
		if activate {
			if err := st.Activate(ctx, saveAs); err != nil {
				return err
			}
		}
		fmt.Printf("Saved rule set %s (%d rules)\n", rec.Name, rec.RuleCount)
		return nil
	}

	if output == "" {
		output = cfg.Rules.File
	}
	if err := writeRules(output, all); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", output)
	return nil
}
