package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/webview-content-blocker/internal/blocker"
	"github.com/bnema/webview-content-blocker/internal/fetcher"
	"github.com/bnema/webview-content-blocker/internal/logging"
	"github.com/bnema/webview-content-blocker/internal/models"
)

var checkCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Evaluate one URL against a rule file",
	Long: `Evaluate one URL against a rule file. Without --resource-type or
--content-type the URL is classified with a HEAD request.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringP("rules", "r", "", "rule file (default: rules.file from config)")
	checkCmd.Flags().String("resource-type", "", "resource type of the request")
	checkCmd.Flags().String("content-type", "", "classify the request from this content type")
	checkCmd.Flags().String("top-url", "", "URL loaded in the top-level frame")
	checkCmd.Flags().String("method", http.MethodGet, "request method")
}

// staticTopURL serves a fixed top URL
type staticTopURL string

func (s staticTopURL) TopURL(context.Context) (string, error) { return string(s), nil }

// hideCollector captures the hide scripts of one evaluation
type hideCollector struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	scripts  int
	failures []string
}

func (c *hideCollector) ObserveCheck(string, time.Duration) {}
func (c *hideCollector) HideScheduled()                     { c.wg.Add(1) }

func (c *hideCollector) Failure(stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, stage)
}

func (c *hideCollector) EvaluateScript(context.Context, string) error {
	c.mu.Lock()
	c.scripts++
	c.mu.Unlock()
	c.wg.Done()
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	rulesPath, _ := cmd.Flags().GetString("rules")
	resourceType, _ := cmd.Flags().GetString("resource-type")
	contentType, _ := cmd.Flags().GetString("content-type")
	topURL, _ := cmd.Flags().GetString("top-url")
	method, _ := cmd.Flags().GetString("method")

	if rulesPath == "" {
		rulesPath = cfg.Rules.File
	}
	if resourceType != "" && !models.ResourceType(resourceType).Valid() {
		return fmt.Errorf("%w: %s", blocker.ErrUnknownResourceType, resourceType)
	}

	defs, err := models.LoadRuleFile(rulesPath)
	if err != nil {
		return err
	}

	collector := &hideCollector{}
	opts := engineOptions(fetcher.NewTransport(cfg.HTTP))
	opts.Scripts = collector
	opts.Recorder = collector
	opts.HideDelay = -1
	if topURL != "" {
		opts.TopURL = staticTopURL(topURL)
	}

	h := blocker.New(opts)
	if err := h.Load(defs); err != nil {
		return fmt.Errorf("%s: %w", rulesPath, err)
	}

	ctx := logging.WithContext(cmd.Context(), newLogger())
	req := blocker.Request{URL: args[0], Method: strings.ToUpper(method)}

	var rt models.ResourceType
	switch {
	case resourceType != "":
		rt = models.ResourceType(resourceType)
	case contentType != "":
		rt = blocker.ResourceTypeFromContentType(contentType)
	default:
		rt = h.Classifier().FromURL(ctx, req)
	}

	resp, err := h.CheckURL(ctx, req, rt)
	if err != nil {
		return err
	}
	collector.wg.Wait()

	lines := []string{
		theme.Title.Render("Content blocker check"),
		field("url", req.URL),
		field("resource type", string(rt)),
		field("rules", fmt.Sprintf("%d (%s)", h.Len(), rulesPath)),
	}
	if topURL != "" {
		lines = append(lines, field("top url", topURL))
	}

	switch {
	case resp == nil:
		lines = append(lines, field("decision", theme.Success.Render("allowed")))
	case resp.Action == models.ActionBlock:
		lines = append(lines, field("decision", theme.Error.Render("blocked")))
	default:
		lines = append(lines,
			field("decision", theme.Warning.Render("served over https")),
			field("status", fmt.Sprintf("%d %s", resp.StatusCode, resp.ReasonPhrase)),
			field("content type", strings.TrimSpace(resp.ContentType+" "+resp.Encoding)),
			field("body", fmt.Sprintf("%d bytes", len(resp.Body))),
		)
	}
	lines = append(lines, field("hide scripts", fmt.Sprintf("%d", collector.scripts)))
	if len(collector.failures) > 0 {
		lines = append(lines, field("failures", theme.Muted.Render(strings.Join(collector.failures, ", "))))
	}

	fmt.Fprintln(cmd.OutOrStdout(), theme.Box.Render(strings.Join(lines, "\n")))
	return nil
}
