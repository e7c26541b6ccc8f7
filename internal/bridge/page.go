package bridge

import (
	"context"
	"fmt"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/runtime"

	"github.com/bnema/webview-content-blocker/internal/blocker"
)

// Page exposes a DevTools page target to the engine
type Page struct {
	page    cdp.Page
	runtime cdp.Runtime
}

var (
	_ blocker.TopURLProvider = (*Page)(nil)
	_ blocker.ScriptRunner   = (*Page)(nil)
)

// NewPage wraps the page and runtime domains of a client
func NewPage(c *cdp.Client) *Page {
	return &Page{page: c.Page, runtime: c.Runtime}
}

// TopURL returns the URL of the main frame
func (p *Page) TopURL(ctx context.Context) (string, error) {
	tree, err := p.page.GetFrameTree(ctx)
	if err != nil {
		return "", fmt.Errorf("get frame tree: %w", err)
	}
	return tree.FrameTree.Frame.URL, nil
}

// EvaluateScript runs script in the main frame
func (p *Page) EvaluateScript(ctx context.Context, script string) error {
	reply, err := p.runtime.Evaluate(ctx, runtime.NewEvaluateArgs(script))
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if reply.ExceptionDetails != nil {
		return fmt.Errorf("script exception: %s", reply.ExceptionDetails.Text)
	}
	return nil
}
