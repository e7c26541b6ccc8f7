package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/rpcc"
)

// ErrNoTarget is returned when no page target can be attached
var ErrNoTarget = errors.New("no page target available")

// Conn is a DevTools connection to one page target
type Conn struct {
	Target *devtool.Target
	Client *cdp.Client
	rpc    *rpcc.Conn
}

// Dial attaches to target on the browser exposing devtoolsURL. An empty
// target picks the most recent user page.
func Dial(ctx context.Context, devtoolsURL, target string) (*Conn, error) {
	targets, err := devtool.New(devtoolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	sel := selectTarget(targets, target)
	if sel == nil {
		if target != "" {
			return nil, fmt.Errorf("%w: %s", ErrNoTarget, target)
		}
		return nil, ErrNoTarget
	}

	rpc, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", sel.ID, err)
	}
	return &Conn{Target: sel, Client: cdp.NewClient(rpc), rpc: rpc}, nil
}

// Close closes the DevTools connection
func (c *Conn) Close() error {
	return c.rpc.Close()
}

// selectTarget returns the target with id, or without id the last page that
// shows user content.
func selectTarget(targets []*devtool.Target, id string) *devtool.Target {
	if id != "" {
		for _, t := range targets {
			if t != nil && t.ID == id {
				return t
			}
		}
		return nil
	}

	var fallback *devtool.Target
	for i := len(targets) - 1; i >= 0; i-- {
		t := targets[i]
		if t == nil || t.Type != devtool.Page {
			continue
		}
		if isUserPageURL(t.URL) {
			return t
		}
		if fallback == nil {
			fallback = t
		}
	}
	return fallback
}

func isUserPageURL(u string) bool {
	if u == "" {
		return false
	}
	for _, prefix := range []string{"devtools://", "chrome://", "chrome-extension://", "edge://", "about:"} {
		if strings.HasPrefix(u, prefix) {
			return false
		}
	}
	return true
}
