// Package console implements the optional interactive console attached to
// the in-process adapter. At most one process per cluster runs it; that
// designation is decided outside and passed to the coordinator.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/switchyard-io/switchyard/internal/cli/output"
	"github.com/switchyard-io/switchyard/internal/cli/prompt"
	"github.com/switchyard-io/switchyard/internal/logger"
	"github.com/switchyard-io/switchyard/pkg/config"
	"github.com/switchyard-io/switchyard/pkg/legacy"
)

const (
	actionStatus   = "status"
	actionConfig   = "config"
	actionLogLevel = "log level"
	actionQuit     = "quit"
)

// Console is an interactive prompt loop over the handoff state. It
// implements legacy.Console.
type Console struct {
	coordinator *legacy.Coordinator
	distributor *config.Distributor
	out         io.Writer

	mu      sync.Mutex
	adapter legacy.Adapter
	stopped bool
	done    chan struct{}
}

// New creates a console over the distributor. The coordinator is attached
// afterwards, once it exists; the two reference each other.
func New(distributor *config.Distributor) *Console {
	return &Console{
		distributor: distributor,
		out:         os.Stdout,
	}
}

// Attach binds the coordinator. Must be called before Start.
func (c *Console) Attach(coordinator *legacy.Coordinator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coordinator = coordinator
}

// Start launches the prompt loop against the given adapter. Returns an
// error only when the console cannot start; prompt failures afterwards end
// the loop silently.
func (c *Console) Start(adapter legacy.Adapter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return fmt.Errorf("console already running")
	}
	c.adapter = adapter
	c.stopped = false
	c.done = make(chan struct{})

	go c.loop(c.done)

	logger.Info("Console started")
	return nil
}

// Stop ends the loop after the current prompt returns. It does not
// interrupt a prompt blocked on stdin.
func (c *Console) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.done = nil
}

func (c *Console) loop(done chan struct{}) {
	defer close(done)

	for {
		if c.isStopped() {
			return
		}

		action, err := prompt.SelectString("switchyard", []string{actionStatus, actionConfig, actionLogLevel, actionQuit})
		if err != nil {
			if !errors.Is(err, prompt.ErrAborted) {
				logger.Warn("Console prompt failed", "error", err)
			}
			return
		}

		switch action {
		case actionStatus:
			c.printStatus()
		case actionConfig:
			c.printConfig()
		case actionLogLevel:
			c.changeLogLevel()
		case actionQuit:
			return
		}
	}
}

func (c *Console) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Console) printStatus() {
	c.mu.Lock()
	coordinator := c.coordinator
	adapter := c.adapter
	c.mu.Unlock()
	if coordinator == nil {
		return
	}

	pairs := [][2]string{
		{"state", coordinator.State().String()},
		{"config revision", strconv.FormatUint(coordinator.LastRevision(), 10)},
		{"proxy ready", strconv.FormatBool(coordinator.Proxy().Ready())},
		{"log level", logger.GetLevel().String()},
	}
	if counter, ok := adapter.(interface{ HandlerCount() int }); ok {
		pairs = append(pairs, [2]string{"handlers", strconv.Itoa(counter.HandlerCount())})
	}
	if err := c.distributor.LastSourceError(); err != nil {
		pairs = append(pairs, [2]string{"last config error", err.Error()})
	}
	output.KeyValues(c.out, pairs)
}

// printConfig lists the top-level sections of the latest snapshot.
func (c *Console) printConfig() {
	snap := c.distributor.Latest()
	if snap == nil {
		fmt.Fprintln(c.out, "no configuration snapshot yet")
		return
	}

	raw := snap.Raw()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, settingSummary(raw[k])})
	}
	output.Table(c.out, []string{"Section", "Value"}, rows)
	fmt.Fprintf(c.out, "revision %d\n", snap.Revision())
}

// settingSummary renders a section value for the config listing. Nested
// sections collapse to their key count.
func settingSummary(v any) string {
	if m, ok := v.(map[string]any); ok {
		return fmt.Sprintf("(%d keys)", len(m))
	}
	return fmt.Sprintf("%v", v)
}

func (c *Console) changeLogLevel() {
	level, err := prompt.SelectString("log level", []string{"DEBUG", "INFO", "WARN", "ERROR"})
	if err != nil {
		return
	}
	logger.SetLevel(level)
	fmt.Fprintf(c.out, "log level set to %s\n", level)
}
