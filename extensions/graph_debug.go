package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/m1gwings/treedrawer/tree"
	sodium "github.com/pumped-fn/sodium-go"
)

// GraphDebugExtension logs the propagation-graph neighborhood of a node
// whose update panicked, rendered both as a horizontal tree and a
// detailed listing.
//
// Usage:
//
//	// Human-readable formatted output (with line breaks)
//	handler := extensions.NewHumanHandler(os.Stdout, slog.LevelError)
//	ext := extensions.NewGraphDebugExtension(handler)
//
//	// Structured JSON logging (compact, machine-readable)
//	handler := slog.NewJSONHandler(os.Stdout, nil)
//	ext := extensions.NewGraphDebugExtension(handler)
//
//	// Silent (for testing)
//	ext := extensions.NewGraphDebugExtension(extensions.NewSilentHandler())
//
// The extension logs at ERROR level only when a transaction panics.
type GraphDebugExtension struct {
	sodium.BaseExtension
	logger *slog.Logger
}

// NewGraphDebugExtension creates a new graph debug extension.
// logHandler: slog.Handler for logging (use HumanHandler for formatted output, or any other slog.Handler)
func NewGraphDebugExtension(logHandler slog.Handler) *GraphDebugExtension {
	return &GraphDebugExtension{
		BaseExtension: sodium.NewBaseExtension("graph-debug"),
		logger:        slog.New(logHandler),
	}
}

// OnTransactionError logs the dependency graph around the node that
// panicked, if the error identifies one.
func (e *GraphDebugExtension) OnTransactionError(err error, op *sodium.Operation) {
	pe, ok := err.(*sodium.PropagationError)
	if !ok || pe.Node == nil {
		e.logger.Error("Transaction Panic", "panic", err.Error())
		return
	}

	graphOutput := e.formatDependencyGraph(pe.Node)
	e.logger.Error("Transaction Panic",
		"node", pe.Node.Name(),
		"error", err.Error(),
		"dependency_graph", graphOutput,
		"stack_trace", string(pe.Stack),
	)
}

// tryFormatHorizontalTree renders the upstream dependency graph of failed,
// walking its Dependencies() edges, as a horizontal tree using treedrawer.
func (e *GraphDebugExtension) tryFormatHorizontalTree(failed *sodium.Node) string {
	t := e.buildTree(failed, failed, make(map[*sodium.Node]bool))
	if t == nil {
		return ""
	}
	return t.String()
}

func (e *GraphDebugExtension) buildTree(n, failed *sodium.Node, visited map[*sodium.Node]bool) *tree.Tree {
	if visited[n] {
		return nil
	}
	visited[n] = true

	label := n.Name()
	if n == failed {
		label += " ✗"
	}
	node := tree.NewTree(tree.NodeString(label))

	deps := n.Dependencies()
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name() < deps[j].Name() })
	for _, dep := range deps {
		childTree := e.buildTree(dep, failed, visited)
		if childTree != nil {
			e.addTreeAsChild(node, childTree)
		}
	}
	return node
}

func (e *GraphDebugExtension) addTreeAsChild(parent *tree.Tree, child *tree.Tree) {
	newChild := parent.AddChild(child.Val())
	for _, grandchild := range child.Children() {
		e.addTreeAsChild(newChild, grandchild)
	}
}

func (e *GraphDebugExtension) formatDependencyGraph(failed *sodium.Node) string {
	var sb strings.Builder

	horizontalTree := e.tryFormatHorizontalTree(failed)
	if horizontalTree != "" {
		sb.WriteString("\n")
		sb.WriteString(horizontalTree)
		sb.WriteString("\n")
	}

	sb.WriteString("\nDetailed View:\n")
	e.writeDetail(&sb, failed, failed, make(map[*sodium.Node]bool))
	return sb.String()
}

func (e *GraphDebugExtension) writeDetail(sb *strings.Builder, n, failed *sodium.Node, visited map[*sodium.Node]bool) {
	if visited[n] {
		return
	}
	visited[n] = true

	status := ""
	if n == failed {
		status = " ✗ FAILED"
	}

	deps := n.Dependencies()
	if len(deps) == 0 {
		sb.WriteString(fmt.Sprintf("  %s%s (no dependencies)\n", n.Name(), status))
		return
	}
	sb.WriteString(fmt.Sprintf("  %s%s\n", n.Name(), status))

	sort.Slice(deps, func(i, j int) bool { return deps[i].Name() < deps[j].Name() })
	for i, dep := range deps {
		prefix := "    ├─> "
		if i == len(deps)-1 {
			prefix = "    └─> "
		}
		sb.WriteString(fmt.Sprintf("%s%s\n", prefix, dep.Name()))
	}
	for _, dep := range deps {
		e.writeDetail(sb, dep, failed, visited)
	}
}

// SilentHandler is a slog.Handler that discards all log output. Useful for
// testing when log output would only be noise.
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler.
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}

// HumanHandler is a slog.Handler that formats logs for human readability
// with proper line breaks and visual formatting, especially for
// dependency-graph dumps.
type HumanHandler struct {
	writer io.Writer
	level  slog.Level
}

// NewHumanHandler creates a new human-readable log handler.
func NewHumanHandler(writer io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{writer: writer, level: level}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Message == "Transaction Panic" {
		return h.handleTransactionPanic(record)
	}

	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) handleTransactionPanic(record slog.Record) error {
	var node, errorMsg, dependencyGraph, stackTrace string

	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "node":
			node = a.Value.String()
		case "error":
			errorMsg = a.Value.String()
		case "dependency_graph":
			dependencyGraph = a.Value.String()
		case "stack_trace":
			stackTrace = a.Value.String()
		}
		return true
	})

	writes := []func() error{
		func() error { _, err := fmt.Fprintln(h.writer); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer, "[GraphDebug] Transaction Panic"); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nFailed Node: %s\n", node); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Error: %s\n", errorMsg); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nDependency Graph:%s", dependencyGraph); return err },
	}
	if stackTrace != "" {
		writes = append(writes, func() error {
			_, err := fmt.Fprintf(h.writer, "\nStack Trace:\n%s\n", stackTrace)
			return err
		})
	}
	writes = append(writes,
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer); return err },
	)

	for _, write := range writes {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *HumanHandler) WithGroup(name string) slog.Handler {
	return h
}
