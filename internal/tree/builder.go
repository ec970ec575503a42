// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"driven-cli/internal/dag"
)

var (
	// ErrBuilderClosed is returned by Build after Cleanup has been called.
	ErrBuilderClosed = errors.New("tree builder already cleaned up")

	// ErrSourceMissing is returned when the directory of a Source does not exist.
	ErrSourceMissing = errors.New("source directory does not exist")
)

type (
	// Builder evaluates a node graph into directories under a private
	// temporary root. Outputs of nodes whose inputs did not change since the
	// previous Build are reused, so repeated builds of the same graph are
	// incremental. A Builder is bound to one root node.
	Builder struct {
		root    Node
		tmpRoot string
		logger  *log.Logger
		workers int

		mu     sync.Mutex
		closed bool
		ids    map[Node]string
		stats  Stats

		// prevMu guards prev across the goroutines of one level.
		prevMu sync.Mutex
		prev   map[Node]nodeState
	}

	// BuilderOption configures a Builder.
	BuilderOption func(*Builder)

	// Stats describes the most recent evaluation.
	Stats struct {
		Nodes   int
		Built   int
		Reused  int
		Sources int
	}

	nodeState struct {
		fp  fingerprint
		dir string
	}

	result struct {
		dir string
		fp  fingerprint
	}
)

var slugUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// WithLogger sets the logger used for per-node debug output.
func WithLogger(logger *log.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithWorkers bounds how many nodes of one level are evaluated at once.
func WithWorkers(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithTempDir places the builder's scratch directories below dir instead of
// the system temp directory.
func WithTempDir(dir string) BuilderOption {
	return func(b *Builder) {
		b.tmpRoot = dir
	}
}

// NewBuilder prepares a builder for root. The scratch directory is created
// immediately; call Cleanup to release it.
func NewBuilder(root Node, opts ...BuilderOption) (*Builder, error) {
	if root == nil {
		return nil, errors.New("tree builder: nil root node")
	}
	b := &Builder{
		root:    root,
		logger:  log.New(io.Discard),
		workers: runtime.GOMAXPROCS(0),
		ids:     make(map[Node]string),
		prev:    make(map[Node]nodeState),
	}
	for _, opt := range opts {
		opt(b)
	}

	parent := b.tmpRoot
	if parent != "" {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("tree builder: create temp parent: %w", err)
		}
	}
	tmp, err := os.MkdirTemp(parent, "driven-build-")
	if err != nil {
		return nil, fmt.Errorf("tree builder: create temp dir: %w", err)
	}
	b.tmpRoot = tmp
	return b, nil
}

// Root returns the node this builder evaluates.
func (b *Builder) Root() Node {
	return b.root
}

// Stats returns counters for the most recent Build.
func (b *Builder) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Build evaluates the graph and returns the directory holding the root
// node's output. The directory belongs to the builder and is only valid
// until the next Build or Cleanup. Any node failure aborts the evaluation
// and is returned as a *BuildError.
func (b *Builder) Build(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrBuilderClosed
	}

	graph := dag.New()
	nodes := make(map[string]Node)
	b.collect(b.root, graph, nodes, make(map[Node]bool))

	levels, err := graph.Levels()
	if err != nil {
		return "", fmt.Errorf("order tree graph: %w", err)
	}

	var (
		resMu   sync.Mutex
		results = make(map[Node]result, len(nodes))
		stats   = Stats{Nodes: len(nodes)}
	)

	for _, level := range levels {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.workers)
		for _, id := range level {
			node := nodes[id]
			g.Go(func() error {
				resMu.Lock()
				inputs := b.inputResults(node, results)
				resMu.Unlock()

				res, reused, err := b.evaluate(gctx, id, node, inputs)
				if err != nil {
					return err
				}

				resMu.Lock()
				defer resMu.Unlock()
				results[node] = res
				switch {
				case isSource(node):
					stats.Sources++
				case reused:
					stats.Reused++
				default:
					stats.Built++
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			b.stats = stats
			return "", err
		}
	}

	b.stats = stats
	return results[b.root].dir, nil
}

// Cleanup removes every scratch directory. The builder cannot be used
// afterwards.
func (b *Builder) Cleanup() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if err := os.RemoveAll(b.tmpRoot); err != nil {
		return fmt.Errorf("tree builder: remove %s: %w", b.tmpRoot, err)
	}
	return nil
}

// collect assigns stable ids and records edges from each input to its consumer.
func (b *Builder) collect(n Node, graph *dag.Graph, nodes map[string]Node, seen map[Node]bool) string {
	id := b.idFor(n)
	if seen[n] {
		return id
	}
	seen[n] = true
	nodes[id] = n
	graph.AddNode(id)
	if t, ok := n.(Transform); ok {
		for _, in := range t.Inputs() {
			inID := b.collect(in, graph, nodes, seen)
			graph.AddEdge(inID, id)
		}
	}
	return id
}

func (b *Builder) idFor(n Node) string {
	if id, ok := b.ids[n]; ok {
		return id
	}
	slug := slugUnsafe.ReplaceAllString(n.Annotation(), "-")
	if len(slug) > 48 {
		slug = slug[:48]
	}
	id := strconv.Itoa(len(b.ids)) + "-" + slug
	b.ids[n] = id
	return id
}

func (b *Builder) inputResults(n Node, results map[Node]result) []result {
	t, ok := n.(Transform)
	if !ok {
		return nil
	}
	ins := make([]result, 0, len(t.Inputs()))
	for _, in := range t.Inputs() {
		ins = append(ins, results[in])
	}
	return ins
}

// evaluate produces one node's output, reusing the previous output when the
// input fingerprint is unchanged.
func (b *Builder) evaluate(ctx context.Context, id string, n Node, inputs []result) (result, bool, error) {
	switch v := n.(type) {
	case Source:
		dir, err := filepath.Abs(v.SourceDir())
		if err != nil {
			return result{}, false, &BuildError{Annotation: v.Annotation(), Err: err}
		}
		fp, err := sourceFingerprint(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return result{}, false, &BuildError{Annotation: v.Annotation(), Err: fmt.Errorf("%w: %s", ErrSourceMissing, dir)}
		}
		if err != nil {
			return result{}, false, &BuildError{Annotation: v.Annotation(), Err: fmt.Errorf("read source directory: %w", err)}
		}
		return result{dir: dir, fp: fp}, false, nil

	case Transform:
		fps := make([]fingerprint, len(inputs))
		dirs := make([]string, len(inputs))
		for i, in := range inputs {
			fps[i] = in.fp
			dirs[i] = in.dir
		}
		fp := transformFingerprint(id, fps)

		b.prevMu.Lock()
		prev, ok := b.prev[n]
		b.prevMu.Unlock()
		if ok && prev.fp == fp && IsDir(prev.dir) {
			b.logger.Debug("reuse", "node", v.Annotation())
			return result{dir: prev.dir, fp: fp}, true, nil
		}

		out := filepath.Join(b.tmpRoot, id)
		if err := os.RemoveAll(out); err != nil {
			return result{}, false, &BuildError{Annotation: v.Annotation(), Err: err}
		}
		if err := os.MkdirAll(out, 0o755); err != nil {
			return result{}, false, &BuildError{Annotation: v.Annotation(), Err: err}
		}

		b.logger.Debug("build", "node", v.Annotation())
		if err := v.Build(ctx, dirs, out); err != nil {
			b.prevMu.Lock()
			delete(b.prev, n)
			b.prevMu.Unlock()
			var be *BuildError
			if errors.As(err, &be) {
				return result{}, false, err
			}
			return result{}, false, &BuildError{Annotation: v.Annotation(), Err: err}
		}

		b.prevMu.Lock()
		b.prev[n] = nodeState{fp: fp, dir: out}
		b.prevMu.Unlock()
		return result{dir: out, fp: fp}, false, nil

	default:
		return result{}, false, &BuildError{
			Annotation: n.Annotation(),
			Err:        fmt.Errorf("node type %T is neither a Source nor a Transform", n),
		}
	}
}

func isSource(n Node) bool {
	_, ok := n.(Source)
	return ok
}
