package kernel

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/raymyers/ralph-kgen/pkg/catalog"
	"github.com/raymyers/ralph-kgen/pkg/graph"
	"github.com/raymyers/ralph-kgen/pkg/kcache"
	"github.com/raymyers/ralph-kgen/pkg/render"
	"github.com/raymyers/ralph-kgen/pkg/sched"
)

// Cache is the persistent store a session reads generated source from
// and writes it to. *kcache.Cache implements it.
type Cache interface {
	Get(ctx context.Context, key kcache.Key) (kcache.Entry, bool, error)
	Put(ctx context.Context, e kcache.Entry) error
}

// Generated is one generated function
type Generated struct {
	Name   string // mangled name
	Kernel string
	Args   []Arg // runtime arguments, in signature order
	Consts []Arg
	Calls  []string // mangled names of the functions it calls
	Source string
	Cost   float64
	Cached bool // source came from the cache
}

// Request asks for one kernel specialization
type Request struct {
	Kernel  *Kernel
	Options Options
}

// Session generates kernels for one processor. The catalog is shared by
// every kernel; each generation builds its own graph, so a session can
// generate independent kernels concurrently.
type Session struct {
	Catalog   *catalog.Catalog
	Scheduler sched.Scheduler
	Cache     Cache // optional
	Logger    *slog.Logger
	RunID     string

	mu       sync.Mutex
	registry map[string]*Generated
}

// NewSession creates a session with the list scheduler and no cache
func NewSession(cat *catalog.Catalog) *Session {
	return &Session{
		Catalog:   cat,
		Scheduler: sched.List{},
		Logger:    slog.Default(),
		RunID:     uuid.Must(uuid.NewV7()).String(),
		registry:  make(map[string]*Generated),
	}
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Lookup returns a registered function by mangled name
func (s *Session) Lookup(name string) (*Generated, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.registry[name]
	return g, ok
}

// Registered lists the mangled names generated so far, sorted
func (s *Session) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// register stores gen unless the name is taken and returns the stored
// function
func (s *Session) register(gen *Generated) *Generated {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.registry[gen.Name]; ok {
		return prev
	}
	s.registry[gen.Name] = gen
	return gen
}

// build runs the body of k against a fresh graph
func (s *Session) build(ctx context.Context, k *Kernel, opts Options) (*graph.Graph, *Generated, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if k.Body == nil {
		return nil, nil, fmt.Errorf("kernel %s has no body", k.Name)
	}
	if !isIdent(k.Name) {
		return nil, nil, fmt.Errorf("kernel name %q is not an identifier", k.Name)
	}

	ctx, err := enter(ctx, k, opts)
	if err != nil {
		return nil, nil, err
	}

	g := graph.New(s.Catalog)
	b := newBuilder(g, k, opts)
	b.session, b.ctx = s, ctx
	if err := k.Body(b); err != nil {
		return nil, nil, fmt.Errorf("kernel %s: %w", k.Name, err)
	}
	if err := b.Err(); err != nil {
		return nil, nil, fmt.Errorf("kernel %s: %w", k.Name, err)
	}
	return g, &Generated{
		Name:   MangledName(k.Name, s.Catalog.Name, b.Args(true)),
		Kernel: k.Name,
		Args:   b.Args(false),
		Consts: b.Args(true),
		Calls:  b.calls,
	}, nil
}

// building is a kernel specialization whose body is running
type building struct {
	name string
	key  string
}

type buildingKey struct{}

// enter records k with opts as being built on the call chain carried by
// ctx, failing if it is already being built there
func enter(ctx context.Context, k *Kernel, opts Options) (context.Context, error) {
	chain, _ := ctx.Value(buildingKey{}).([]building)
	key := fmt.Sprintf("%p%v", k, map[string]any(opts))
	for i, c := range chain {
		if c.key != key {
			continue
		}
		names := make([]string, 0, len(chain)-i+1)
		for _, c := range chain[i:] {
			names = append(names, c.name)
		}
		names = append(names, k.Name)
		return nil, fmt.Errorf("kernel %s calls itself (%s)", k.Name, strings.Join(names, " -> "))
	}
	chain = append(slices.Clone(chain), building{name: k.Name, key: key})
	return context.WithValue(ctx, buildingKey{}, chain), nil
}

// Linearize builds one specialization of k and returns its linear
// program without scheduling or registering it. Functions it calls are
// generated and registered.
func (s *Session) Linearize(ctx context.Context, k *Kernel, opts Options) (*graph.Program, *Generated, error) {
	g, gen, err := s.build(ctx, k, opts)
	if err != nil {
		return nil, nil, err
	}
	prog, err := g.Linearize()
	if err != nil {
		return nil, nil, fmt.Errorf("kernel %s: %w", gen.Name, err)
	}
	return prog, gen, nil
}

// Generate builds, schedules and renders one specialization of k.
// A function already registered under the same mangled name is returned
// as is; otherwise the cache is consulted before scheduling.
func (s *Session) Generate(ctx context.Context, k *Kernel, opts Options) (*Generated, error) {
	g, gen, err := s.build(ctx, k, opts)
	if err != nil {
		return nil, err
	}
	if prev, ok := s.Lookup(gen.Name); ok {
		return prev, nil
	}
	log := s.logger().With("kernel", gen.Name, "run_id", s.RunID)

	key := kcache.Key{Name: gen.Name, Processor: s.Catalog.Name}
	if s.Cache != nil {
		e, ok, err := s.Cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			gen.Source, gen.Cost, gen.Cached = e.Source, e.Cost, true
			log.Debug("cache hit", "generated_by", e.RunID)
			return s.register(gen), nil
		}
	}

	prog, err := g.Linearize()
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", gen.Name, err)
	}
	scheduler := s.Scheduler
	if scheduler == nil {
		scheduler = sched.List{}
	}
	res, err := sched.Run(ctx, scheduler, prog, log)
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", gen.Name, err)
	}
	src, err := s.render(k.Dialect, gen, prog, res.Order)
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", gen.Name, err)
	}
	gen.Source, gen.Cost = src, res.Cost

	if s.Cache != nil {
		err := s.Cache.Put(ctx, kcache.Entry{
			Key:       key,
			Source:    gen.Source,
			Cost:      gen.Cost,
			Scheduler: sched.Name(scheduler),
			RunID:     s.RunID,
		})
		if err != nil {
			return nil, err
		}
	}
	log.Info("generated", "nodes", prog.Len(), "cost", gen.Cost, "scheduler", sched.Name(scheduler))
	return s.register(gen), nil
}

func (s *Session) render(d Dialect, gen *Generated, prog *graph.Program, order []int) (string, error) {
	var buf bytes.Buffer
	if p := d.Prefix(); p != "" {
		fmt.Fprintln(&buf, p)
	}
	params := make([]string, len(gen.Args))
	for i, a := range gen.Args {
		params[i] = a.Param()
	}
	fmt.Fprintf(&buf, "void %s(%s) {\n", gen.Name, strings.Join(params, ", "))
	pr := render.NewPrinter(&buf)
	pr.Indent = "\t"
	if err := pr.PrintProgram(prog, order); err != nil {
		return "", err
	}
	fmt.Fprintln(&buf, "}")
	return buf.String(), nil
}

// GenerateAll generates independent kernels in parallel. Results are in
// request order; the first failure cancels the remaining generations.
func (s *Session) GenerateAll(ctx context.Context, reqs []Request) ([]*Generated, error) {
	out := make([]*Generated, len(reqs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, r := range reqs {
		i, r := i, r
		eg.Go(func() error {
			gen, err := s.Generate(ctx, r.Kernel, r.Options)
			if err != nil {
				return err
			}
			out[i] = gen
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Bundle returns the source of a registered function preceded by the
// functions it calls, callees first and each once
func (s *Session) Bundle(name string) (string, error) {
	var buf bytes.Buffer
	seen := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		gen, ok := s.Lookup(name)
		if !ok {
			return fmt.Errorf("function %s is not registered", name)
		}
		for _, callee := range gen.Calls {
			if err := visit(callee); err != nil {
				return err
			}
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(gen.Source)
		return nil
	}
	if err := visit(name); err != nil {
		return "", err
	}
	return buf.String(), nil
}
