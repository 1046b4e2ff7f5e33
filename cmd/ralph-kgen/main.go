package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raymyers/ralph-kgen/pkg/catalog"
	"github.com/raymyers/ralph-kgen/pkg/demo"
	"github.com/raymyers/ralph-kgen/pkg/kcache"
	"github.com/raymyers/ralph-kgen/pkg/kernel"
	"github.com/raymyers/ralph-kgen/pkg/procdesc"
	"github.com/raymyers/ralph-kgen/pkg/render"
	"github.com/raymyers/ralph-kgen/pkg/sched"
)

var version = "0.1.0"

// options holds the flags shared by every subcommand
type options struct {
	proc    string
	profile string
	verbose bool
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "ralph-kgen",
		Short: "ralph-kgen generates specialized compute kernels",
		Long: `ralph-kgen builds kernels as hash-consed value graphs, simplifies
them, schedules them against a processor description and prints
the generated C-family source.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVar(&opts.proc, "proc", "", "Processor description file (.yaml or .cue)")
	rootCmd.PersistentFlags().StringVar(&opts.profile, "profile", procdesc.Host(), "Embedded processor profile ("+strings.Join(procdesc.Profiles(), ", ")+")")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log scheduling details to stderr")

	rootCmd.AddCommand(newOpsCmd(opts, out, errOut))
	rootCmd.AddCommand(newGenCmd(opts, out, errOut))
	rootCmd.AddCommand(newGraphCmd(opts, out, errOut))
	rootCmd.AddCommand(newCacheCmd(opts, out, errOut))
	return rootCmd
}

// fail reports err the way every subcommand does and returns it
func fail(errOut io.Writer, err error) error {
	fmt.Fprintf(errOut, "ralph-kgen: %v\n", err)
	return err
}

// loadCatalog builds the catalog from --proc, falling back to --profile
func (o *options) loadCatalog() (*catalog.Catalog, error) {
	var (
		d   *procdesc.Descr
		err error
	)
	if o.proc != "" {
		d, err = procdesc.LoadFile(o.proc)
	} else {
		d, err = procdesc.Profile(o.profile)
	}
	if err != nil {
		return nil, err
	}
	return catalog.New(d)
}

func (o *options) logger(errOut io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
}

func (o *options) session(errOut io.Writer) (*kernel.Session, error) {
	c, err := o.loadCatalog()
	if err != nil {
		return nil, err
	}
	s := kernel.NewSession(c)
	s.Logger = o.logger(errOut)
	return s, nil
}

func newOpsCmd(opts *options, out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the operations of the processor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.loadCatalog()
			if err != nil {
				return fail(errOut, err)
			}
			printCatalog(out, c)
			return nil
		},
	}
}

// printCatalog writes the memory levels and the operation table
func printCatalog(w io.Writer, c *catalog.Catalog) {
	fmt.Fprintf(w, "processor %s: %d ops, %d ports\n", c.Name, len(c.Ops()), c.NumPorts())
	for _, m := range c.MemLevels() {
		fmt.Fprintf(w, "mem %-8s capacity %-6d port %-3d latency %g\n", m.Name, m.Capacity, c.PortID(m.Port), m.LoadLatency)
	}
	for _, op := range c.Ops() {
		result := "-"
		if op.HasResult() {
			result = op.Result.String()
		}
		ports := make([]string, len(op.Ports))
		for i, p := range op.Ports {
			ports[i] = fmt.Sprint(c.PortID(p))
		}
		line := fmt.Sprintf("%-28s %-6s cost %-4g ports %-10s %s", op.Name, result, op.ExecCost, strings.Join(ports, ","), op.Expr)
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

func newGenCmd(opts *options, out, errOut io.Writer) *cobra.Command {
	var (
		scheduler string
		sets      []string
		cacheFile string
		dialect   string
	)
	cmd := &cobra.Command{
		Use:   "gen <demo>...",
		Short: "Generate kernel source for built-in kernels",
		Long:  "Generate kernel source for built-in kernels (" + strings.Join(demo.Names(), ", ") + ").",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(errOut)
			if err != nil {
				return fail(errOut, err)
			}
			if s.Scheduler, err = sched.ByName(scheduler); err != nil {
				return fail(errOut, err)
			}
			d, err := kernel.ParseDialect(dialect)
			if err != nil {
				return fail(errOut, err)
			}
			kopts, err := parseSets(sets)
			if err != nil {
				return fail(errOut, err)
			}
			if cacheFile != "" {
				c, err := kcache.Open(cacheFile)
				if err != nil {
					return fail(errOut, err)
				}
				defer c.Close()
				s.Cache = c
			}

			reqs := make([]kernel.Request, len(args))
			for i, name := range args {
				k, err := demo.ByName(name)
				if err != nil {
					return fail(errOut, err)
				}
				dk := *k
				dk.Dialect = d
				reqs[i] = kernel.Request{Kernel: &dk, Options: kopts}
			}
			gens, err := s.GenerateAll(cmd.Context(), reqs)
			if err != nil {
				return fail(errOut, err)
			}
			for i, gen := range gens {
				src, err := s.Bundle(gen.Name)
				if err != nil {
					return fail(errOut, err)
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprint(out, src)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scheduler, "scheduler", "list", "Scheduler ("+strings.Join(sched.Names(), ", ")+")")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a specialization constant (NAME=VALUE)")
	cmd.Flags().StringVar(&cacheFile, "cache", "", "SQLite file caching generated kernels")
	cmd.Flags().StringVar(&dialect, "dialect", "c", "Source dialect (c, opencl, cuda)")
	return cmd
}

// parseSets turns NAME=VALUE flags into generation options
func parseSets(sets []string) (kernel.Options, error) {
	kopts := kernel.Options{}
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--set %q: want NAME=VALUE", s)
		}
		kopts[name] = value
	}
	return kopts, nil
}

func newGraphCmd(opts *options, out, errOut io.Writer) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "graph <demo>",
		Short: "Dump the linearized graph of a built-in kernel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.session(errOut)
			if err != nil {
				return fail(errOut, err)
			}
			k, err := demo.ByName(args[0])
			if err != nil {
				return fail(errOut, err)
			}
			kopts, err := parseSets(sets)
			if err != nil {
				return fail(errOut, err)
			}
			prog, gen, err := s.Linearize(cmd.Context(), k, kopts)
			if err != nil {
				return fail(errOut, err)
			}
			fmt.Fprintf(out, "%s: %d nodes\n", gen.Name, prog.Len())
			render.Dump(out, prog)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Set a specialization constant (NAME=VALUE)")
	return cmd
}

func newCacheCmd(opts *options, out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "cache <db>",
		Short: "List the kernels cached for the processor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := opts.loadCatalog()
			if err != nil {
				return fail(errOut, err)
			}
			c, err := kcache.Open(args[0])
			if err != nil {
				return fail(errOut, err)
			}
			defer c.Close()
			names, err := c.Names(cmd.Context(), cat.Name)
			if err != nil {
				return fail(errOut, err)
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
