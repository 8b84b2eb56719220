package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellify/stellify/internal/suggest"
	"github.com/stellify/stellify/runtime/config"
	"github.com/stellify/stellify/runtime/export"
	"github.com/stellify/stellify/runtime/lowering"
	"github.com/stellify/stellify/runtime/parser"
	"github.com/stellify/stellify/runtime/sink/file"
	"github.com/stellify/stellify/runtime/sink/mongo"
)

// exportFlags override the project file.
type exportFlags struct {
	root         string
	only         []string
	paths        map[string]string
	exclude      []string
	output       string
	concurrency  int
	mongoURI     string
	mongoDB      string
	mongoPrefix  string
	mongoReplace bool
}

func (f *exportFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.root, "root", "r", ".", "Application root")
	fl.StringSliceVar(&f.only, "only", nil, "Export only these kinds: "+kindList())
	fl.StringToStringVar(&f.paths, "path", nil, "Override a kind's directory, e.g. models=src/Domain")
	fl.StringSliceVar(&f.exclude, "exclude", nil, "Skip units whose path contains this text")
	fl.StringVarP(&f.output, "output", "o", "stellify.json", "Bundle file (.json or .cbor); empty disables")
	fl.IntVarP(&f.concurrency, "concurrency", "j", 0, "Units lowered at once (default: number of CPUs)")
	fl.StringVar(&f.mongoURI, "mongo-uri", "", "Also write records to this MongoDB deployment")
	fl.StringVar(&f.mongoDB, "mongo-db", "stellify", "MongoDB database")
	fl.StringVar(&f.mongoPrefix, "mongo-prefix", "", "MongoDB collection name prefix")
	fl.BoolVar(&f.mongoReplace, "mongo-replace", false, "Drop existing MongoDB records before writing")
}

// apply layers explicitly set flags over cfg.
func (f *exportFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fl := cmd.Flags()
	if fl.Changed("root") {
		cfg.Root = f.root
	}
	if fl.Changed("only") {
		cfg.Only = f.only
	}
	if fl.Changed("path") {
		cfg.Paths = f.paths
	}
	if fl.Changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, f.exclude...)
	}
	if fl.Changed("output") {
		cfg.Output = f.output
	}
	if fl.Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if fl.Changed("mongo-uri") {
		cfg.Mongo.URI = f.mongoURI
	}
	if fl.Changed("mongo-db") {
		cfg.Mongo.Database = f.mongoDB
	}
	if fl.Changed("mongo-prefix") {
		cfg.Mongo.Prefix = f.mongoPrefix
	}
	if fl.Changed("mongo-replace") {
		cfg.Mongo.Replace = f.mongoReplace
	}
	for _, name := range cfg.Only {
		if err := checkKind(name); err != nil {
			return err
		}
	}
	for name := range cfg.Paths {
		if err := checkKind(name); err != nil {
			return err
		}
	}
	return cfg.Validate()
}

func kindList() string {
	names := make([]string, len(export.Kinds))
	for i, k := range export.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func checkKind(name string) error {
	if _, err := export.ParseKind(name); err == nil {
		return nil
	}
	names := strings.Split(kindList(), ", ")
	hint := "Valid kinds: " + kindList()
	if s := suggest.Closest(name, names); s != "" {
		hint = fmt.Sprintf("Did you mean %q?", s)
	}
	return &usageError{Message: fmt.Sprintf("unknown kind %q", name), Hint: hint}
}

// pipeline is everything an export run needs.
type pipeline struct {
	exporter *export.Exporter
	opts     export.Options
	sink     export.Sink
	close    func()
}

func (g *globals) pipeline(ctx context.Context, cmd *cobra.Command, f *exportFlags) (*pipeline, error) {
	cfg, err := g.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := f.apply(cmd, cfg); err != nil {
		return nil, err
	}
	if cfg.Debug && !g.debug {
		g.logger = newLogger(g.stderr, true)
	}
	opts, err := cfg.ExportOptions()
	if err != nil {
		return nil, err
	}

	l := lowering.New(parser.New(parser.WithLogger(g.logger)), lowering.WithLogger(g.logger))
	exp, err := export.NewExporter(l,
		export.WithLogger(g.logger),
		export.WithConcurrency(cfg.Concurrency))
	if err != nil {
		return nil, err
	}

	p := &pipeline{exporter: exp, opts: opts, close: func() {}}
	var sinks []export.Sink
	if cfg.Output != "" {
		s, err := file.New(cfg.Output)
		if err != nil {
			return nil, &usageError{Message: err.Error(), Hint: "Use a .json or .cbor output file"}
		}
		sinks = append(sinks, s)
	}
	if cfg.Mongo.URI != "" {
		client, err := mongo.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		p.close = func() { _ = client.Disconnect(context.Background()) }
		s, err := mongo.New(mongo.Options{
			Client:   client,
			Database: cfg.Mongo.Database,
			Prefix:   cfg.Mongo.Prefix,
			Replace:  cfg.Mongo.Replace,
		})
		if err != nil {
			p.close()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if len(sinks) > 0 {
		p.sink = export.Tee(sinks...)
	}
	return p, nil
}

func newExportCmd(g *globals) *cobra.Command {
	f := &exportFlags{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Lower every controller, model, middleware, service, provider and view",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := g.pipeline(ctx, cmd, f)
			if err != nil {
				return err
			}
			defer p.close()

			rep, err := p.exporter.Run(ctx, p.opts, p.sink)
			if err != nil {
				return err
			}
			printReport(g.stdout, rep, ShouldUseColor(g.noColor))
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newWatchCmd(g *globals) *cobra.Command {
	f := &exportFlags{}
	var debounce = export.DefaultDebounce
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Export, then export again whenever a source changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := g.pipeline(ctx, cmd, f)
			if err != nil {
				return err
			}
			defer p.close()
			g.logger.Info("watching", "root", p.opts.Root)
			return p.exporter.Watch(ctx, p.opts, p.sink, debounce)
		},
	}
	f.bind(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", export.DefaultDebounce, "Quiet period before re-exporting")
	return cmd
}

// printReport writes the per-unit failures and the record counts.
func printReport(w io.Writer, rep *export.Report, useColor bool) {
	for _, f := range rep.Failures {
		_, _ = fmt.Fprintln(w, colorize(f.Error(), colorYellow, useColor))
	}
	st := rep.Stats
	_, _ = fmt.Fprintf(w, "%s %d files, %d methods, %d statements, %d clauses, %d elements\n",
		colorize("Exported", colorGreen, useColor),
		st.Files, st.Routines, st.Statements, st.Clauses, st.Elements)
	if n := len(rep.Failures); n > 0 {
		_, _ = fmt.Fprintf(w, "%d units failed\n", n)
	}
}
