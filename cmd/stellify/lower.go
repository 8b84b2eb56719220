package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stellify/stellify/core/graph"
	"github.com/stellify/stellify/core/recordfmt"
	"github.com/stellify/stellify/runtime/lowering"
	"github.com/stellify/stellify/runtime/parser"
	"github.com/stellify/stellify/runtime/template"
)

func newLowerCmd(g *globals) *cobra.Command {
	var (
		name   string
		format string
		text   bool
	)
	cmd := &cobra.Command{
		Use:   "lower <file>",
		Short: "Lower one PHP file or Blade template and print its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			enc, err := recordfmt.ParseEncoding(format)
			if err != nil {
				return &usageError{Message: err.Error(), Hint: "Use --format json or --format cbor"}
			}

			l := lowering.New(parser.New(parser.WithLogger(g.logger)), lowering.WithLogger(g.logger))
			store := graph.NewStore()
			if strings.HasSuffix(path, ".blade.php") {
				if name == "" {
					name = template.ViewName(filepath.Dir(path), path)
				}
				if _, err := template.Lower(l, store, name, src); err != nil {
					return err
				}
			} else if _, err := l.LowerFile(store, path, src); err != nil {
				var list parser.ErrorList
				if errors.As(err, &list) {
					return &sourceError{Path: path, Source: src, Errs: list}
				}
				return err
			}

			if text {
				printRoutines(g.stdout, store)
				return nil
			}
			return recordfmt.Write(g.stdout, recordfmt.FromStore(store), enc)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Logical view name (templates; default: file name)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output encoding: json or cbor")
	cmd.Flags().BoolVar(&text, "text", false, "Print each routine's statements as token lists")
	return cmd
}

// printRoutines renders every routine body, one statement per line.
func printRoutines(w io.Writer, s *graph.Store) {
	for _, r := range s.Routines() {
		_, _ = fmt.Fprintf(w, "%s %s(%s)\n", r.Kind, r.Name, strings.Join(params(s, r), ", "))
		for _, id := range r.Body {
			st, _ := s.Statement(id)
			_, _ = fmt.Fprintf(w, "  %-11s %s\n", st.Kind, strings.Join(s.Render(id), " "))
		}
	}
	for _, st := range s.Statements() {
		if st.Kind == graph.StatementDirective || st.Kind == graph.StatementOutput {
			_, _ = fmt.Fprintf(w, "%-11s %s\n", st.Kind, strings.Join(s.Render(st.ID), " "))
		}
	}
}

func params(s *graph.Store, r *graph.Routine) []string {
	out := make([]string, 0, len(r.Parameters))
	for _, id := range r.Parameters {
		if c, ok := s.Clause(id); ok {
			out = append(out, c.Type+" $"+c.Text)
		}
	}
	return out
}
