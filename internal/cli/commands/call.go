package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/dynres/internal/cli/ui"
	"github.com/conduit-lang/dynres/pkg/metadata"
	"github.com/conduit-lang/dynres/pkg/resources"
)

func newCallCommand(a *app) *cobra.Command {
	var (
		collection  bool
		sets        []string
		callArgs    []string
		output      string
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "call <service> <type> <method>",
		Short: "Build an instance and call one of its methods",
		Long: `Build a resource or collection, set its fields, and call a method.

Values are parsed as YAML scalars, so numbers, booleans and [lists] keep
their types:

  dynres call sqs Queue get_attributes --set url=http://localhost:4566/000000000000/orders
  dynres call sqs MessageCollection receive --collection --set queue_url=... --arg max_number_of_messages=5`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "yaml" {
				return fmt.Errorf("--output must be json or yaml, got: %s", output)
			}
			data, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			params, err := parseAssignments(callArgs)
			if err != nil {
				return err
			}

			env, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			service, typeName, method := args[0], args[1], args[2]

			kind := metadata.KindResource
			if collection {
				kind = metadata.KindCollection
			}
			t, err := env.session.TypeFor(ctx, service, typeName, kind)
			if errors.Is(err, resources.ErrUnknownType) {
				if desc, derr := env.store.Get(ctx, service); derr == nil {
					fmt.Fprint(cmd.ErrOrStderr(), ui.TypeNotFound(service, string(kind), typeName, desc.TypeNames(kind), a.noColor))
				}
				return err
			}
			if err != nil {
				return err
			}

			inv, err := env.session.Invoker(ctx, service)
			if err != nil {
				return err
			}

			var (
				result   any
				instance resources.Instance
			)
			if m, ok := t.Method(method); ok && m.Kind() == resources.MethodClass {
				result, err = t.Call(ctx, inv, method, params)
			} else {
				instance = t.New(inv, data)
				result, err = instance.Call(ctx, method, params)
			}
			if errors.Is(err, resources.ErrUnknownMethod) {
				fmt.Fprint(cmd.ErrOrStderr(), ui.MethodNotFound(t.Name(), method, t.MethodNames(), a.noColor))
				return err
			}
			if err != nil {
				return err
			}

			doc := map[string]any{"result": render(result)}
			if instance != nil {
				doc["state"] = snapshot(instance)
			}

			out := cmd.OutOrStdout()
			if err := write(out, doc, output); err != nil {
				return err
			}
			if showMetrics {
				return printMetrics(out, env.metricsRegistry, a.noColor)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&collection, "collection", false, "the type is a collection")
	flags.StringArrayVar(&sets, "set", nil, "set a field before calling (name=value, repeatable)")
	flags.StringArrayVar(&callArgs, "arg", nil, "pass a call argument (name=value, repeatable)")
	flags.StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	flags.BoolVar(&showMetrics, "metrics", false, "print invoker metrics after the call")
	return cmd
}

// parseAssignments reads name=value pairs, decoding each value as YAML
func parseAssignments(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		out[name] = value
	}
	return out, nil
}

func snapshot(i resources.Instance) map[string]any {
	s := map[string]any{
		"type": i.Type().Name(),
		"data": i.Data(),
	}
	if extra := i.Extra(); len(extra) > 0 {
		s["extra"] = extra
	}
	return s
}

func render(v any) any {
	switch x := v.(type) {
	case resources.Instance:
		return snapshot(x)
	case []*resources.Resource:
		items := make([]any, 0, len(x))
		for _, r := range x {
			items = append(items, snapshot(r))
		}
		return items
	default:
		return v
	}
}

func write(w io.Writer, doc any, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func printMetrics(w io.Writer, reg *prometheus.Registry, noColor bool) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}

	fmt.Fprintln(w)
	table := ui.NewTable(w, noColor, "METRIC", "LABELS", "VALUE")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}

			var value string
			switch {
			case m.GetCounter() != nil:
				value = fmt.Sprint(m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				value = fmt.Sprintf("count=%d sum=%.3fs", h.GetSampleCount(), h.GetSampleSum())
			}
			table.AddRow(mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	table.Render()
	return nil
}
