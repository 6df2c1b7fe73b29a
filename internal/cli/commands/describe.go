package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/dynres/internal/cli/ui"
	"github.com/conduit-lang/dynres/pkg/metadata"
	"github.com/conduit-lang/dynres/pkg/resources"
)

func newDescribeCommand(a *app) *cobra.Command {
	var collection bool

	cmd := &cobra.Command{
		Use:   "describe <service> [type]",
		Short: "Show the types of a service or the shape of one type",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			desc, err := env.store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				describeService(out, desc, a.noColor)
				return nil
			}

			kind := metadata.KindResource
			if collection {
				kind = metadata.KindCollection
			}
			t, err := env.session.TypeFor(cmd.Context(), args[0], args[1], kind)
			if errors.Is(err, resources.ErrUnknownType) {
				fmt.Fprint(cmd.ErrOrStderr(), ui.TypeNotFound(args[0], string(kind), args[1], desc.TypeNames(kind), a.noColor))
				return err
			}
			if err != nil {
				return err
			}

			describeType(out, t, a.noColor)
			return nil
		},
	}

	cmd.Flags().BoolVar(&collection, "collection", false, "describe a collection type")
	return cmd
}

func describeService(w io.Writer, desc *metadata.ServiceDescription, noColor bool) {
	ui.Header(w, desc.Service, noColor)

	kv := ui.NewKeyValueTable(w, noColor)
	kv.AddRow("api version", desc.APIVersion)
	kv.AddRow("origin", desc.Origin)
	kv.Render()
	fmt.Fprintln(w)

	table := ui.NewTable(w, noColor, "TYPE", "KIND", "FIELDS", "OPERATIONS", "RELATIONS")
	for _, kind := range []metadata.Kind{metadata.KindResource, metadata.KindCollection} {
		for _, name := range desc.TypeNames(kind) {
			def := desc.Type(name, kind)
			table.AddRow(
				name,
				string(kind),
				fmt.Sprint(len(def.AllFields())),
				fmt.Sprint(len(def.Operations)),
				fmt.Sprint(len(def.Relations)),
			)
		}
	}
	table.Render()
}

func describeType(w io.Writer, t *resources.Type, noColor bool) {
	ui.Header(w, t.Name(), noColor)

	kv := ui.NewKeyValueTable(w, noColor)
	kv.AddRow("service", t.Service())
	kv.AddRow("kind", string(t.Kind()))
	kv.AddRow("api version", t.APIVersion())
	if t.ResourceType() != "" {
		kv.AddRow("builds", t.ResourceType())
	}
	kv.Render()

	if fields := t.Fields(); len(fields) > 0 {
		fmt.Fprintln(w)
		table := ui.NewTable(w, noColor, "FIELD", "WIRE", "TYPE", "FLAGS")
		for _, f := range fields {
			var flags []string
			if f.Identifier() {
				flags = append(flags, "identifier")
			}
			if f.Required() {
				flags = append(flags, "required")
			}
			if f.Inherited() {
				flags = append(flags, "inherited")
			}
			table.AddRow(f.Name(), f.APIName(), f.ValueType(), strings.Join(flags, ","))
		}
		table.Render()
	}

	if methods := t.Methods(); len(methods) > 0 {
		fmt.Fprintln(w)
		table := ui.NewTable(w, noColor, "METHOD", "OPERATION", "KIND", "DOCS")
		for _, m := range methods {
			table.AddRow(m.Name(), m.APIName(), string(m.Kind()), m.Docs())
		}
		table.Render()
	}

	if relations := t.Relations(); len(relations) > 0 {
		fmt.Fprintln(w)
		table := ui.NewTable(w, noColor, "RELATION", "TARGET", "KIND", "CARDINALITY", "SERVICE")
		for _, r := range relations {
			table.AddRow(r.Name(), r.Class(), string(r.ClassType()), r.Cardinality(), r.Service())
		}
		table.Render()
	}
}
