package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/compozy/guidebook/pkg/config"
)

// ConfigCmd returns the config command
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	var (
		format      string
		showSources bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration values and their sources",
		Long: `Display the effective configuration. With --sources, each value is listed
with the source that provided it: cli, yaml, env or default.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager := config.ManagerFromContext(cmd.Context())
			cfg := manager.Get()
			if cfg == nil {
				cfg = config.Default()
			}
			values := flattenConfig(cfg)
			sources := make(map[string]config.SourceType, len(values))
			for key := range values {
				sources[key] = manager.Service.GetSource(key)
			}
			return formatConfigOutput(cmd.OutOrStdout(), values, sources, format, showSources)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (json, yaml, table)")
	cmd.Flags().BoolVarP(&showSources, "sources", "s", false, "Show configuration sources")
	return cmd
}

func formatConfigOutput(
	w io.Writer,
	values map[string]any,
	sources map[string]config.SourceType,
	format string,
	showSources bool,
) error {
	output := map[string]any{"config": values}
	if showSources {
		output["sources"] = sources
	}
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(output)
	case "table":
		return outputTable(w, values, sources, showSources)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func outputTable(w io.Writer, values map[string]any, sources map[string]config.SourceType, showSources bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if showSources {
		fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
	} else {
		fmt.Fprintln(tw, "KEY\tVALUE")
	}
	for _, key := range keys {
		if showSources {
			fmt.Fprintf(tw, "%s\t%v\t%s\n", key, values[key], sources[key])
			continue
		}
		fmt.Fprintf(tw, "%s\t%v\n", key, values[key])
	}
	return tw.Flush()
}

// flattenConfig maps every leaf field onto its dotted koanf path.
func flattenConfig(cfg *config.Config) map[string]any {
	out := make(map[string]any)
	flattenStruct("", reflect.ValueOf(cfg).Elem(), out)
	return out
}

func flattenStruct(prefix string, val reflect.Value, out map[string]any) {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("koanf")
		if !field.IsExported() || tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		fieldVal := val.Field(i)
		if fieldVal.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Duration(0)) {
			flattenStruct(key, fieldVal, out)
			continue
		}
		if d, ok := fieldVal.Interface().(time.Duration); ok {
			out[key] = d.String()
			continue
		}
		out[key] = fieldVal.Interface()
	}
}
