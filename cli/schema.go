package cli

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/compozy/guidebook/engine/guidebook"
)

const schemaID = "https://github.com/compozy/guidebook/schemas/guidebook.json"

// SchemaCmd prints the JSON schema of guidebook documents, for editor
// completion and validation.
func SchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of guidebook files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := GuidebookSchema()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(pretty.Pretty(data))
			return err
		},
	}
}

// GuidebookSchema reflects the guidebook document format.
func GuidebookSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            false,
	}
	schema := reflector.Reflect(&guidebook.Document{})
	schema.ID = schemaID
	schema.Title = "Guidebook"
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return data, nil
}
