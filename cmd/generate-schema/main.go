// generate-schema writes the JSON schema of the onedrivefs configuration file,
// for editor completion and validation of config.yaml.
//
// Usage:
//
//	generate-schema [output.json]
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/onedrivefs/pkg/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	outputFile := "config.schema.json"
	if len(args) > 0 {
		outputFile = args[0]
	}

	schemaJSON, err := generate()
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputFile, schemaJSON, 0644); err != nil {
		return fmt.Errorf("writing schema file: %w", err)
	}

	fmt.Printf("JSON schema written to %s\n", outputFile)
	return nil
}

// generate reflects the schema from config.Config.
func generate() ([]byte, error) {
	reflector := jsonschema.Reflector{
		// Keys follow the mapstructure names used by the config loader
		FieldNameTag:              "mapstructure",
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "onedrivefs Configuration"
	schema.Description = "Configuration schema for the onedrivefs filesystem and the odfs CLI"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}
	return schemaJSON, nil
}
