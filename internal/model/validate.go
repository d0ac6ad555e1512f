package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultSchemaPath is where the cvData schema lives relative to the
// server working directory.
const DefaultSchemaPath = "templates/cv.schema.json"

// SchemaAvailable reports whether the schema file exists; validation is
// skipped (with a warning at the call site) when it doesn't.
func SchemaAvailable(schemaPath string) bool {
	_, err := os.Stat(schemaPath)
	return err == nil
}

// ValidateMap validates a generic cvData map against the JSON schema file.
func ValidateMap(schemaPath string, m map[string]interface{}) error {
	// Use absolute canonical file:// path for the schema so loaders on all
	// platforms (including Windows) resolve file references correctly.
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		return err
	}
	schemaLoader := gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(abs))
	docLoader := gojsonschema.NewGoLoader(m)

	res, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return err
	}
	if res.Valid() {
		return nil
	}
	msgs := ""
	for _, e := range res.Errors() {
		msgs += fmt.Sprintf("%s; ", e.String())
	}
	return fmt.Errorf("schema validation failed: %s", msgs)
}
