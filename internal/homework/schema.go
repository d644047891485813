package homework

import (
	"embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	responseSchema = mustSchema("schemas/response.json")
	recordSchema   = mustSchema("schemas/record.json")
)

const rootField = "(root)"

func mustSchema(name string) *gojsonschema.Schema {
	b, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("homework: read schema %s: %v", name, err))
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
	if err != nil {
		panic(fmt.Sprintf("homework: compile schema %s: %v", name, err))
	}
	return s
}

// checkShape validates doc against schema and folds the violations into a
// single taxonomy error. A wrong root type wins over missing fields, and
// missing fields win over wrongly typed ones.
func checkShape(schema *gojsonschema.Schema, doc []byte) error {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &ShapeError{Field: rootField, Reason: "not valid JSON"}
	}
	if res.Valid() {
		return nil
	}

	var missing, wrongType error
	for _, re := range res.Errors() {
		field := re.Field()
		if field == "" {
			field = rootField
		}
		switch re.Type() {
		case "invalid_type":
			if field == rootField {
				return &ShapeError{Field: rootField, Reason: re.Description()}
			}
			if wrongType == nil {
				wrongType = &ShapeError{Field: field, Reason: re.Description()}
			}
		case "required":
			if missing == nil {
				prop, _ := re.Details()["property"].(string)
				if prop == "" {
					prop = field
				}
				missing = &FieldError{Field: prop}
			}
		default:
			if wrongType == nil {
				wrongType = &ShapeError{Field: field, Reason: re.Description()}
			}
		}
	}
	if missing != nil {
		return missing
	}
	return wrongType
}
