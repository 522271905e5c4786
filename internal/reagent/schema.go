package reagent

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

// schemaSrc constrains the on-disk price table. Extra fields are tolerated
// so files written by other tools still load.
const schemaSrc = `
#Price: {
	price_per_unit: number & >=0
	unit?:          "uL" | "µL" | "μL" | "ul" | "mL" | "ml"
	...
}

#Table: [string]: #Price
`

// SchemaError reports a price table that does not satisfy the schema.
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("reagent table: %s: %s", e.Path, e.Message)
	}
	return "reagent table: " + e.Message
}

// validateSchema checks raw JSON against #Table.
// JSON is valid CUE, so the document is compiled directly and unified.
func validateSchema(raw []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc).LookupPath(cue.ParsePath("#Table"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile reagent schema: %w", err)
	}

	doc := ctx.CompileBytes(raw, cue.Filename("reagents.json"))
	if err := doc.Err(); err != nil {
		return &SchemaError{Message: fmt.Sprintf("not valid JSON: %v", err)}
	}

	if err := schema.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return toSchemaError(err)
	}
	return nil
}

func toSchemaError(err error) *SchemaError {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &SchemaError{Message: err.Error()}
	}
	first := errs[0]
	path := strings.Join(first.Path(), ".")
	if path == "" {
		return &SchemaError{Message: first.Error()}
	}
	format, args := first.Msg()
	return &SchemaError{Path: path, Message: fmt.Sprintf(format, args...)}
}
