package entitystore

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator checks documents against a JSON Schema before they are written.
type Validator struct {
	name   string
	schema *jsonschema.Schema
}

func CompileSchema(name, source string) (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(source))
	if err != nil {
		return nil, err
	}
	url := name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	return &Validator{name: name, schema: schema}, nil
}

func MustCompileSchema(name, source string) *Validator {
	v, err := CompileSchema(name, source)
	if err != nil {
		panic(err)
	}
	return v
}

func (v *Validator) Validate(doc any) error {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if err := v.schema.Validate(inst); err != nil {
		return &ValidationError{Collection: v.name, Reason: validationReason(err)}
	}
	return nil
}

func validationReason(err error) string {
	msg := strings.TrimSpace(err.Error())
	// The first line repeats the schema location; the causes follow it.
	if idx := strings.Index(msg, "\n"); idx >= 0 && idx+1 < len(msg) {
		msg = strings.TrimSpace(msg[idx+1:])
	}
	return strings.Join(strings.Fields(msg), " ")
}
