package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// maxBodyBytes caps request bodies read by bind.
const maxBodyBytes = 1 << 20

const (
	schemaProblemCreate = "problem-create"
	schemaProblemPatch  = "problem-patch"
	schemaReorder       = "problem-reorder"
	schemaChat          = "chat"
)

// Request shapes. Missing string fields decode as "", unknown fields are
// ignored; only wrong types are rejected.
var requestSchemas = map[string]string{
	schemaProblemCreate: `{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"description": {"type": "string"},
			"solution_code": {"type": "string"}
		}
	}`,
	schemaProblemPatch: `{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"description": {"type": "string"},
			"solution_code": {"type": "string"},
			"order": {"type": "integer"}
		}
	}`,
	schemaReorder: `{
		"type": "object",
		"required": ["problems"],
		"properties": {
			"problems": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "order"],
					"properties": {
						"id": {"type": "string", "minLength": 1},
						"order": {"type": "integer"}
					}
				}
			}
		}
	}`,
	schemaChat: `{
		"type": "object",
		"properties": {
			"message": {"type": "string"}
		}
	}`,
}

// validationError is a request body that does not match its schema.
type validationError struct {
	err error
}

func (e *validationError) Error() string {
	return fmt.Sprintf("invalid request body: %v", e.err)
}

func (e *validationError) Unwrap() error { return e.err }

type validator struct {
	schemas map[string]*jsonschema.Schema
}

func newValidator() (*validator, error) {
	c := jsonschema.NewCompiler()
	v := &validator{schemas: map[string]*jsonschema.Schema{}}

	for name, src := range requestSchemas {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("parse schema %q: %w", name, err)
		}
		url := fmt.Sprintf("schema://%s.json", name)
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema %q: %w", name, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
		v.schemas[name] = compiled
	}
	return v, nil
}

// validate checks raw JSON against the named schema.
func (v *validator) validate(name string, raw []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &validationError{err: fmt.Errorf("malformed JSON: %w", err)}
	}
	if err := v.schemas[name].Validate(inst); err != nil {
		return &validationError{err: err}
	}
	return nil
}

// bind reads the request body, validates it against the named schema and
// decodes it into dst. An empty body is treated as an empty object.
func (s *Server) bind(c echo.Context, schema string, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	if err := s.validator.validate(schema, raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &validationError{err: err}
	}
	return nil
}
