// Package validation validates artifact manifests against their type's
// JSON schema (and, for collection children, the parent's
// collection_schema), and validates request DTOs via struct tags.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/vaultspace/artifactd/internal/errors"
)

// Errors aggregates zero or more validation failures collected while
// validating one manifest or request.
type Errors struct {
	Failures []string
}

func (e *Errors) Add(format string, args ...interface{}) {
	e.Failures = append(e.Failures, fmt.Sprintf(format, args...))
}

func (e *Errors) HasErrors() bool {
	return len(e.Failures) > 0
}

func (e *Errors) Error() string {
	return strings.Join(e.Failures, "; ")
}

// AsAppError converts a non-empty Errors into a validation AppError.
func (e *Errors) AsAppError() error {
	if !e.HasErrors() {
		return nil
	}
	return apperrors.NewValidationError(e.Error())
}

// genericSchema is permissive: manifests just need to be a JSON object.
func genericSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema()
}

// collectionSchema requires name and description, matching the publish
// precondition in §4.4 (`publish` requires a committed manifest
// with name and description) and giving `create`/`edit` an early check.
func collectionSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	s.Properties = openapi3.Schemas{
		"name":        openapi3.NewSchemaRef("", openapi3.NewStringSchema()),
		"description": openapi3.NewSchemaRef("", openapi3.NewStringSchema()),
	}
	s.Required = []string{"name", "description"}
	return s
}

// SchemaFor returns the built-in JSON schema for a manifest's declared
// artifact type ("generic" or "collection"); unknown types get the
// permissive generic schema: only these two have dedicated schemas,
// everything else ("vector-collection" and free-form subtypes) is
// generic-shaped.
func SchemaFor(artifactType string) *openapi3.Schema {
	switch artifactType {
	case "collection":
		return collectionSchema()
	default:
		return genericSchema()
	}
}

// ValidateManifest validates a manifest document against the schema for
// its artifact type.
func ValidateManifest(artifactType string, manifest map[string]interface{}) error {
	return ValidateAgainstSchema(SchemaFor(artifactType), manifest)
}

// ValidateAgainstSchema validates an arbitrary JSON-shaped value (as
// produced by encoding/json.Unmarshal into map[string]interface{} /
// []interface{} / primitives) against an OpenAPI/JSON Schema object.
func ValidateAgainstSchema(schema *openapi3.Schema, data interface{}) error {
	if schema == nil {
		return nil
	}
	if err := schema.VisitJSON(data); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "manifest failed schema validation")
	}
	return nil
}

// ValidateCollectionSchema validates a child manifest against its parent
// collection's `config.collection_schema`, used at commit time per
// §4.4.
func ValidateCollectionSchema(collectionSchemaDoc map[string]interface{}, manifest map[string]interface{}) error {
	if len(collectionSchemaDoc) == 0 {
		return nil
	}
	raw, err := json.Marshal(collectionSchemaDoc)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid collection_schema")
	}
	schema := &openapi3.Schema{}
	if err := json.Unmarshal(raw, schema); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeValidation, "invalid collection_schema document")
	}
	return ValidateAgainstSchema(schema, manifest)
}

var structValidator = validator.New()

// ValidateStruct runs go-playground/validator struct-tag validation over a
// request DTO and aggregates any failures into an Errors value.
func ValidateStruct(ctx context.Context, s interface{}) *Errors {
	errs := &Errors{}
	if err := structValidator.StructCtx(ctx, s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errs.Add("%s failed %q validation", fe.Namespace(), fe.Tag())
			}
		} else {
			errs.Add(err.Error())
		}
	}
	return errs
}
