// Package openapi embeds the published HTTP contract and validates request bodies against it.
package openapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

//go:embed openapi.yaml
var specYAML []byte

const ClassifyTextRequestSchema = "ClassifyTextRequest"

type Contract struct {
	doc  *openapi3.T
	json []byte
}

// Load parses and validates the embedded document.
func Load(ctx context.Context) (*Contract, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	return &Contract{doc: doc, json: raw}, nil
}

func (c *Contract) JSON() []byte {
	return c.json
}

func (c *Contract) Version() string {
	return c.doc.Info.Version
}

// ValidateBody checks a JSON payload against a named component schema.
func (c *Contract) ValidateBody(schemaName string, body []byte) error {
	ref, ok := c.doc.Components.Schemas[schemaName]
	if !ok || ref.Value == nil {
		return fmt.Errorf("openapi schema %q is not defined", schemaName)
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return domain.WrapError(domain.ErrValidation, "decode request body", err)
	}
	if err := ref.Value.VisitJSON(value); err != nil {
		return domain.WrapError(domain.ErrValidation, "validate request body", err)
	}
	return nil
}
