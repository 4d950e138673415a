// Package validation validates document-ingestion payloads against a JSON schema.
package validation

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const documentSchemaJSON = `{
	"type": "object",
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"text": {"type": "string"},
		"content": {"type": "string"},
		"title": {"type": "string"},
		"metadata": {"type": "object"}
	},
	"required": ["id"],
	"anyOf": [
		{"required": ["text"]},
		{"required": ["content"]}
	],
	"additionalProperties": true
}`

var documentSchema = gojsonschema.NewStringLoader(documentSchemaJSON)

// Document is a validated knowledge-base document ready for ingestion.
type Document struct {
	ID       string                 `json:"id"`
	Text     string                 `json:"text,omitempty"`
	Content  string                 `json:"content,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// TextContent returns the document body, preferring text over content.
func (d Document) TextContent() string {
	if d.Text != "" {
		return d.Text
	}
	return d.Content
}

// ParseDocuments accepts either a JSON array of documents or an object with a
// "documents" field, validates every entry against the schema and returns the
// decoded documents. The first invalid document fails the whole payload.
func ParseDocuments(raw json.RawMessage) ([]Document, error) {
	var items []json.RawMessage

	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapper struct {
			Documents []json.RawMessage `json:"documents"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil || wrapper.Documents == nil {
			return nil, fmt.Errorf("payload must be a JSON array or an object with a 'documents' field")
		}
		items = wrapper.Documents
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("payload contains no documents")
	}

	docs := make([]Document, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		result, err := gojsonschema.Validate(documentSchema, gojsonschema.NewBytesLoader(item))
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if !result.Valid() {
			return nil, fmt.Errorf("document %d: %s", i, formatSchemaErrors(result))
		}

		var doc Document
		if err := json.Unmarshal(item, &doc); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if seen[doc.ID] {
			return nil, fmt.Errorf("document %d: duplicate id %q", i, doc.ID)
		}
		seen[doc.ID] = true
		docs = append(docs, doc)
	}

	return docs, nil
}

func formatSchemaErrors(result *gojsonschema.Result) string {
	msg := ""
	for i, e := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += e.String()
	}
	return msg
}
