package export

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

type extJSONRenderer struct {
	canonical bool
}

// NewExtJSON returns a MongoDB Extended JSON renderer. Canonical mode keeps
// every type unambiguous; relaxed mode prints numbers and dates natively.
func NewExtJSON(canonical bool) Renderer {
	return &extJSONRenderer{canonical: canonical}
}

func (r *extJSONRenderer) ContentType() string {
	return "application/json"
}

func (r *extJSONRenderer) Render(doc bson.D) ([]byte, error) {
	return bson.MarshalExtJSON(doc, r.canonical, false)
}

// ParseExtJSON reads a single Extended JSON document, canonical or relaxed,
// preserving field order.
func ParseExtJSON(data []byte) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("parse extended json: %w", err)
	}
	return doc, nil
}
