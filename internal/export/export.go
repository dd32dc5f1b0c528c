// Package export renders materialized documents in human-readable and
// interchange formats for the ferry CLI.
package export

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

// Renderer converts a materialized document into another format. Field
// order is preserved by every renderer.
type Renderer interface {
	// ContentType returns the MIME type of the rendered output.
	ContentType() string

	// Render encodes doc.
	Render(doc bson.D) ([]byte, error)
}

// Format names a Renderer.
type Format string

const (
	FormatExtJSON Format = "extjson"
	FormatYAML    Format = "yaml"
	FormatMsgpack Format = "msgpack"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatExtJSON, FormatYAML, FormatMsgpack}
}

// New returns the Renderer for f.
func New(f Format) (Renderer, error) {
	switch Format(strings.ToLower(string(f))) {
	case FormatExtJSON:
		return NewExtJSON(false), nil
	case FormatYAML:
		return NewYAML(), nil
	case FormatMsgpack:
		return NewMsgpack(), nil
	}
	return nil, fmt.Errorf("unknown format %q (want one of %v)", string(f), Formats())
}
