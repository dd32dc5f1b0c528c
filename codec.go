package ferry

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// ContentType implements Codec.
func (e *Engine) ContentType() string {
	return "application/bson"
}

// Marshal implements Codec using a background context.
func (e *Engine) Marshal(v any) ([]byte, error) {
	return e.Write(context.Background(), v)
}

// Unmarshal implements Codec. v must be a *bson.D, *bson.M or *any.
// Only the top level of a *bson.M is unordered; nested documents stay
// bson.D.
func (e *Engine) Unmarshal(data []byte, v any) error {
	doc, err := e.Read(context.Background(), data)
	if err != nil {
		return err
	}

	switch dst := v.(type) {
	case *bson.D:
		*dst = doc
	case *bson.M:
		m := make(bson.M, len(doc))
		for _, el := range doc {
			m[el.Key] = el.Value
		}
		*dst = m
	case *any:
		*dst = doc
	default:
		return &TargetError{Type: fmt.Sprintf("%T", v)}
	}
	return nil
}
