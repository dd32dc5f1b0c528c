package ferry

import (
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/zoobzio/ferry/ir"
)

// Materialize builds host values from a decoded document. The IR was
// validated when it was decoded, so materialization cannot fail.
//
// Must run while the host lock is held.
func Materialize(doc ir.Document) bson.D {
	out := make(bson.D, len(doc))
	for i, f := range doc {
		out[i] = bson.E{Key: f.Key, Value: materialize(f.Value)}
	}
	return out
}

func materialize(v ir.Value) any {
	switch x := v.(type) {
	case ir.Null:
		return nil
	case ir.Bool:
		return bool(x)
	case ir.Int:
		return int64(x)
	case ir.Double:
		return float64(x)
	case ir.String:
		return string(x)
	case ir.Binary:
		if x.Subtype == 0x00 {
			return x.Data
		}
		return primitive.Binary{Subtype: x.Subtype, Data: x.Data}
	case ir.Array:
		arr := make(bson.A, len(x))
		for i, e := range x {
			arr[i] = materialize(e)
		}
		return arr
	case ir.Document:
		return Materialize(x)
	case ir.ObjectID:
		return primitive.ObjectID(x)
	case ir.DateTime:
		return time.UnixMicro(int64(x)).UTC()
	case ir.Decimal:
		// Decoded decimals hold Decimal128.String() output, which always
		// parses. Only a hand-built ir.Decimal can fail here; its text is
		// kept rather than replaced with a different number.
		d, err := primitive.ParseDecimal128(string(x))
		if err != nil {
			Logger().Warn("decimal kept as text", zap.String("value", string(x)), zap.Error(err))
			return string(x)
		}
		return d
	case ir.UUID:
		return uuid.UUID(x)
	case ir.Regex:
		return primitive.Regex{Pattern: x.Pattern, Options: x.Options}
	}
	return nil
}
