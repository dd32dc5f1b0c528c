package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type msgpackRenderer struct{}

// NewMsgpack returns a MessagePack renderer. Documents are written as maps
// with keys in field order; ObjectIds, decimals, UUIDs and regexes are
// written as strings.
func NewMsgpack() Renderer {
	return &msgpackRenderer{}
}

func (r *msgpackRenderer) ContentType() string {
	return "application/msgpack"
}

func (r *msgpackRenderer) Render(doc bson.D) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := encodeMsgpack(enc, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeMsgpack(enc *msgpack.Encoder, v any) error {
	switch x := v.(type) {
	case nil:
		return enc.EncodeNil()
	case bool:
		return enc.EncodeBool(x)
	case int64:
		return enc.EncodeInt(x)
	case float64:
		return enc.EncodeFloat64(x)
	case string:
		return enc.EncodeString(x)
	case []byte:
		return enc.EncodeBytes(x)
	case primitive.Binary:
		if err := enc.EncodeMapLen(2); err != nil {
			return err
		}
		if err := enc.EncodeString("subtype"); err != nil {
			return err
		}
		if err := enc.EncodeUint(uint64(x.Subtype)); err != nil {
			return err
		}
		if err := enc.EncodeString("data"); err != nil {
			return err
		}
		return enc.EncodeBytes(x.Data)
	case bson.A:
		if err := enc.EncodeArrayLen(len(x)); err != nil {
			return err
		}
		for _, e := range x {
			if err := encodeMsgpack(enc, e); err != nil {
				return err
			}
		}
		return nil
	case bson.D:
		if err := enc.EncodeMapLen(len(x)); err != nil {
			return err
		}
		for _, e := range x {
			if err := enc.EncodeString(e.Key); err != nil {
				return err
			}
			if err := encodeMsgpack(enc, e.Value); err != nil {
				return err
			}
		}
		return nil
	case primitive.ObjectID:
		return enc.EncodeString(x.Hex())
	case time.Time:
		return enc.EncodeTime(x)
	case primitive.Decimal128:
		return enc.EncodeString(x.String())
	case uuid.UUID:
		return enc.EncodeString(x.String())
	case primitive.Regex:
		return enc.EncodeString("/" + x.Pattern + "/" + x.Options)
	}
	return fmt.Errorf("msgpack: cannot render %T", v)
}
