package export

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"
)

// Local tags for types YAML has no core tag for.
const (
	tagObjectID = "!oid"
	tagDecimal  = "!decimal"
	tagUUID     = "!uuid"
	tagRegex    = "!regex"
	tagBinary   = "!binary"
)

type yamlRenderer struct{}

// NewYAML returns a YAML renderer. Documents become mappings in field order.
func NewYAML() Renderer {
	return &yamlRenderer{}
}

func (r *yamlRenderer) ContentType() string {
	return "application/yaml"
}

func (r *yamlRenderer) Render(doc bson.D) ([]byte, error) {
	node, err := yamlNode(doc)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func yamlNode(v any) (*yaml.Node, error) {
	switch x := v.(type) {
	case nil:
		return scalar("!!null", "null"), nil
	case bool:
		return scalar("!!bool", strconv.FormatBool(x)), nil
	case int64:
		return scalar("!!int", strconv.FormatInt(x, 10)), nil
	case float64:
		return scalar("!!float", formatFloat(x)), nil
	case string:
		return scalar("!!str", x), nil
	case []byte:
		return scalar("!!binary", base64.StdEncoding.EncodeToString(x)), nil
	case primitive.Binary:
		return &yaml.Node{Kind: yaml.MappingNode, Tag: tagBinary, Content: []*yaml.Node{
			scalar("!!str", "subtype"), scalar("!!int", strconv.Itoa(int(x.Subtype))),
			scalar("!!str", "data"), scalar("!!binary", base64.StdEncoding.EncodeToString(x.Data)),
		}}, nil
	case bson.A:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range x {
			n, err := yamlNode(e)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	case bson.D:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, e := range x {
			n, err := yamlNode(e.Value)
			if err != nil {
				return nil, err
			}
			m.Content = append(m.Content, scalar("!!str", e.Key), n)
		}
		return m, nil
	case primitive.ObjectID:
		return scalar(tagObjectID, x.Hex()), nil
	case time.Time:
		return scalar("!!timestamp", x.UTC().Format(time.RFC3339Nano)), nil
	case primitive.Decimal128:
		return scalar(tagDecimal, x.String()), nil
	case uuid.UUID:
		return scalar(tagUUID, x.String()), nil
	case primitive.Regex:
		return scalar(tagRegex, "/"+x.Pattern+"/"+x.Options), nil
	}
	return nil, fmt.Errorf("yaml: cannot render %T", v)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		s += ".0"
	}
	return s
}
