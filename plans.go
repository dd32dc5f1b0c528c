package ferry

import (
	"go/token"
	"reflect"
	"strings"
	"sync"

	"github.com/zoobzio/sentinel"
)

// tagName is the struct tag consulted for document keys.
const tagName = "bson"

func init() {
	sentinel.Tag(tagName)
}

// structPlan lists the encodable fields of a struct type in declaration order.
type structPlan struct {
	typeName string
	fields   []fieldPlan
}

// fieldPlan describes how to read a single struct field.
type fieldPlan struct {
	index     []int  // reflect.Value.FieldByIndex access path
	name      string // Go field name, for diagnostics
	key       string // document key
	omitEmpty bool
}

var (
	plans   = make(map[reflect.Type]*structPlan)
	plansMu sync.RWMutex
)

// Register scans T ahead of first use so extraction never builds its plan
// while a conversion is in progress.
func Register[T any]() {
	rt := reflect.TypeFor[T]()
	if rt.Kind() != reflect.Struct {
		if rt.Kind() == reflect.Pointer && rt.Elem().Kind() == reflect.Struct {
			planFor(rt.Elem())
		}
		return
	}

	meta := sentinel.Scan[T]()

	plansMu.Lock()
	defer plansMu.Unlock()
	plans[rt] = planFromMetadata(meta)
}

// ResetPlans clears the plan cache.
// This is primarily useful for test isolation.
func ResetPlans() {
	plansMu.Lock()
	defer plansMu.Unlock()
	plans = make(map[reflect.Type]*structPlan)
}

// planFor returns the cached plan for struct type rt, building it on first use.
func planFor(rt reflect.Type) *structPlan {
	// Fast path: read-lock cache check
	plansMu.RLock()
	if cached, ok := plans[rt]; ok {
		plansMu.RUnlock()
		return cached
	}
	plansMu.RUnlock()

	// Slow path: build and cache with write-lock
	plansMu.Lock()
	defer plansMu.Unlock()

	// Double-check pattern
	if cached, ok := plans[rt]; ok {
		return cached
	}

	plan := planFromMetadata(scanType(rt))
	plans[rt] = plan
	return plan
}

// scanType returns sentinel's metadata for rt when sentinel has already
// scanned it, and otherwise builds the equivalent from reflection.
func scanType(rt reflect.Type) sentinel.Metadata {
	if meta, ok := sentinel.Lookup(rt.String()); ok {
		return meta
	}

	meta := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
		}
		if tag, ok := sf.Tag.Lookup(tagName); ok {
			fm.Tags = map[string]string{tagName: tag}
		}
		meta.Fields = append(meta.Fields, fm)
	}
	return meta
}

func planFromMetadata(meta sentinel.Metadata) *structPlan {
	plan := &structPlan{
		typeName: meta.TypeName,
		fields:   make([]fieldPlan, 0, len(meta.Fields)),
	}
	for _, field := range meta.Fields {
		if field.Name == "" || !token.IsExported(field.Name) {
			continue
		}
		key, omitEmpty, skip := parseTag(field.Name, field.Tags[tagName])
		if skip {
			continue
		}
		plan.fields = append(plan.fields, fieldPlan{
			index:     append([]int(nil), field.Index...),
			name:      field.Name,
			key:       key,
			omitEmpty: omitEmpty,
		})
	}
	return plan
}

// parseTag interprets a bson struct tag. Untagged fields use the lowercased
// field name, matching the driver's default.
func parseTag(fieldName, tag string) (key string, omitEmpty, skip bool) {
	if tag == "-" {
		return "", false, true
	}
	name, opts, _ := strings.Cut(tag, ",")
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	if name == "" {
		name = strings.ToLower(fieldName)
	}
	return name, omitEmpty, false
}
