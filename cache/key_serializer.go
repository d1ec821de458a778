package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// KeySerializer builds the cache key of a query from its resource type,
// operation name and parameters. Equal canonical parameters must produce
// equal keys.
type KeySerializer interface {
	SerializeKey(resourceType, operation string, params any) string
}

// canonicalKeySerializer writes parameters as canonical JSON text: object
// keys sorted, array order preserved, pointers and interfaces dereferenced.
type canonicalKeySerializer struct{}

// NewDefaultKeySerializer creates the canonical key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &canonicalKeySerializer{}
}

// SerializeKey returns resourceType::operation, followed by ::params when
// params is not empty. nil, empty maps and empty slices count as empty.
func (s *canonicalKeySerializer) SerializeKey(resourceType, operation string, params any) string {
	key := resourceType + KeySeparator + operation
	if isEmptyParams(params) {
		return key
	}

	var b strings.Builder
	s.writeValue(&b, reflect.ValueOf(params))
	return key + KeySeparator + b.String()
}

var jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

func (s *canonicalKeySerializer) writeValue(b *strings.Builder, rv reflect.Value) {
	if !rv.IsValid() {
		b.WriteString("null")
		return
	}

	// json.Number is a string kind but must stay a bare number
	if rv.Type() == reflect.TypeOf(json.Number("")) {
		b.WriteString(rv.String())
		return
	}

	if rv.Kind() != reflect.Pointer && rv.Kind() != reflect.Interface && rv.Type().Implements(jsonMarshalerType) {
		s.writeMarshaler(b, rv)
		return
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			b.WriteString("null")
			return
		}
		s.writeValue(b, rv.Elem())

	case reflect.String:
		b.WriteString(strconv.Quote(rv.String()))

	case reflect.Bool:
		b.WriteString(strconv.FormatBool(rv.Bool()))

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))

	case reflect.Float32, reflect.Float64:
		b.WriteString(strconv.FormatFloat(rv.Float(), 'f', -1, 64))

	case reflect.Slice, reflect.Array:
		b.WriteByte('[')
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			s.writeValue(b, rv.Index(i))
		}
		b.WriteByte(']')

	case reflect.Map:
		s.writeMap(b, rv)

	case reflect.Struct:
		s.writeStruct(b, rv)

	case reflect.Func:
		// stable only within a single process
		fmt.Fprintf(b, "\"func:%x\"", rv.Pointer())

	case reflect.Chan:
		fmt.Fprintf(b, "\"chan:%x\"", rv.Pointer())

	default:
		b.WriteString(strconv.Quote(fmt.Sprintf("%v", rv.Interface())))
	}
}

type keyedValue struct {
	name  string
	value reflect.Value
}

func (s *canonicalKeySerializer) writeMap(b *strings.Builder, rv reflect.Value) {
	pairs := make([]keyedValue, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, keyedValue{name: mapKeyString(iter.Key()), value: iter.Value()})
	}
	s.writeObject(b, pairs)
}

func (s *canonicalKeySerializer) writeObject(b *strings.Builder, pairs []keyedValue) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].name < pairs[j].name })

	b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(p.name))
		b.WriteByte(':')
		s.writeValue(b, p.value)
	}
	b.WriteByte('}')
}

// writeStruct serializes exported fields under their json names, sorted, so a
// struct and the equivalent map share a key.
func (s *canonicalKeySerializer) writeStruct(b *strings.Builder, rv reflect.Value) {
	rt := rv.Type()
	fields := make([]keyedValue, 0, rt.NumField())

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		omitEmpty := false
		if tag, ok := field.Tag.Lookup("json"); ok {
			tagName, opts, _ := strings.Cut(tag, ",")
			if tagName == "-" && opts == "" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
			omitEmpty = strings.Contains(opts, "omitempty")
		}

		value := rv.Field(i)
		if omitEmpty && value.IsZero() {
			continue
		}
		fields = append(fields, keyedValue{name: name, value: value})
	}

	s.writeObject(b, fields)
}

func (s *canonicalKeySerializer) writeMarshaler(b *strings.Builder, rv reflect.Value) {
	data, err := rv.Interface().(json.Marshaler).MarshalJSON()
	if err != nil {
		b.WriteString(strconv.Quote("fallback:" + rv.Type().String()))
		return
	}

	var decoded any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		b.Write(data)
		return
	}
	s.writeValue(b, reflect.ValueOf(decoded))
}

func mapKeyString(k reflect.Value) string {
	for k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprintf("%v", k.Interface())
}

func isEmptyParams(params any) bool {
	if params == nil {
		return true
	}

	rv := reflect.ValueOf(params)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() == 0
	}
	return false
}
