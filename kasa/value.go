package kasa

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a JSON value as exchanged with a device. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	list []Value
	obj  *Object
}

func NullValue() Value {
	return Value{}
}

func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func IntValue(i int64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(i, 10))}
}

// FloatValue returns null for NaN and infinities, JSON has no literal for them.
func FloatValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}

	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

func NumberValue(n json.Number) Value {
	return Value{kind: KindNumber, num: n}
}

func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

func ListValue(values ...Value) Value {
	if values == nil {
		values = []Value{}
	}

	return Value{kind: KindList, list: values}
}

// ObjectValue wraps o, a nil object becomes an empty one.
func ObjectValue(o *Object) Value {
	if o == nil {
		o = NewObject()
	}

	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Int also accepts numbers written with a fraction or exponent as long as
// they hold an integral value.
func (v Value) Int() (int64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}

	if i, err := v.num.Int64(); err == nil {
		return i, true
	}

	f, err := v.num.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}

	return int64(f), true
}

func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}

	f, err := v.num.Float64()
	return f, err == nil
}

func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) List() ([]Value, bool) {
	return v.list, v.kind == KindList
}

func (v Value) Object() (*Object, bool) {
	return v.obj, v.kind == KindObject
}

// Get returns the member key of an object, or null when v is not an object or
// has no such member.
func (v Value) Get(key string) Value {
	if v.kind != KindObject {
		return Value{}
	}

	m, _ := v.obj.Get(key)
	return m
}

// Path walks nested objects, reporting whether every key was present.
func (v Value) Path(keys ...string) (Value, bool) {
	for _, key := range keys {
		if v.kind != KindObject {
			return Value{}, false
		}

		m, ok := v.obj.Get(key)
		if !ok {
			return Value{}, false
		}
		v = m
	}

	return v, true
}

// Decode stores v into the value pointed to by into, using encoding/json
// rules.
func (v Value) Decode(into any) error {
	b, err := v.MarshalJSON()
	if err != nil {
		return err
	}

	return json.Unmarshal(b, into)
}

func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("!(%v)", err)
	}

	return string(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.write(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}

	*v = parsed
	return nil
}

func (v Value) write(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")

	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))

	case KindNumber:
		if !json.Valid([]byte(v.num)) {
			return fmt.Errorf("invalid number literal %q", string(v.num))
		}
		buf.WriteString(string(v.num))

	case KindString:
		writeString(buf, v.str)

	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	case KindObject:
		buf.WriteByte('{')
		for i, key := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, key)
			buf.WriteByte(':')
			if err := v.obj.values[key].write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

	default:
		return fmt.Errorf("unknown value kind %d", v.kind)
	}

	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail
	_ = enc.Encode(s)

	// Encode terminates every value with a newline
	buf.Truncate(buf.Len() - 1)
}

// ParseValue parses a single JSON document, keeping the order of object
// members.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := parseValue(dec)
	if err != nil {
		return Value{}, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, errors.New("unexpected data after top-level value")
	}

	return v, nil
}

func parseValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseList(dec)
		}
	}

	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func parseObject(dec *json.Decoder) (Value, error) {
	obj := NewObject()

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}

		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("unexpected object key %v", tok)
		}

		member, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		obj.Set(key, member)
	}

	// Closing brace
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}

	return ObjectValue(obj), nil
}

func parseList(dec *json.Decoder) (Value, error) {
	list := []Value{}

	for dec.More() {
		item, err := parseValue(dec)
		if err != nil {
			return Value{}, err
		}
		list = append(list, item)
	}

	// Closing bracket
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}

	return ListValue(list...), nil
}

// Object is a string keyed mapping that remembers insertion order.
type Object struct {
	keys   []string
	values map[string]Value
}

func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Set adds or replaces a member. A replaced member keeps its position.
func (o *Object) Set(key string, v Value) *Object {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v

	return o
}

func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}

	v, ok := o.values[key]
	return v, ok
}

func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)

	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}

	keys := make([]string, len(o.keys))
	copy(keys, o.keys)

	return keys
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}

	return len(o.keys)
}

// Clone copies o and, recursively, every nested object and list.
func (o *Object) Clone() *Object {
	c := NewObject()
	for _, key := range o.Keys() {
		c.Set(key, o.values[key].clone())
	}

	return c
}

func (v Value) clone() Value {
	switch v.kind {
	case KindObject:
		return ObjectValue(v.obj.Clone())
	case KindList:
		list := make([]Value, len(v.list))
		for i, item := range v.list {
			list[i] = item.clone()
		}
		return ListValue(list...)
	default:
		return v
	}
}
