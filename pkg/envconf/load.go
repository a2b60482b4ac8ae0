package envconf

import (
	"encoding"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingRequired = errors.New("missing required environment variable")
	ErrUnsupportedType = errors.New("unsupported field type")
)

// LookupFunc resolves a variable name, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load fills dst, a pointer to a struct, from the process environment.
//
// Fields tagged `env:"NAME"` are required unless they also carry
// `envDefault:"value"`, which is used when NAME is unset. Untagged struct
// fields (and pointers to structs) are loaded recursively.
func Load(dst any) error {
	return LoadWith(dst, os.LookupEnv)
}

// LoadWith is Load with a custom variable source.
func LoadWith(dst any, lookup LookupFunc) error {
	if dst == nil {
		return errors.New("destination is nil")
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.New("destination must be a non-nil pointer to a struct")
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return errors.New("destination must point to a struct")
	}

	return loadStruct(v, lookup)
}

func loadStruct(v reflect.Value, lookup LookupFunc) error {
	t := v.Type()
	for i := range v.NumField() {
		sf := t.Field(i)
		fv := v.Field(i)

		if !sf.IsExported() {
			continue
		}

		tag := sf.Tag.Get("env")
		if tag == "-" {
			continue
		}

		if tag == "" {
			err := loadNested(sf, fv, lookup)
			if err != nil {
				return err
			}

			continue
		}

		raw, ok := lookup(tag)
		if !ok {
			raw, ok = sf.Tag.Lookup("envDefault")
		}

		if !ok {
			return fmt.Errorf("%w: %s (field %q)", ErrMissingRequired, tag, sf.Name)
		}

		err := setValue(fv, raw)
		if err != nil {
			return fmt.Errorf("parse %q for field %q: %w", tag, sf.Name, err)
		}
	}

	return nil
}

// loadNested recurses into untagged struct and pointer-to-struct fields.
func loadNested(sf reflect.StructField, fv reflect.Value, lookup LookupFunc) error {
	switch {
	case fv.Kind() == reflect.Struct:
		err := loadStruct(fv, lookup)
		if err != nil {
			return fmt.Errorf("load recursively %q: %w", sf.Name, err)
		}
	case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}

		err := loadStruct(fv.Elem(), lookup)
		if err != nil {
			return fmt.Errorf("load recursively %q: %w", sf.Name, err)
		}
	}

	return nil
}

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// setValue parses raw into fv. Supported: encoding.TextUnmarshaler,
// strings, bools, ints, uints, floats, time.Duration, pointers to those and
// comma-separated slices of those.
func setValue(fv reflect.Value, raw string) error {
	if !fv.CanSet() {
		return fmt.Errorf("field not settable: %w", ErrUnsupportedType)
	}

	if reflect.PointerTo(fv.Type()).Implements(textUnmarshalerType) {
		err := fv.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(raw))
		if err != nil {
			return fmt.Errorf("unmarshal text: %w", err)
		}

		return nil
	}

	switch fv.Kind() {
	case reflect.Pointer:
		elem := reflect.New(fv.Type().Elem())

		err := setValue(elem.Elem(), raw)
		if err != nil {
			return fmt.Errorf("parse pointer: %w", err)
		}

		fv.Set(elem)

		return nil
	case reflect.Slice:
		return setSlice(fv, raw)
	default:
		return setScalar(fv, raw)
	}
}

func setSlice(fv reflect.Value, raw string) error {
	if strings.TrimSpace(raw) == "" {
		fv.Set(reflect.MakeSlice(fv.Type(), 0, 0))

		return nil
	}

	parts := strings.Split(raw, ",")
	out := reflect.MakeSlice(fv.Type(), len(parts), len(parts))

	for i, part := range parts {
		err := setValue(out.Index(i), strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("parse element %d: %w", i, err)
		}
	}

	fv.Set(out)

	return nil
}

func setScalar(fv reflect.Value, raw string) error {
	var err error

	switch kind := fv.Kind(); {
	case kind == reflect.String:
		fv.SetString(raw)
	case kind == reflect.Bool:
		var b bool

		b, err = strconv.ParseBool(raw)
		fv.SetBool(b)
	case fv.Type() == durationType:
		var d time.Duration

		d, err = time.ParseDuration(raw)
		fv.SetInt(int64(d))
	case kind >= reflect.Int && kind <= reflect.Int64:
		var n int64

		n, err = strconv.ParseInt(raw, 10, fv.Type().Bits())
		fv.SetInt(n)
	case kind >= reflect.Uint && kind <= reflect.Uint64:
		var n uint64

		n, err = strconv.ParseUint(raw, 10, fv.Type().Bits())
		fv.SetUint(n)
	case kind == reflect.Float32 || kind == reflect.Float64:
		var f float64

		f, err = strconv.ParseFloat(raw, fv.Type().Bits())
		fv.SetFloat(f)
	default:
		return fmt.Errorf("%s: %w", fv.Type(), ErrUnsupportedType)
	}

	if err != nil {
		return fmt.Errorf("parse %s: %w", fv.Kind(), err)
	}

	return nil
}
