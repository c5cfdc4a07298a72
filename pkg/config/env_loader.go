/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package config

import (
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/ssdpradar/pkg/logger"
)

var (
	// ErrDstMustBeNonNilPointer indicates that the destination must be a non-nil pointer.
	ErrDstMustBeNonNilPointer = errors.New("dst must be a non-nil pointer")
	// ErrDstMustBePointerToStruct indicates that the destination must be a pointer to a struct.
	ErrDstMustBePointerToStruct = errors.New("dst must be a pointer to a struct")

	errInvalidEnvValue = errors.New("invalid environment value")
)

//nolint:gochecknoglobals // reflection lookups
var (
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	jsonUnmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()
	durationType        = reflect.TypeOf(time.Duration(0))
)

// EnvConfigLoader fills a struct from environment variables named after its
// json tags. With prefix "SSDPRADAR_", a field tagged `json:"url"` inside a
// field tagged `json:"nats"` is read from SSDPRADAR_NATS_URL. A complete
// JSON document in <prefix>CONFIG_JSON takes precedence over the individual
// variables.
type EnvConfigLoader struct {
	logger logger.Logger
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvConfigLoader returns a loader reading variables that start with prefix.
func NewEnvConfigLoader(log logger.Logger, prefix string) *EnvConfigLoader {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &EnvConfigLoader{logger: log, prefix: prefix, lookup: os.LookupEnv}
}

// Load implements ConfigLoader. Variables that fail to parse are skipped and
// leave the field untouched.
func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst interface{}) error {
	jsonKey := e.prefix + "CONFIG_JSON"

	if raw, ok := e.lookup(jsonKey); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", jsonKey, err)
		}

		e.logger.Info().Str("env", jsonKey).Msg("Loaded configuration from environment")

		return nil
	}

	root, err := structTarget(dst)
	if err != nil {
		return err
	}

	n := e.fill(root, e.prefix)
	e.logger.Debug().Str("prefix", e.prefix).Int("fields", n).Msg("Loaded configuration from environment variables")

	return nil
}

func structTarget(dst interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, ErrDstMustBeNonNilPointer
	}

	if v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, ErrDstMustBePointerToStruct
	}

	return v.Elem(), nil
}

// fill sets the tagged fields of the struct v and reports how many it set.
func (e *EnvConfigLoader) fill(v reflect.Value, prefix string) int {
	set := 0

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)

		name, ok := envName(v.Type().Field(i))
		if !ok || !field.CanSet() {
			continue
		}

		key := prefix + name

		if n, isStruct := e.fillNested(field, key+"_"); isStruct {
			set += n

			continue
		}

		raw, ok := e.lookup(key)
		if !ok || raw == "" {
			continue
		}

		if err := decode(field, raw); err != nil {
			e.logger.Debug().Err(err).Str("env", key).Msg("Ignoring environment variable")

			continue
		}

		set++
	}

	return set
}

// fillNested recurses into struct and pointer-to-struct fields that do not
// decode themselves. A nil pointer is only allocated when at least one of
// its variables is set.
func (e *EnvConfigLoader) fillNested(field reflect.Value, prefix string) (int, bool) {
	t := field.Type()

	isPtr := t.Kind() == reflect.Ptr
	if isPtr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct || selfDecoding(t) {
		return 0, false
	}

	switch {
	case !isPtr:
		return e.fill(field, prefix), true
	case !field.IsNil():
		return e.fill(field.Elem(), prefix), true
	}

	fresh := reflect.New(t)

	n := e.fill(fresh.Elem(), prefix)
	if n > 0 {
		field.Set(fresh)
	}

	return n, true
}

// envName derives the variable suffix from a field's json tag.
func envName(sf reflect.StructField) (string, bool) {
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return "", false
	}

	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(name)), true
}

func selfDecoding(t reflect.Type) bool {
	pt := reflect.PointerTo(t)

	return pt.Implements(textUnmarshalerType) || pt.Implements(jsonUnmarshalerType)
}

// decode parses raw into the addressable value v. Types that implement
// encoding.TextUnmarshaler or json.Unmarshaler decode themselves; string
// slices are comma separated; other composite kinds are read as JSON.
func decode(v reflect.Value, raw string) error {
	if v.Kind() == reflect.Ptr {
		elem := reflect.New(v.Type().Elem())
		if err := decode(elem.Elem(), raw); err != nil {
			return err
		}

		v.Set(elem)

		return nil
	}

	switch u := v.Addr().Interface().(type) {
	case encoding.TextUnmarshaler:
		return wrapDecode(u.UnmarshalText([]byte(raw)))
	case json.Unmarshaler:
		return wrapDecode(u.UnmarshalJSON(jsonLiteral(raw)))
	}

	if v.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return wrapDecode(err)
		}

		v.SetInt(int64(d))

		return nil
	}

	if set, ok := scalarSetters[v.Kind()]; ok {
		return wrapDecode(set(v, raw))
	}

	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.String {
		parts := strings.Split(raw, ",")
		out := reflect.MakeSlice(v.Type(), 0, len(parts))

		for _, p := range parts {
			out = reflect.Append(out, reflect.ValueOf(strings.TrimSpace(p)).Convert(v.Type().Elem()))
		}

		v.Set(out)

		return nil
	}

	return wrapDecode(json.Unmarshal([]byte(raw), v.Addr().Interface()))
}

// jsonLiteral passes valid JSON through and quotes anything else, so "30s"
// and "\"30s\"" decode the same way.
func jsonLiteral(raw string) []byte {
	if json.Valid([]byte(raw)) {
		return []byte(raw)
	}

	quoted, _ := json.Marshal(raw)

	return quoted
}

func wrapDecode(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", errInvalidEnvValue, err)
}

type scalarSetter func(v reflect.Value, raw string) error

//nolint:gochecknoglobals // kind dispatch table
var scalarSetters = map[reflect.Kind]scalarSetter{
	reflect.String:  setString,
	reflect.Bool:    setBool,
	reflect.Int:     setInt,
	reflect.Int8:    setInt,
	reflect.Int16:   setInt,
	reflect.Int32:   setInt,
	reflect.Int64:   setInt,
	reflect.Uint:    setUint,
	reflect.Uint8:   setUint,
	reflect.Uint16:  setUint,
	reflect.Uint32:  setUint,
	reflect.Uint64:  setUint,
	reflect.Float32: setFloat,
	reflect.Float64: setFloat,
}

func setString(v reflect.Value, raw string) error {
	v.SetString(raw)

	return nil
}

func setBool(v reflect.Value, raw string) error {
	b, err := strconv.ParseBool(raw)
	if err == nil {
		v.SetBool(b)
	}

	return err
}

func setInt(v reflect.Value, raw string) error {
	i, err := strconv.ParseInt(raw, 10, v.Type().Bits())
	if err == nil {
		v.SetInt(i)
	}

	return err
}

func setUint(v reflect.Value, raw string) error {
	u, err := strconv.ParseUint(raw, 10, v.Type().Bits())
	if err == nil {
		v.SetUint(u)
	}

	return err
}

func setFloat(v reflect.Value, raw string) error {
	f, err := strconv.ParseFloat(raw, v.Type().Bits())
	if err == nil {
		v.SetFloat(f)
	}

	return err
}
