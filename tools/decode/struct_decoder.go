package decode

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Options tune Map.
type Options struct {
	// TagName selects the struct tag used for field names (default "json").
	TagName string
	// WeaklyTypedInput allows "123" -> int, 12 -> "12" and friends (default true).
	WeaklyTypedInput bool
	// ErrorUnused fails when the input has keys the target does not declare.
	ErrorUnused bool
}

func DefaultOptions() Options {
	return Options{
		TagName:          "json",
		WeaklyTypedInput: true,
	}
}

// Map decodes a loosely typed map (a JSON object or a YAML document) into T.
func Map[T any](m map[string]any, opts ...Options) (*T, error) {
	var out T
	if err := Into(m, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Into decodes m into the value pointed to by out, keeping fields of out that m
// does not mention. That makes it suitable for layering over defaults.
func Into(m map[string]any, out any, opts ...Options) error {
	if m == nil {
		return fmt.Errorf("input map is nil")
	}
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
		if cfg.TagName == "" {
			cfg.TagName = "json"
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          cfg.TagName,
		Result:           out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		ErrorUnused:      cfg.ErrorUnused,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			floatToIntHook(),
			numberToStringHook(),
		),
	})
	if err != nil {
		return fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// floatToIntHook turns JSON float64 into the integer kind of the target.
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

// numberToStringHook renders numeric ids without exponent notation
// (1e+06 would otherwise be what weak typing produces).
func numberToStringHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if to != reflect.String {
			return data, nil
		}
		switch from {
		case reflect.Float64:
			return strconv.FormatFloat(data.(float64), 'f', -1, 64), nil
		case reflect.Float32:
			return strconv.FormatFloat(float64(data.(float32)), 'f', -1, 32), nil
		}
		return data, nil
	}
}
