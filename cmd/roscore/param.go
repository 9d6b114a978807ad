package main

import (
	"strings"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
)

// parseParamFlag splits a "--param key=value" flag into its key and decoded
// value. value is treated as a JSON literal so a caller can seed booleans,
// numbers, strings, and nested structs from the command line, e.g.
// "/use_sim_time=true" or "/limits={\"max\":10}".
func parseParamFlag(flag string) (key string, value interface{}, err error) {
	idx := strings.Index(flag, "=")
	if idx < 0 {
		return "", nil, errors.Errorf("malformed --param %q, expected key=value", flag)
	}
	key = flag[:idx]
	raw := flag[idx+1:]
	value, err = decodeParamLiteral([]byte(raw))
	if err != nil {
		return "", nil, errors.Wrapf(err, "decoding value for param %s", key)
	}
	return key, value, nil
}

// decodeParamLiteral sniffs the JSON type of raw and decodes it into the
// closest Go representation the parameter tree understands: bool, float64,
// string, []interface{}, or map[string]interface{}. Bare strings that are
// not valid JSON (no surrounding quotes) are accepted as plain strings, the
// common case for a command-line invocation.
func decodeParamLiteral(raw []byte) (interface{}, error) {
	value, valueType, _, err := jsonparser.Get(raw)
	if err != nil || valueType == jsonparser.NotExist {
		return string(raw), nil
	}

	switch valueType {
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(raw)
	case jsonparser.Number:
		return jsonparser.ParseFloat(raw)
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Array:
		return decodeParamArray(raw)
	case jsonparser.Object:
		return decodeParamObject(raw)
	case jsonparser.Null:
		return nil, nil
	default:
		return string(raw), nil
	}
}

func decodeParamArray(raw []byte) ([]interface{}, error) {
	var out []interface{}
	var iterErr error
	_, err := jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if iterErr != nil {
			return
		}
		decoded, decErr := decodeParamLiteral(value)
		if decErr != nil {
			iterErr = decErr
			return
		}
		out = append(out, decoded)
	})
	if err != nil {
		return nil, err
	}
	return out, iterErr
}

func decodeParamObject(raw []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	var iterErr error
	err := jsonparser.ObjectEach(raw, func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
		decoded, decErr := decodeParamLiteral(value)
		if decErr != nil {
			iterErr = decErr
			return decErr
		}
		out[string(key)] = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, iterErr
}
