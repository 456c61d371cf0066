package domain

import jsoniter "github.com/json-iterator/go"

// jsonAPI is configured compatible with encoding/json so struct tags and
// nil-handling behave exactly like the standard library, while using
// json-iterator's faster reflection-based codec underneath — the same
// configuration the teacher's pkg/util/json wraps.
var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func jsonMarshal(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}
