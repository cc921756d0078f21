// Package cos -- JSON helpers. Marshaling goes through jsoniter (aliased as
// json) rather than the standard library encoding/json, the same choice
// aistore's cmn/cos/fs.go makes.
package cos

import jsoniter "github.com/json-iterator/go"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func MarshalToString(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func UnmarshalJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
