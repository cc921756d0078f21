package broker

import jsoniter "github.com/json-iterator/go"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func unmarshalJSON(data []byte, v any) error { return jsonAPI.Unmarshal(data, v) }

func marshalJSON(v any) ([]byte, error) { return jsonAPI.Marshal(v) }

func mustMarshalJSON(v any) []byte {
	b, err := jsonAPI.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
