package upstream

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type thing struct {
	ID string `json:"id"`
}

func TestDecodeListShapes(t *testing.T) {
	shapes := map[string]string{
		"bare object":     `{"id":"s1"}`,
		"bare list":       `[{"id":"s1"}]`,
		"envelope":        `{"data":[{"id":"s1"}]}`,
		"envelope object": `{"data":{"id":"s1"}}`,
	}
	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeFirst[thing](json.RawMessage(raw))
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, thing{ID: "s1"}, *got)
		})
	}
}

func TestDecodeListEmpty(t *testing.T) {
	for _, raw := range []string{``, `null`, `[]`, `{}`, `{"data":[]}`, `{"data":null}`} {
		items, err := DecodeList[thing](json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.Empty(t, items, raw)

		first, err := DecodeFirst[thing](json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.Nil(t, first, raw)
	}
}

func TestDecodeListRejectsScalars(t *testing.T) {
	_, err := DecodeList[thing](json.RawMessage(`"text"`))
	assert.Error(t, err)
}
