package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	t.Run("object wrapped in prose", func(t *testing.T) {
		raw, err := ExtractJSONObject("Here is my forecast:\n{\"day_1\": 10}\nHope that helps!")
		require.NoError(t, err)
		assert.Equal(t, `{"day_1": 10}`, raw)
	})

	t.Run("spans first open to last close brace", func(t *testing.T) {
		raw, err := ExtractJSONObject(`{"a": {"b": 1}} trailing`)
		require.NoError(t, err)
		assert.Equal(t, `{"a": {"b": 1}}`, raw)
	})

	t.Run("no braces", func(t *testing.T) {
		_, err := ExtractJSONObject("sorry, I cannot produce a forecast")
		assert.ErrorIs(t, err, ErrNoJSONObject)
	})

	t.Run("close before open", func(t *testing.T) {
		_, err := ExtractJSONObject("} nope {")
		assert.ErrorIs(t, err, ErrNoJSONObject)
	})
}

func TestParsePayload(t *testing.T) {
	payload, err := ParsePayload(`Sure! {"day_1": 10, "day_2": 12.5}`)
	require.NoError(t, err)
	assert.Equal(t, Payload{"day_1": 10, "day_2": 12.5}, payload)

	_, err = ParsePayload(`{"day_1": "not a number"}`)
	assert.Error(t, err)

	_, err = ParsePayload(`{}`)
	assert.ErrorIs(t, err, ErrNoJSONObject, "an empty object is as useless as no object")
}

func TestClampAdjustment(t *testing.T) {
	assert.Equal(t, 0.85, ClampAdjustment(0.2))
	assert.Equal(t, 1.15, ClampAdjustment(3.0))
	assert.Equal(t, 1.0, ClampAdjustment(1.0))
	assert.Equal(t, 0.9, ClampAdjustment(0.9))
}
