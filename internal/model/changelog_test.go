package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, st := range Statuses {
		got, err := ParseStatus(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}

	_, err := ParseStatus("stale")
	assert.Error(t, err)
}

func TestStatusJSON(t *testing.T) {
	c := PageClassification{Page: "Castle", Status: ToUpdate}
	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"page":"Castle","status":"toUpdate"}`, string(b))

	var back PageClassification
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, c, back)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"stale"}`), &back))
}
