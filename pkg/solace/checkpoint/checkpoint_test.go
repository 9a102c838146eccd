package checkpoint_test

import (
	"testing"

	"github.com/randalmurphal/solace/pkg/solace/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_MarshalUnmarshal(t *testing.T) {
	c := turn("s1", 7, "I lost my dog", "I'm sorry to hear that")
	c.Kind = "conversation"
	c.InjectedContext = "- user has a dog named Max"
	c.FactsUsed = []string{"fact-1"}

	data, err := c.Marshal()
	require.NoError(t, err)

	got, err := checkpoint.Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, c.SessionID, got.SessionID)
	assert.Equal(t, c.Sequence, got.Sequence)
	assert.Equal(t, c.Kind, got.Kind)
	assert.Equal(t, c.FactsUsed, got.FactsUsed)
	assert.True(t, c.Timestamp.Equal(got.Timestamp))
}

func TestUnmarshal_InvalidJSON(t *testing.T) {
	_, err := checkpoint.Unmarshal([]byte("{not json"))
	assert.Error(t, err)
}

func TestCheckpoint_CloneIsDeep(t *testing.T) {
	c := turn("s1", 1, "u", "a")
	c.FactsUsed = []string{"f"}

	cp := c.Clone()
	cp.Messages[0].Content = "changed"
	cp.FactsUsed[0] = "g"

	assert.Equal(t, "u", c.Messages[0].Content)
	assert.Equal(t, "f", c.FactsUsed[0])
}

func TestNextSequence(t *testing.T) {
	assert.Equal(t, int64(1), checkpoint.NextSequence(nil, nil))
	assert.Equal(t, int64(4), checkpoint.NextSequence(nil, []*checkpoint.Checkpoint{turn("s", 1, "", ""), turn("s", 3, "", "")}))
	assert.Equal(t, int64(11), checkpoint.NextSequence(&checkpoint.Summary{ThroughSequence: 10}, nil))
}

func TestMessageCount(t *testing.T) {
	cps := []*checkpoint.Checkpoint{turn("s", 1, "a", "b"), turn("s", 2, "c", "d")}
	assert.Equal(t, 4, checkpoint.MessageCount(cps))
	assert.Equal(t, 0, checkpoint.MessageCount(nil))
}
