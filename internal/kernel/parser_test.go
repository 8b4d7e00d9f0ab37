package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecisionsBareObject(t *testing.T) {
	ds, err := ParseDecisions(`{"t":"thinking","a":"fs.read","i":{"path":"a.txt"}}`)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "thinking", ds[0].Thought)
	assert.Equal(t, "fs.read", ds[0].Action)
}

func TestParseDecisionsFencedBlock(t *testing.T) {
	content := "Sure thing.\n```json\n{\"f\":\"all done\"}\n```\n"
	ds, err := ParseDecisions(content)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "all done", ds[0].Final)
}

func TestParseDecisionsBatchArray(t *testing.T) {
	ds, err := ParseDecisions(`[{"f":"first"},{"f":"second"}]`)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "first", ds[0].Final)
	assert.Equal(t, "second", ds[1].Final)
}

func TestParseDecisionsLiteralNewlineInString(t *testing.T) {
	content := "{\"f\":\"line one\nline two\"}"
	ds, err := ParseDecisions(content)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "line one\nline two", ds[0].Final)
}

func TestParseDecisionsBalancedBraceRecovery(t *testing.T) {
	content := `Here is my plan: {"t":"recover","f":"recovered"} thanks.`
	ds, err := ParseDecisions(content)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "recovered", ds[0].Final)
}

func TestParseDecisionsMalformedReturnsError(t *testing.T) {
	_, err := ParseDecisions("this is not json at all")
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseDecisionsEmptyObjectIsTreatedAsMalformed(t *testing.T) {
	_, err := ParseDecisions(`{}`)
	require.Error(t, err)
}

func TestParseDecisionsConfirmGatedAction(t *testing.T) {
	ds, err := ParseDecisions(`{"t":"about to delete","a":"fs.delete","i":{"path":"x"},"c":true}`)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.True(t, ds[0].Confirm)
}
