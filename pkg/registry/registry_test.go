package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	reg, err := Default()
	require.NoError(t, err)

	for _, taskType := range []string{TaskNotifyOrderAssignment, TaskNotifyOrderUpdate, TaskNotifyNewOrder, BodyPushSubscribe} {
		a, ok := reg.Get(taskType)
		require.True(t, ok, taskType)
		assert.NotNil(t, a.InputSchema, taskType)
	}

	_, ok := reg.Get("unknown")
	assert.False(t, ok)
	assert.Nil(t, reg.InputSchema("unknown"))
}

func TestLoadRegistry_RejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"activities":[
		{"id":"a","taskType":"x"},
		{"id":"b","taskType":"x"}
	]}`), 0o600))

	_, err := LoadRegistry(path)
	assert.ErrorContains(t, err, "duplicate taskType")
}

func TestLoadRegistry_RejectsBrokenSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"activities":[
		{"id":"a","taskType":"x","inputSchema":{"type":12}}
	]}`), 0o600))

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}
