package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRegistry() *ActivityRegistry {
	return &ActivityRegistry{
		Version: "1.0.0",
		Activities: []Activity{
			{
				ID: "validate-support-application", DisplayName: "Validate Support Application",
				Category: "application", TaskType: "validate-support-application",
				ImplementationStatus: StatusCompleted, Timeout: "10s", Retries: 3,
			},
			{
				ID: "index-support-application", DisplayName: "Index Support Application",
				Category: "application", TaskType: "index-support-application",
				ImplementationStatus: StatusPlanned, Timeout: "30s",
			},
		},
	}
}

func TestRegistry_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "activity-registry.json")

	reg := sampleRegistry()
	require.NoError(t, reg.Save(path))
	assert.NotEmpty(t, reg.LastUpdated)

	loaded, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, reg.Activities, loaded.Activities)
	assert.Equal(t, reg.LastUpdated, loaded.LastUpdated)
}

func TestLoadOrNew_MissingFile(t *testing.T) {
	reg, err := LoadOrNew(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, reg.Activities)
}

func TestLoadRegistry_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}

func TestRegistry_Find(t *testing.T) {
	reg := sampleRegistry()

	a, ok := reg.Find("validate-support-application")
	require.True(t, ok)
	assert.True(t, a.Deployable())

	planned, ok := reg.Find("index-support-application")
	require.True(t, ok)
	assert.False(t, planned.Deployable())

	_, ok = reg.Find("send-notification")
	assert.False(t, ok)
}

func TestRegistry_AddRejectsDuplicates(t *testing.T) {
	reg := sampleRegistry()
	assert.Error(t, reg.Add(Activity{ID: "validate-support-application"}))
	assert.NoError(t, reg.Add(Activity{ID: "draft-situation-description"}))
	assert.Len(t, reg.Activities, 3)
}

func TestRegistry_Update(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		field   string
		value   string
		wantErr bool
	}{
		{"status", "index-support-application", "status", StatusCompleted, false},
		{"unknown status", "index-support-application", "status", "shipped", true},
		{"retries", "index-support-application", "retries", "5", false},
		{"negative retries", "index-support-application", "retries", "-1", true},
		{"timeout", "index-support-application", "timeout", "45s", false},
		{"bad timeout", "index-support-application", "timeout", "soon", true},
		{"unknown field", "index-support-application", "owner", "x", true},
		{"unknown id", "nope", "status", StatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sampleRegistry().Update(tt.id, tt.field, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_Validate(t *testing.T) {
	assert.NoError(t, sampleRegistry().Validate())
	assert.Error(t, (&ActivityRegistry{}).Validate())

	reg := sampleRegistry()
	reg.Activities[1].TaskType = reg.Activities[0].TaskType
	reg.Activities[1].Timeout = "later"
	reg.Activities[1].DisplayName = ""
	err := reg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Contains(t, err.Error(), "invalid timeout")
	assert.Contains(t, err.Error(), "missing displayName")
}

func TestRepositoryRegistryIsValid(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join("..", "..", "configs", "activity-registry.json"))
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	for _, taskType := range []string{
		"validate-support-application",
		"create-support-application-record",
		"index-support-application",
		"send-submission-notification",
		"draft-situation-description",
	} {
		a, ok := reg.Find(taskType)
		require.True(t, ok, taskType)
		assert.True(t, a.Deployable(), taskType)
	}
}
