package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchDef() Definition {
	return Definition{
		Name:        "web_search",
		Description: "Search the web",
		Parameters: []Parameter{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
			{Name: "limit", Type: "integer", Description: "Max results"},
		},
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(searchDef()))

	err := r.Register(searchDef())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterRequiresName(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(Definition{Description: "nameless"}))
}

func TestValidateAcceptsWellFormedCall(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(searchDef()))

	err := r.Validate(Call{
		ID:         NewCallID(),
		Name:       "web_search",
		Parameters: map[string]interface{}{"query": "golang workflow engines", "limit": 5},
	})
	assert.NoError(t, err)
}

func TestValidateRejectsMissingRequiredParameter(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(searchDef()))

	err := r.Validate(Call{Name: "web_search", Parameters: map[string]interface{}{"limit": 5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")
}

func TestValidateRejectsWrongParameterType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(searchDef()))

	err := r.Validate(Call{Name: "web_search", Parameters: map[string]interface{}{"query": 42}})
	assert.Error(t, err)
}

func TestValidateUnknownTool(t *testing.T) {
	r := NewRegistry()
	err := r.Validate(Call{Name: "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestDescriptorsRespectPolicy(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(searchDef()))
	require.NoError(t, r.Register(Definition{Name: "shell_exec", Description: "Run a command"}))

	visible := r.Descriptors(&Policy{Allow: []string{"*"}, Deny: []string{"shell_exec"}})
	require.Len(t, visible, 1)
	assert.Equal(t, "web_search", visible[0].Name)
}

func TestDescriptorsOrderIsStable(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(Definition{Name: name, Description: name}))
	}

	for i := 0; i < 20; i++ {
		visible := r.Descriptors(nil)
		require.Len(t, visible, 3)
		assert.Equal(t, "alpha", visible[0].Name)
		assert.Equal(t, "mid", visible[1].Name)
		assert.Equal(t, "zeta", visible[2].Name)
	}
}

func TestSchemaIncludesRequiredFields(t *testing.T) {
	def := searchDef()
	schema := def.Schema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"query"}, schema["required"])
}
