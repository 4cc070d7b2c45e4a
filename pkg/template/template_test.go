package template

import (
	"testing"

	"github.com/dukex/operand/pkg/models"
	"github.com/stretchr/testify/assert"
)

func testRun() *models.WorkflowRun {
	return &models.WorkflowRun{
		ID:          "run-1",
		InputValues: map[string]any{"name": "alpha", "count": float64(3)},
		Steps: map[string]*models.StepExecutionState{
			"step1": {
				StepID:  "step1",
				Status:  models.StepStatusSuccess,
				Outputs: map[string]any{"value": "https://x/y.git", "exitCode": float64(0)},
			},
		},
	}
}

func testWorkspace() *models.Workspace {
	return &models.Workspace{ID: "ws-1", WorkingDirectory: "/tmp/ws"}
}

func TestSubstitute_SoleTokenKeepsType(t *testing.T) {
	run := testRun()
	workspace := testWorkspace()

	tests := []struct {
		name string
		text string
		want any
	}{
		{
			name: "workspace directory resolves typed",
			text: "{{ workspace.workingDirectory }}",
			want: "/tmp/ws",
		},
		{
			name: "workspace id",
			text: "{{workspace.id}}",
			want: "ws-1",
		},
		{
			name: "number input stays a number",
			text: "{{ input.count }}",
			want: float64(3),
		},
		{
			name: "step output via outputs segment",
			text: "{{ step1.outputs.value }}",
			want: "https://x/y.git",
		},
		{
			name: "step output shorthand",
			text: "{{ step1.value }}",
			want: "https://x/y.git",
		},
		{
			name: "unresolved path yields nil",
			text: "{{ missing.outputs.key }}",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.text, run, workspace))
		})
	}
}

func TestSubstitute_EmbeddedTokensStringify(t *testing.T) {
	run := testRun()
	workspace := testWorkspace()

	got := Substitute("dir={{ workspace.workingDirectory }} n={{ input.count }}", run, workspace)
	assert.Equal(t, "dir=/tmp/ws n=3", got)
}

func TestSubstitute_UnresolvedTokenBecomesEmpty(t *testing.T) {
	got := Substitute("value=[{{ nope.key }}]", testRun(), testWorkspace())
	assert.Equal(t, "value=[]", got)
}

func TestSubstitute_PlainStringPassesThrough(t *testing.T) {
	got := Substitute("no tokens here", testRun(), testWorkspace())
	assert.Equal(t, "no tokens here", got)
}

func TestResolvePath_NilRunAndWorkspace(t *testing.T) {
	assert.Nil(t, ResolvePath("input.name", nil, nil))
	assert.Nil(t, ResolvePath("workspace.id", testRun(), nil))
	assert.Nil(t, ResolvePath("workspace.unknown", testRun(), testWorkspace()))
}
