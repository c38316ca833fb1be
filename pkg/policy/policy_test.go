package policy_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sribot/pkg/policy"
)

func TestContextFirstPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := policy.New(ctx, "../../policy")
	gt.NoError(t, err)

	testCases := []struct {
		name   string
		input  policy.Input
		denied bool
	}{
		{
			name:  "context lookup first",
			input: policy.Input{Tool: "get_user_context", Round: 1, Called: []string{"get_user_context"}},
		},
		{
			name:   "search before context",
			input:  policy.Input{Tool: "search_documents", Round: 1, Called: []string{"search_documents"}},
			denied: true,
		},
		{
			name:  "search alongside context",
			input: policy.Input{Tool: "search_documents", Round: 1, Called: []string{"get_user_context", "search_documents"}},
		},
		{
			name:  "later round",
			input: policy.Input{Tool: "search_documents", Round: 2, Called: []string{"search_documents"}},
		},
		{
			name:   "clear without context",
			input:  policy.Input{Tool: "clear_all_user_memory", Round: 3},
			denied: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msgs, err := engine.Check(ctx, tc.input)
			gt.NoError(t, err)
			gt.Equal(t, len(msgs) > 0, tc.denied)
		})
	}
}

func TestEmptyPolicyAllows(t *testing.T) {
	ctx := context.Background()
	engine, err := policy.New(ctx, t.TempDir())
	gt.NoError(t, err)

	msgs, err := engine.Check(ctx, policy.Input{Tool: "anything", Round: 1})
	gt.NoError(t, err)
	gt.A(t, msgs).Length(0)

	var nilEngine *policy.Engine
	msgs, err = nilEngine.Check(ctx, policy.Input{Tool: "anything"})
	gt.NoError(t, err)
	gt.A(t, msgs).Length(0)
}

func TestPolicyUsesUserID(t *testing.T) {
	ctx := context.Background()
	engine, err := policy.NewFromSource(ctx, map[string]string{
		"blocked.rego": `package tool

deny contains "user is blocked" if {
	input.user_id == "blocked"
}
`,
	})
	gt.NoError(t, err)

	msgs, err := engine.Check(ctx, policy.Input{Tool: "get_user_context", UserID: "blocked"})
	gt.NoError(t, err)
	gt.Equal(t, msgs, []string{"user is blocked"})

	msgs, err = engine.Check(ctx, policy.Input{Tool: "get_user_context", UserID: "widya"})
	gt.NoError(t, err)
	gt.A(t, msgs).Length(0)
}

func TestInvalidPolicy(t *testing.T) {
	_, err := policy.NewFromSource(context.Background(), map[string]string{
		"broken.rego": "package tool\n\ndeny contains if {",
	})
	gt.Error(t, err)
}
