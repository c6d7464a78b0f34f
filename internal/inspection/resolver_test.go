package inspection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func def(id int64, code string, critical bool) CheckDefinition {
	return CheckDefinition{ID: id, TenantID: "tenant-a", Code: code, Description: "check " + code, IsCritical: critical, Active: true}
}

func TestResolveWorkedExample(t *testing.T) {
	r := NewChecklistResolver(zap.NewNop())

	groups := r.Resolve([]CheckDefinition{def(1, "1", true), def(2, "4", true)}, false)

	require.Len(t, groups, 2)
	assert.Equal(t, GroupPhysicalMatch, groups[0].Title)
	require.Len(t, groups[0].Items, 1)
	assert.Equal(t, "incoming_check_1", groups[0].Items[0].Key)
	assert.True(t, groups[0].Items[0].RequiredForAccept)

	assert.Equal(t, GroupDocumentation, groups[1].Title)
	require.Len(t, groups[1].Items, 1)
	assert.Equal(t, "incoming_check_4", groups[1].Items[0].Key)
	assert.True(t, groups[1].Items[0].Critical)
	assert.False(t, groups[1].Items[0].RequiredForAccept)
}

func TestResolveDocumentationRequiredWithDocumentation(t *testing.T) {
	r := NewChecklistResolver(zap.NewNop())

	groups := r.Resolve([]CheckDefinition{def(1, "4", true), def(2, "5", false)}, true)

	require.Len(t, groups, 1)
	assert.True(t, groups[0].Items[0].RequiredForAccept)
	assert.False(t, groups[0].Items[1].RequiredForAccept)
}

func TestResolveOrderingAndGroups(t *testing.T) {
	r := NewChecklistResolver(zap.NewNop())

	defs := []CheckDefinition{
		def(1, "10", false),
		def(2, "2", true),
		def(3, "abc", true),
		def(4, "9", false),
		def(5, "1.5", false),
		def(6, " 3 ", false),
		def(7, "0", false),
		def(8, "x-1", false),
	}
	defs[5].RegulationReference = strPtr("EASA Part-145.A.42")

	groups := r.Resolve(defs, true)

	require.Len(t, groups, 3)
	assert.Equal(t, []string{GroupPhysicalMatch, GroupDocumentation, GroupOther},
		[]string{groups[0].Title, groups[1].Title, groups[2].Title})

	keys := func(g ChecklistGroup) []string {
		out := make([]string, 0, len(g.Items))
		for _, it := range g.Items {
			out = append(out, it.Key)
		}
		return out
	}
	assert.Equal(t, []string{"incoming_check_1.5", "incoming_check_2"}, keys(groups[0]))
	assert.Equal(t, []string{"incoming_check_3", "incoming_check_9"}, keys(groups[1]))
	assert.Equal(t, []string{"incoming_check_0", "incoming_check_10", "incoming_check_abc", "incoming_check_x-1"}, keys(groups[2]))

	assert.Equal(t, "EASA Part-145.A.42", groups[1].Items[0].Hint)
	assert.Empty(t, groups[1].Items[1].Hint)

	// malformed codes keep their criticality outside Documentation
	assert.True(t, groups[2].Items[2].RequiredForAccept)
}

func TestResolveSkipsInactiveAndHandlesEmpty(t *testing.T) {
	r := NewChecklistResolver(zap.NewNop())

	inactive := def(1, "1", true)
	inactive.Active = false

	groups := r.Resolve([]CheckDefinition{inactive}, true)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)

	assert.NotNil(t, r.Resolve(nil, false))
}

func TestResolveIsDeterministic(t *testing.T) {
	r := NewChecklistResolver(zap.NewNop())

	defs := []CheckDefinition{def(1, "7", true), def(2, "NaN", false), def(3, "1", false), def(4, "bad", true), def(5, "Inf", false)}

	first := r.Resolve(defs, true)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, r.Resolve(defs, true))
	}

	other := first[len(first)-1]
	assert.Equal(t, GroupOther, other.Title)
	assert.Equal(t, "incoming_check_NaN", other.Items[0].Key)
	assert.Equal(t, "incoming_check_bad", other.Items[1].Key)
	assert.Equal(t, "incoming_check_Inf", other.Items[2].Key)
}
