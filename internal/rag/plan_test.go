package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"grundbank/internal/model"
	"grundbank/internal/vectorindex"
)

func TestBuildPlanOrdersByPriorityThenTypeBias(t *testing.T) {
	libs := []model.Library{
		{ID: "a", Name: "Bakgrund", Type: model.LibraryBackground, Priority: 90},
		{ID: "b", Name: "Lågt", Type: model.LibraryBackground, Priority: 40},
		{ID: "c", Name: "Underlag", Type: model.LibraryInput, Priority: 90},
	}
	plan := BuildPlan(libs, nil)
	require.Len(t, plan, 3)
	assert.Equal(t, "c", plan[0].ID)
	assert.Equal(t, "a", plan[1].ID)
	assert.Equal(t, "b", plan[2].ID)
}

func TestBuildPlanAppliesOverrides(t *testing.T) {
	libs := []model.Library{
		{ID: "a", Type: model.LibraryBackground, Priority: 30},
		{ID: "b", Type: model.LibraryBackground, Priority: 80},
	}
	plan := BuildPlan(libs, map[string]int{"a": 95})
	assert.Equal(t, "a", plan[0].ID)
	assert.Equal(t, 95, plan[0].Priority)
	assert.Equal(t, PriorityFromAssistant, plan[0].PrioritySource)
	assert.Equal(t, 30, plan[0].DefaultPriority)
	assert.Equal(t, PriorityFromLibrary, plan[1].PrioritySource)
}

func TestBuildPlanClampsPriorities(t *testing.T) {
	libs := []model.Library{{ID: "a", Type: model.LibraryBackground, Priority: 150}}
	plan := BuildPlan(libs, map[string]int{"a": -10})
	assert.Equal(t, 0, plan[0].Priority)
	assert.Equal(t, 100, plan[0].DefaultPriority)
}

type stubIndex struct {
	matches map[string][]vectorindex.Match
}

func (s *stubIndex) Add(context.Context, string, []vectorindex.Record) error { return nil }
func (s *stubIndex) Nearest(_ context.Context, libraryID string, _ []float32, k int) ([]vectorindex.Match, error) {
	out := s.matches[libraryID]
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
func (s *stubIndex) DeleteDocument(context.Context, string, string) error { return nil }
func (s *stubIndex) DeleteLibrary(context.Context, string) error          { return nil }

func nMatches(n int, filename string) []vectorindex.Match {
	out := make([]vectorindex.Match, n)
	for i := range out {
		out[i] = vectorindex.Match{Filename: filename, Page: i + 1, Text: "innehåll", DocID: "d"}
	}
	return out
}

func newTestService(idx vectorindex.Index) *Service {
	return &Service{index: idx, logger: zap.NewNop()}
}

func TestRetrieveAssignsContiguousRefs(t *testing.T) {
	idx := &stubIndex{matches: map[string][]vectorindex.Match{
		"high": nMatches(3, "a.pdf"),
		"low":  nMatches(3, "b.pdf"),
	}}
	svc := newTestService(idx)
	plan := []PlanEntry{
		{ID: "high", Name: "Hög", Type: model.LibraryInput, Priority: 90},
		{ID: "low", Name: "Låg", Type: model.LibraryBackground, Priority: 40},
	}
	out, err := svc.retrieve(context.Background(), plan, []float32{1}, nil, ModePlan{Mode: ModeStandard}, 10)
	require.NoError(t, err)
	require.Len(t, out.Sources, 6)
	for i, src := range out.Sources {
		assert.Equal(t, "S"+string(rune('1'+i)), src.Ref)
	}
	assert.Equal(t, out.AllowList()[0], "S1")
	assert.Len(t, out.ContextBlocks, 6)
	assert.Contains(t, out.ContextBlocks[0], "KÄLLA S1")
}

func TestRetrieveHonorsGlobalSourceCap(t *testing.T) {
	idx := &stubIndex{matches: map[string][]vectorindex.Match{
		"a": nMatches(10, "a.pdf"),
		"b": nMatches(10, "b.pdf"),
		"c": nMatches(10, "c.pdf"),
		"d": nMatches(10, "d.pdf"),
	}}
	svc := newTestService(idx)
	plan := []PlanEntry{
		{ID: "a", Priority: 90}, {ID: "b", Priority: 90},
		{ID: "c", Priority: 90}, {ID: "d", Priority: 90},
	}
	baseK := 10
	out, err := svc.retrieve(context.Background(), plan, []float32{1}, nil, ModePlan{Mode: ModeStandard}, baseK)
	require.NoError(t, err)
	assert.Len(t, out.Sources, MaxTotalSources(baseK))
}

func TestRetrieveTruncatesSnippets(t *testing.T) {
	long := strings.Repeat("x", 5000)
	idx := &stubIndex{matches: map[string][]vectorindex.Match{
		"a": {{Filename: "a.pdf", Page: 1, Text: long}},
	}}
	svc := newTestService(idx)
	plan := []PlanEntry{{ID: "a", Priority: 90}}
	out, err := svc.retrieve(context.Background(), plan, []float32{1}, nil, ModePlan{Mode: ModeStandard}, 10)
	require.NoError(t, err)
	require.Len(t, out.Sources, 1)
	assert.Len(t, []rune(out.Sources[0].Content), 1200)
}

func TestRetrieveAppendsInlineAttachmentsUnderCap(t *testing.T) {
	idx := &stubIndex{matches: map[string][]vectorindex.Match{}}
	svc := newTestService(idx)
	inline := []model.InlineAttachment{
		{Filename: "anteckningar.txt", Text: "inklistrad text"},
		{Filename: "", Text: "   "},
	}
	out, err := svc.retrieve(context.Background(), nil, []float32{1}, inline, ModePlan{Mode: ModeStandard}, 10)
	require.NoError(t, err)
	require.Len(t, out.Sources, 1)
	src := out.Sources[0]
	assert.Equal(t, "S1", src.Ref)
	assert.True(t, src.Inline)
	assert.Equal(t, model.LibraryAttachmentInline, src.Type)
	assert.Equal(t, 100, src.LibraryPriority)
	assert.Contains(t, out.ContextBlocks[0], "BIFOGAD FIL")
}

func TestRetrieveDefaultsUnknownFilename(t *testing.T) {
	idx := &stubIndex{matches: map[string][]vectorindex.Match{
		"a": {{Filename: "", Page: 0, Text: "text"}},
	}}
	svc := newTestService(idx)
	out, err := svc.retrieve(context.Background(), []PlanEntry{{ID: "a", Priority: 90}}, []float32{1}, nil, ModePlan{}, 10)
	require.NoError(t, err)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "Okänt dokument", out.Sources[0].Filename)
}
