package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"grundbank/internal/model"
)

func TestReplaceFirstMatchingBlock(t *testing.T) {
	full := "Inledning.\n\nStycket som ska bort.\n\nAvslutning."
	out, err := replaceFirstMatchingBlock(full, "Stycket som ska bort.", "Nytt stycke.")
	require.NoError(t, err)
	assert.Equal(t, "Inledning.\n\nNytt stycke.\n\nAvslutning.", out)
}

func TestReplaceFirstMatchingBlockTriesMarkdownPrefixes(t *testing.T) {
	full := "## Bakgrund\n\n- Första punkten\n- Andra punkten"
	out, err := replaceFirstMatchingBlock(full, "Första punkten", "- Ny punkt")
	require.NoError(t, err)
	assert.Equal(t, "## Bakgrund\n\n- Ny punkt\n- Andra punkten", out)

	out, err = replaceFirstMatchingBlock(full, "Bakgrund", "## Historik")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "## Historik"))
}

func TestReplaceFirstMatchingBlockOnlyFirstOccurrence(t *testing.T) {
	full := "upprepning\nupprepning"
	out, err := replaceFirstMatchingBlock(full, "upprepning", "ersatt")
	require.NoError(t, err)
	assert.Equal(t, "ersatt\nupprepning", out)
}

func TestReplaceFirstMatchingBlockNotFound(t *testing.T) {
	_, err := replaceFirstMatchingBlock("text", "finns inte", "x")
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestLatestSourceSupport(t *testing.T) {
	messages := []model.ConversationMessage{
		{Role: model.RoleUser, Content: "fråga"},
		{Role: model.RoleAI, Content: "gammalt svar", Sources: []model.SavedSource{
			{SourceRef: "S1", Filename: "gammal.pdf", Page: 1, Content: "gammalt innehåll"},
		}},
		{Role: model.RoleUser, Content: "följdfråga"},
		{Role: model.RoleAI, Content: "nytt svar", Sources: []model.SavedSource{
			{SourceRef: "S1", Filename: "plan.pdf", Page: 4, Content: "planbeskrivning"},
			{SourceRef: "S2", Filename: "utredning.pdf", Page: 2, Content: "bullervärden"},
		}},
	}
	support := latestSourceSupport(messages)
	assert.Contains(t, support, "S1 (plan.pdf, sida 4): planbeskrivning")
	assert.Contains(t, support, "S2 (utredning.pdf, sida 2): bullervärden")
	assert.NotContains(t, support, "gammal.pdf")
}

func TestLatestSourceSupportSkipsSourcelessMessages(t *testing.T) {
	messages := []model.ConversationMessage{
		{Role: model.RoleAI, Content: "svar", Sources: []model.SavedSource{
			{SourceRef: "S1", Filename: "a.pdf", Page: 1, Content: "innehåll"},
		}},
		{Role: model.RoleAI, Content: "svar utan källor"},
	}
	assert.Contains(t, latestSourceSupport(messages), "a.pdf")

	assert.Empty(t, latestSourceSupport(nil))
	assert.Empty(t, latestSourceSupport([]model.ConversationMessage{{Role: model.RoleUser, Content: "hej"}}))
}

func TestLatestSourceSupportCaps(t *testing.T) {
	var sources []model.SavedSource
	for i := 0; i < maxEditSupportSources+5; i++ {
		sources = append(sources, model.SavedSource{SourceRef: "S1", Filename: "f.pdf", Content: "x"})
	}
	support := latestSourceSupport([]model.ConversationMessage{{Role: model.RoleAI, Sources: sources}})
	assert.Len(t, strings.Split(support, "\n"), maxEditSupportSources)
}

func TestLatestSourceRefs(t *testing.T) {
	messages := []model.ConversationMessage{
		{Role: model.RoleAI, Sources: []model.SavedSource{
			{SourceRef: "S1"}, {SourceRef: "s2"}, {SourceRef: "S1"},
		}},
	}
	assert.Equal(t, []string{"S1", "S2"}, latestSourceRefs(messages))
	assert.Nil(t, latestSourceRefs(nil))
}

func newEditTestService(client *fakeChatClient, convs *fakeConversationStore) *Service {
	return &Service{
		assistants:    &fakeAssistantStore{assistant: &model.Assistant{ID: "asst-1", Persona: "Persona."}},
		conversations: convs,
		client:        client,
		llmCfg:        testLLM(),
		logger:        zap.NewNop(),
	}
}

func TestEditBlockFiltersCitationsAgainstSavedSources(t *testing.T) {
	conv := &model.Conversation{ID: "conv-1", UserID: "user-1"}
	conv.SetMessageList([]model.ConversationMessage{
		{Role: model.RoleAI, Content: "Dokument.", Sources: []model.SavedSource{
			{SourceRef: "S1", Filename: "plan.pdf", Page: 1, Content: "stöd"},
		}},
	})
	client := &fakeChatClient{responses: []string{"Nytt block med stöd [S1] och påhitt [S9]."}}
	convs := &fakeConversationStore{conv: conv}
	svc := newEditTestService(client, convs)

	result, err := svc.EditBlock(context.Background(), EditRequest{
		UserID:         "user-1",
		AssistantID:    "asst-1",
		ConversationID: "conv-1",
		FullText:       "Inledning.\n\nGammalt block.\n\nSlut.",
		BlockText:      "Gammalt block.",
		Comment:        "Uppdatera med källstöd.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Nytt block med stöd [S1] och påhitt.", result.UpdatedBlock)
	assert.Contains(t, result.UpdatedText, "[S1]")
	assert.NotContains(t, result.UpdatedText, "[S9]")
	assert.Equal(t, 1, convs.saves)
}

func TestEditBlockEmptyModelOutputKeepsBlock(t *testing.T) {
	client := &fakeChatClient{responses: []string{"   "}}
	svc := newEditTestService(client, &fakeConversationStore{})

	full := "Inledning.\n\nGammalt block.\n\nSlut."
	result, err := svc.EditBlock(context.Background(), EditRequest{
		UserID:      "user-1",
		AssistantID: "asst-1",
		FullText:    full,
		BlockText:   "Gammalt block.",
		Comment:     "Skriv om.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Gammalt block.", result.UpdatedBlock)
	assert.Equal(t, full, result.UpdatedText)
}

func TestMakeTitle(t *testing.T) {
	assert.Equal(t, "Kort fråga", makeTitle("  Kort fråga  "))

	long := strings.Repeat("å", maxTitleRunes+10)
	title := makeTitle(long)
	assert.Len(t, []rune(title), maxTitleRunes+3)
	assert.True(t, strings.HasSuffix(title, "..."))
}
