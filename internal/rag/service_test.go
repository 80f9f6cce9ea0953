package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"grundbank/internal/ai"
	"grundbank/internal/config"
	"grundbank/internal/embedding"
	"grundbank/internal/model"
	"grundbank/internal/vectorindex"
)

type fakeChatClient struct {
	models    []string
	responses []string
	errs      []error
}

func (f *fakeChatClient) Complete(_ context.Context, _ ai.ChatConfig, _ []ai.ChatMessage, opts ai.CompleteOptions) (string, error) {
	i := len(f.models)
	f.models = append(f.models, opts.Model)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	resp := ""
	if i < len(f.responses) {
		resp = f.responses[i]
	} else if len(f.responses) > 0 {
		resp = f.responses[len(f.responses)-1]
	}
	return resp, err
}

type fakeAssistantStore struct {
	assistant *model.Assistant
	bindings  []model.AssistantLibrary
}

func (f *fakeAssistantStore) GetByID(string) (*model.Assistant, error) { return f.assistant, nil }
func (f *fakeAssistantStore) ListBindings(string) ([]model.AssistantLibrary, error) {
	return f.bindings, nil
}

type fakeLibraryStore struct{ libs []model.Library }

func (f *fakeLibraryStore) ListByIDs([]string) ([]model.Library, error) { return f.libs, nil }

type fakeDocumentStore struct{ docs []model.Document }

func (f *fakeDocumentStore) ListByLibraryID(string) ([]model.Document, error) { return f.docs, nil }

type fakeConversationStore struct {
	conv    *model.Conversation
	creates int
	saves   int
}

func (f *fakeConversationStore) Create(*model.Conversation) error { f.creates++; return nil }
func (f *fakeConversationStore) GetByIDAndUserID(string, string) (*model.Conversation, error) {
	return f.conv, nil
}
func (f *fakeConversationStore) Save(*model.Conversation) error { f.saves++; return nil }

type fakeImageStore struct{}

func (fakeImageStore) ListByLibraryIDs([]string) ([]model.ImageAsset, error) { return nil, nil }

func testLLM() config.LLMConfig {
	return config.LLMConfig{
		DefaultModel:   "stor-modell",
		FallbackModel:  "reserv-modell",
		AllowedModels:  "stor-modell,reserv-modell,snabb-haiku",
		DefaultPersona: "Du är en saklig dokumentassistent.",
	}
}

func newAskTestService(idx vectorindex.Index, client *fakeChatClient, convs *fakeConversationStore, docs *fakeDocumentStore) *Service {
	return &Service{
		assistants: &fakeAssistantStore{
			assistant: &model.Assistant{ID: "asst-1", Persona: "Persona."},
			bindings:  []model.AssistantLibrary{{AssistantID: "asst-1", LibraryID: "lib-1"}},
		},
		libraries: &fakeLibraryStore{libs: []model.Library{
			{ID: "lib-1", Name: "Underlag", Type: model.LibraryInput, Priority: 90},
		}},
		documents:     docs,
		conversations: convs,
		images:        fakeImageStore{},
		index:         idx,
		embedder:      embedding.NewHashProvider(16),
		client:        client,
		llmCfg:        testLLM(),
		logger:        zap.NewNop(),
	}
}

func TestAskNoSourcesSkipsModelAndPersistence(t *testing.T) {
	client := &fakeChatClient{responses: []string{"ska inte anropas"}}
	convs := &fakeConversationStore{}
	svc := newAskTestService(&stubIndex{}, client, convs, &fakeDocumentStore{})

	result, err := svc.Ask(context.Background(), AskRequest{
		UserID:       "user-1",
		AssistantID:  "asst-1",
		Query:        "Sammanfatta bullerutredningen",
		ResponseMode: "standard",
	})
	require.NoError(t, err)
	assert.Equal(t, NoSourcesAnswer, result.Answer)
	assert.Empty(t, result.ConversationID)
	assert.Empty(t, client.models)
	assert.Zero(t, convs.creates)
	assert.Zero(t, convs.saves)
}

func TestAskWithSourcesRunsPipeline(t *testing.T) {
	idx := &stubIndex{matches: map[string][]vectorindex.Match{"lib-1": nMatches(2, "plan.pdf")}}
	client := &fakeChatClient{responses: []string{
		"Utkast med stöd [S1].",
		"Svar med stöd [S1].",
	}}
	convs := &fakeConversationStore{}
	svc := newAskTestService(idx, client, convs, &fakeDocumentStore{})

	result, err := svc.Ask(context.Background(), AskRequest{
		UserID:        "user-1",
		AssistantID:   "asst-1",
		Query:         "Sammanfatta bullerutredningen",
		ResponseMode:  "standard",
		ShowCitations: true,
	})
	require.NoError(t, err)
	// One generation call, one verification call.
	assert.Len(t, client.models, 2)
	assert.Equal(t, "Svar med stöd [S1].", result.Answer)
	assert.Equal(t, 1, result.Citations)
	assert.Equal(t, 1, convs.creates)
	assert.Equal(t, 1, convs.saves)
	assert.NotEmpty(t, result.ConversationID)
}

func TestAskPendingAttachmentsBlockOnlyWithoutInlineTexts(t *testing.T) {
	pendingDocs := &fakeDocumentStore{docs: []model.Document{{ID: "d1", Status: model.DocumentProcessing}}}

	blockedConv := &model.Conversation{ID: "conv-1", UserID: "user-1", AttachmentLibraryID: "att-1"}
	idx := &stubIndex{matches: map[string][]vectorindex.Match{"lib-1": nMatches(1, "plan.pdf")}}
	client := &fakeChatClient{responses: []string{"Svar [S1]."}}
	svc := newAskTestService(idx, client, &fakeConversationStore{conv: blockedConv}, pendingDocs)

	result, err := svc.Ask(context.Background(), AskRequest{
		UserID:         "user-1",
		AssistantID:    "asst-1",
		ConversationID: "conv-1",
		Query:          "Sammanfatta bullerutredningen",
		ResponseMode:   "standard",
	})
	require.NoError(t, err)
	assert.Equal(t, AttachmentPendingAnswer, result.Answer)
	assert.Equal(t, "blocked", result.Mode)
	assert.Empty(t, client.models)

	// Inline texts let the turn proceed while ingestion is still running.
	inlineConv := &model.Conversation{ID: "conv-2", UserID: "user-1", AttachmentLibraryID: "att-1"}
	inlineConv.SetInlineAttachments([]model.InlineAttachment{{Filename: "notat.txt", Text: "Bullernivån är 55 dBA."}})
	client = &fakeChatClient{responses: []string{"Svar [S1]."}}
	svc = newAskTestService(idx, client, &fakeConversationStore{conv: inlineConv}, pendingDocs)

	result, err = svc.Ask(context.Background(), AskRequest{
		UserID:         "user-1",
		AssistantID:    "asst-1",
		ConversationID: "conv-2",
		Query:          "Sammanfatta bullerutredningen",
		ResponseMode:   "standard",
		ShowCitations:  true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, AttachmentPendingAnswer, result.Answer)
	assert.NotEmpty(t, client.models)
}

func TestInvokeWithFallbackRetriesExactlyOnce(t *testing.T) {
	client := &fakeChatClient{
		responses: []string{"", "svar från reserven"},
		errs:      []error{errors.New("överbelastad"), nil},
	}
	svc := &Service{client: client, llmCfg: testLLM(), logger: zap.NewNop()}
	mc := ModelChoice{Primary: "stor-modell", Fallback: "reserv-modell"}

	out, err := svc.invokeWithFallback(context.Background(), "system", "user", 100, mc)
	require.NoError(t, err)
	assert.Equal(t, "svar från reserven", out)
	assert.Equal(t, []string{"stor-modell", "reserv-modell"}, client.models)
}

func TestInvokeWithFallbackFailsAfterBothModels(t *testing.T) {
	client := &fakeChatClient{
		errs: []error{errors.New("nere"), errors.New("också nere")},
	}
	svc := &Service{client: client, llmCfg: testLLM(), logger: zap.NewNop()}
	mc := ModelChoice{Primary: "stor-modell", Fallback: "reserv-modell"}

	_, err := svc.invokeWithFallback(context.Background(), "system", "user", 100, mc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stor-modell")
	assert.Contains(t, err.Error(), "reserv-modell")
	// Exactly one retry: two calls in total.
	assert.Len(t, client.models, 2)
}

func TestInvokeWithFallbackNoRetryOnSuccess(t *testing.T) {
	client := &fakeChatClient{responses: []string{"direkt svar"}}
	svc := &Service{client: client, llmCfg: testLLM(), logger: zap.NewNop()}

	out, err := svc.invokeWithFallback(context.Background(), "system", "user", 100,
		ModelChoice{Primary: "stor-modell", Fallback: "reserv-modell"})
	require.NoError(t, err)
	assert.Equal(t, "direkt svar", out)
	assert.Equal(t, []string{"stor-modell"}, client.models)
}

func TestScrubBestEffortPassThroughWhenUnconfigured(t *testing.T) {
	svc := &Service{logger: zap.NewNop()}
	assert.Equal(t, "Anna Karlsson bor här.", svc.scrubBestEffort(context.Background(), "Anna Karlsson bor här."))
}
