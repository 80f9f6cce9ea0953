package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"grundbank/internal/model"
)

// PrioritySource records where a library's effective priority came from.
type PrioritySource string

const (
	PriorityFromLibrary   PrioritySource = "library_default"
	PriorityFromAssistant PrioritySource = "assistant_override"
)

// PlanEntry is one library's slot in the retrieval plan.
type PlanEntry struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Type            model.LibraryType `json:"type"`
	Scrub           bool              `json:"scrub"`
	Priority        int               `json:"priority"`
	PrioritySource  PrioritySource    `json:"priority_source"`
	DefaultPriority int               `json:"library_default_priority"`
}

// Source is the ephemeral per-request retrieval record. Ref values are
// "S1".."Sn" in insertion order and together form the citation allow-list
// for the request.
type Source struct {
	Ref             string            `json:"source_ref"`
	Content         string            `json:"content"`
	Type            model.LibraryType `json:"type"`
	Filename        string            `json:"filename"`
	Page            int               `json:"page"`
	DocID           string            `json:"doc_id,omitempty"`
	LibraryID       string            `json:"library_id,omitempty"`
	LibraryName     string            `json:"library_name,omitempty"`
	LibraryPriority int               `json:"library_priority"`
	PrioritySource  PrioritySource    `json:"library_priority_source,omitempty"`
	Inline          bool              `json:"inline,omitempty"`
}

// BuildPlan resolves effective priorities (assistant override beats library
// default) and orders libraries by priority with a type bias breaking ties
// in favor of attachments and explicit inputs.
func BuildPlan(libraries []model.Library, overrides map[string]int) []PlanEntry {
	plan := make([]PlanEntry, 0, len(libraries))
	for _, lib := range libraries {
		defaultPriority := model.ClampPriority(lib.Priority)
		entry := PlanEntry{
			ID:              lib.ID,
			Name:            lib.Name,
			Type:            lib.Type,
			Scrub:           lib.ScrubEnabled,
			Priority:        defaultPriority,
			PrioritySource:  PriorityFromLibrary,
			DefaultPriority: defaultPriority,
		}
		if override, ok := overrides[lib.ID]; ok {
			entry.Priority = model.ClampPriority(override)
			entry.PrioritySource = PriorityFromAssistant
		}
		plan = append(plan, entry)
	}
	sort.SliceStable(plan, func(i, j int) bool {
		if plan[i].Priority != plan[j].Priority {
			return plan[i].Priority > plan[j].Priority
		}
		return plan[i].Type.TypeBias() > plan[j].Type.TypeBias()
	})
	return plan
}

// Retrieval is the planner's output: the prompt context blocks plus the
// allow-list-bearing source records.
type Retrieval struct {
	ContextBlocks []string
	Sources       []Source
}

// ContextText joins the context blocks for the system prompt.
func (r *Retrieval) ContextText() string {
	return strings.Join(r.ContextBlocks, "\n\n---\n\n")
}

// AllowList returns the request's citation allow-list in insertion order.
func (r *Retrieval) AllowList() []string {
	refs := make([]string, len(r.Sources))
	for i := range r.Sources {
		refs[i] = r.Sources[i].Ref
	}
	return refs
}

// retrieve queries each planned library with the shared query vector,
// stopping as soon as the global source cap is reached. Inline attachment
// texts are appended last, under the same cap.
func (s *Service) retrieve(
	ctx context.Context,
	plan []PlanEntry,
	queryVector []float32,
	inline []model.InlineAttachment,
	mode ModePlan,
	baseK int,
) (*Retrieval, error) {
	sourceCap := MaxTotalSources(baseK)
	out := &Retrieval{}

	for _, lib := range plan {
		remaining := sourceCap - len(out.Sources)
		if remaining <= 0 {
			break
		}
		k := KForPriority(lib.Priority, baseK)
		if k > remaining {
			k = remaining
		}

		matches, err := s.index.Nearest(ctx, lib.ID, queryVector, k)
		if err != nil {
			s.logger.Warn("library search failed",
				zap.String("library_id", lib.ID), zap.Error(err))
			continue
		}
		s.logger.Debug("library searched",
			zap.String("library_id", lib.ID),
			zap.Int("priority", lib.Priority),
			zap.Int("k", k),
			zap.Int("matches", len(matches)))

		for _, match := range matches {
			text := truncateRunes(match.Text, mode.MaxSnippetLen())
			if lib.Scrub {
				text = s.scrubBestEffort(ctx, text)
			}
			filename := match.Filename
			if filename == "" {
				filename = "Okänt dokument"
			}

			ref := fmt.Sprintf("S%d", len(out.Sources)+1)
			label := fmt.Sprintf("[%s] %s (prio %d) / %s", lib.Type, lib.Name, lib.Priority, filename)
			out.ContextBlocks = append(out.ContextBlocks,
				fmt.Sprintf("KÄLLA %s (%s):\n%s", ref, label, text))
			out.Sources = append(out.Sources, Source{
				Ref:             ref,
				Content:         text,
				Type:            lib.Type,
				Filename:        filename,
				Page:            match.Page,
				DocID:           match.DocID,
				LibraryID:       lib.ID,
				LibraryName:     lib.Name,
				LibraryPriority: lib.Priority,
				PrioritySource:  lib.PrioritySource,
			})
			if len(out.Sources) >= sourceCap {
				break
			}
		}
	}

	for _, item := range inline {
		if len(out.Sources) >= sourceCap {
			break
		}
		if strings.TrimSpace(item.Text) == "" {
			continue
		}
		filename := item.Filename
		if filename == "" {
			filename = "Bifogad fil"
		}
		text := truncateRunes(item.Text, mode.MaxSnippetLen())
		text = s.scrubBestEffort(ctx, text)

		ref := fmt.Sprintf("S%d", len(out.Sources)+1)
		out.ContextBlocks = append(out.ContextBlocks,
			fmt.Sprintf("KÄLLA %s ([BIFOGAD FIL] %s):\n%s", ref, filename, text))
		out.Sources = append(out.Sources, Source{
			Ref:             ref,
			Content:         text,
			Type:            model.LibraryAttachmentInline,
			Filename:        filename,
			LibraryName:     "Konversationsbilaga",
			LibraryPriority: 100,
			Inline:          true,
		})
	}

	return out, nil
}

// scrubBestEffort scrubs person names from text on the non-fatal chat
// path: queries, answers and text from scrub-flagged libraries. The call
// never fails the request; on scrub trouble the text passes through
// unscrubbed and the incident is logged.
func (s *Service) scrubBestEffort(ctx context.Context, text string) string {
	if s.scrubber == nil || !s.scrubber.IsConfigured() {
		return text
	}
	scrubbed, _, _, err := s.scrubber.ScrubPersonNames(ctx, text, nil)
	if err != nil {
		s.logger.Warn("best-effort scrub failed", zap.Error(err))
		return text
	}
	return scrubbed
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
