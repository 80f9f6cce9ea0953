package rag

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"grundbank/internal/model"
	"grundbank/internal/vectorindex"
)

const (
	defaultImageK        = 4
	imagePreselectFloor  = 3
	imageOverlapTokenMin = 3
)

var imageQueryTerms = []string{"bild", "karta", "figur", "diagram", "illustration", "foto"}

// wantImages gates image retrieval: the assistant must have it on, and in
// simple mode the query must actually mention imagery.
func wantImages(suggestImages bool, mode ModePlan, query string) bool {
	if !suggestImages {
		return false
	}
	if mode.Mode != ModeSimple {
		return true
	}
	lower := strings.ToLower(query)
	for _, term := range imageQueryTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

var imageQueryTokenRe = regexp.MustCompile(`[a-zåäö0-9\-]{3,}`)

// searchImages ranks indexed images across the planned libraries: cosine
// preselect per library, then a lexical overlap score against the image's
// tags, hints, description and surrounding text, lifted by the library's
// priority. Results are deduplicated per document page and capped at k.
func (s *Service) searchImages(ctx context.Context, query string, plan []PlanEntry, queryVector []float32, k int) []model.MatchedImage {
	if k <= 0 {
		k = defaultImageK
	}
	libraryIDs := make([]string, 0, len(plan))
	priorities := make(map[string]int, len(plan))
	for _, lib := range plan {
		libraryIDs = append(libraryIDs, lib.ID)
		priorities[lib.ID] = lib.Priority
	}

	assets, err := s.images.ListByLibraryIDs(libraryIDs)
	if err != nil {
		s.logger.Warn("image lookup failed", zap.Error(err))
		return nil
	}
	if len(assets) == 0 {
		return nil
	}

	preselect := k
	if preselect < imagePreselectFloor {
		preselect = imagePreselectFloor
	}
	byLibrary := map[string][]scoredAsset{}
	for i := range assets {
		asset := &assets[i]
		sim := vectorindex.CosineSimilarity(queryVector, asset.EmbeddingVector())
		byLibrary[asset.LibraryID] = append(byLibrary[asset.LibraryID], scoredAsset{asset: asset, cosine: sim})
	}

	queryTokens := map[string]bool{}
	for _, tok := range imageQueryTokenRe.FindAllString(strings.ToLower(query), -1) {
		queryTokens[tok] = true
	}

	var candidates []scoredAsset
	for libID, group := range byLibrary {
		sort.SliceStable(group, func(i, j int) bool { return group[i].cosine > group[j].cosine })
		if len(group) > preselect {
			group = group[:preselect]
		}
		for _, cand := range group {
			cand.score = lexicalOverlap(queryTokens, cand.asset) + float64(priorities[libID])/20.0
			candidates = append(candidates, cand)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].cosine > candidates[j].cosine
	})

	seen := map[string]bool{}
	var matched []model.MatchedImage
	for _, cand := range candidates {
		if len(matched) >= k {
			break
		}
		key := cand.asset.ID
		if key == "" {
			key = fmt.Sprintf("%s::%d", cand.asset.SourceDocID, cand.asset.Page)
		}
		pageKey := fmt.Sprintf("%s::%d", cand.asset.SourceDocID, cand.asset.Page)
		if seen[key] || seen[pageKey] {
			continue
		}
		seen[key] = true
		seen[pageKey] = true
		matched = append(matched, model.MatchedImage{
			ID:             cand.asset.ID,
			Description:    cand.asset.Description,
			Tags:           cand.asset.TagList(),
			SectionHints:   cand.asset.SectionHintList(),
			ContextExcerpt: cand.asset.ContextExcerpt,
			SourceDocument: cand.asset.SourceDocument,
			Page:           cand.asset.Page,
			LibraryID:      cand.asset.LibraryID,
		})
	}
	return matched
}

type scoredAsset struct {
	asset  *model.ImageAsset
	cosine float32
	score  float64
}

// lexicalOverlap counts query tokens appearing in the asset's textual
// metadata, weighting tag hits double.
func lexicalOverlap(queryTokens map[string]bool, asset *model.ImageAsset) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	score := 0.0
	for _, tag := range asset.TagList() {
		if queryTokens[strings.ToLower(tag)] {
			score += 2
		}
	}
	haystack := strings.ToLower(strings.Join([]string{
		asset.Description,
		strings.Join(asset.SectionHintList(), " "),
		asset.ContextExcerpt,
	}, " "))
	for tok := range queryTokens {
		if len(tok) < imageOverlapTokenMin {
			continue
		}
		if strings.Contains(haystack, tok) {
			score++
		}
	}
	return score
}
