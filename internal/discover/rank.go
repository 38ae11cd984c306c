package discover

import (
	"sort"

	"github.com/ppiankov/glimpse/internal/model"
)

// RankOptions controls candidate ranking
type RankOptions struct {
	MaxCandidates int // <= 0 means no cap
	Weights       model.PriorityWeights
}

// Rank returns the valid links of doc ordered by descending priority.
// Ties keep document order. A URL appears once, at its best position.
// Elements whose box cannot be read are skipped.
func Rank(doc Document, opts RankOptions) []model.LinkCandidate {
	pageURL := doc.URL()
	vp := doc.Viewport()

	var candidates []model.LinkCandidate
	for i, el := range doc.Links() {
		href := el.Href()
		if !Valid(href, pageURL) {
			continue
		}

		rect, err := el.Rect()
		if err != nil {
			continue
		}

		c := model.LinkCandidate{
			URL:        href,
			Index:      i,
			Text:       el.Text(),
			Rendered:   rect.Width > 0 && rect.Height > 0,
			InViewport: intersects(rect, vp),
			SameOrigin: SameOrigin(href, pageURL),
			AboveFold:  rect.Top >= 0 && rect.Top < vp.Height/2,
		}
		c.Priority = Score(c, opts.Weights)
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})

	candidates = dedupe(candidates)

	if opts.MaxCandidates > 0 && len(candidates) > opts.MaxCandidates {
		candidates = candidates[:opts.MaxCandidates]
	}

	return candidates
}

// Score sums the weights of the flags set on c
func Score(c model.LinkCandidate, w model.PriorityWeights) int {
	score := 0
	if c.Rendered {
		score += w.Rendered
	}
	if c.InViewport {
		score += w.InViewport
	}
	if c.SameOrigin {
		score += w.SameOrigin
	}
	if c.AboveFold {
		score += w.AboveFold
	}
	return score
}

// intersects reports whether r overlaps the viewport
func intersects(r model.Rect, vp model.Viewport) bool {
	return r.Bottom() > 0 && r.Top < vp.Height && r.Right() > 0 && r.Left < vp.Width
}

// dedupe keeps the first occurrence of each URL
func dedupe(candidates []model.LinkCandidate) []model.LinkCandidate {
	seen := make(map[string]bool, len(candidates))
	unique := candidates[:0]

	for _, c := range candidates {
		if !seen[c.URL] {
			seen[c.URL] = true
			unique = append(unique, c)
		}
	}

	return unique
}
