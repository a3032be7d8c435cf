package types

// GroundingSource is a citation returned alongside search-grounded generated
// text.
type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// DedupeSources removes duplicate grounding sources by URI, preserving the
// order of first appearance. The first occurrence's title is retained.
// Sources with an empty URI are dropped.
func DedupeSources(sources []GroundingSource) []GroundingSource {
	seen := make(map[string]struct{}, len(sources))
	result := make([]GroundingSource, 0, len(sources))

	for _, src := range sources {
		if src.URI == "" {
			continue
		}
		if _, ok := seen[src.URI]; ok {
			continue
		}
		seen[src.URI] = struct{}{}
		result = append(result, src)
	}

	return result
}
