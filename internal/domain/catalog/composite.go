package catalog

import "strings"

// CompositeText builds the single text blob both indices are fitted over:
// title twice (weighting it in both the embedding and the TF-IDF counts),
// then alternate titles, tags, and the description. Missing fields collapse
// to empty strings. The same function must produce row i for entry i in
// every index; it is never re-run at query time.
func CompositeText(e Entry) string {
	parts := []string{
		e.Title,
		e.Title,
		strings.Join(e.AltTitles, " "),
		strings.Join(e.Tags, " "),
		e.Description,
	}
	return strings.Join(parts, " ")
}

// CompositeTexts maps CompositeText over a snapshot, preserving positions.
func CompositeTexts(entries []Entry) []string {
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = CompositeText(e)
	}
	return texts
}

// NormalizeQuery is the query-side counterpart: lowercase and trim only.
// Queries are not composite — they pass through the embedder and the TF-IDF
// projection as-is.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
