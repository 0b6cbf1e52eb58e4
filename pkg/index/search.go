package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
)

// Query is a semantic search request.
type Query struct {
	Text  string
	TopK  int
	Grade string // exact education level, empty for any
}

// Hit is one search result. Score is the reranked score, VectorScore the
// raw cosine similarity that admitted the record as a candidate.
type Hit struct {
	ID          string         `json:"_id"`
	Score       float64        `json:"score"`
	VectorScore float64        `json:"vector_score"`
	Content     string         `json:"content"`
	Metadata    map[string]any `json:"metadata"`
}

type candidate struct {
	hit     Hit
	content string
}

// Search finds leaf records similar to q.Text. Cosine KNN selects
// CandidateFactor*TopK candidates which a lexical reranker over content
// then orders and truncates to TopK.
func (ix *Index) Search(ctx context.Context, q Query) ([]Hit, error) {
	start := time.Now()
	hits, err := ix.search(ctx, q)
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case len(hits) == 0:
		status = "empty"
	}
	ix.metrics.RecordSearch(status, len(hits), time.Since(start))
	return hits, err
}

func (ix *Index) search(ctx context.Context, q Query) ([]Hit, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("index: empty query")
	}
	if q.TopK <= 0 {
		q.TopK = 5
	}
	if err := ix.requireInit(ctx); err != nil {
		return nil, err
	}

	embs, err := ix.embedder.Embed(ctx, []string{q.Text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embs) == 0 {
		return nil, fmt.Errorf("embed query: no embedding returned")
	}
	queryEmb := embs[0]

	sqlText := `SELECT id, content, metadata, embedding FROM records
		WHERE namespace = ? AND is_leaf = 1 AND model = ? AND embedding IS NOT NULL`
	args := []any{ix.namespace, ix.model}
	if q.Grade != "" {
		sqlText += ` AND EXISTS (SELECT 1 FROM json_each(records.levels) WHERE json_each.value = ?)`
		args = append(args, q.Grade)
	}

	rows, err := ix.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cands []candidate
	for rows.Next() {
		var id, content, raw string
		var blob []byte
		if err := rows.Scan(&id, &content, &raw, &blob); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		score := cosineSimilarity(queryEmb, blobToEmbedding(blob))
		if score < ix.threshold {
			continue
		}
		var md map[string]any
		if err := json.Unmarshal([]byte(raw), &md); err != nil {
			ix.log.Warn("Skipping record with unreadable metadata").Str("id", id).Err(err).Send()
			continue
		}
		cands = append(cands, candidate{
			hit:     Hit{ID: id, VectorScore: score, Content: content, Metadata: md},
			content: content,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].hit.VectorScore != cands[j].hit.VectorScore {
			return cands[i].hit.VectorScore > cands[j].hit.VectorScore
		}
		return cands[i].hit.ID < cands[j].hit.ID
	})
	if limit := q.TopK * ix.candidateFactor; len(cands) > limit {
		cands = cands[:limit]
	}

	hits := rerank(q.Text, cands)
	if len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}
	ix.log.Debug("Search completed").
		Str("grade", q.Grade).
		Int("candidates", len(cands)).
		Int("results", len(hits)).
		Send()
	return hits, nil
}

// rerank blends the vector score with term coverage of the candidate's content.
func rerank(query string, cands []candidate) []Hit {
	terms := queryTerms(query)
	hits := make([]Hit, len(cands))
	for i, c := range cands {
		h := c.hit
		h.Score = 0.5*h.VectorScore + 0.5*lexicalScore(c.content, terms)
		hits[i] = h
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits
}

// lexicalScore is the mean saturated term frequency of terms in content, in [0, 1).
func lexicalScore(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	freq := make(map[string]int)
	for _, w := range tokenize(content) {
		freq[w]++
	}
	var sum float64
	for _, t := range terms {
		tf := float64(freq[t])
		sum += tf / (tf + 0.5)
	}
	return sum / float64(len(terms))
}

func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range tokenize(query) {
		if len(w) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
