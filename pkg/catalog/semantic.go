package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

// EmbeddingProvider generates vector embeddings from text.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// OpenAIEmbedder implements EmbeddingProvider against the OpenAI
// embeddings endpoint.
type OpenAIEmbedder struct {
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewOpenAIEmbedder creates an embedder for the given model.
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	dimension := 1536
	if model == "text-embedding-3-large" {
		dimension = 3072
	}
	return &OpenAIEmbedder{
		apiKey:    apiKey,
		model:     model,
		dimension: dimension,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (e *OpenAIEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": e.model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call embeddings API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	embeddings := make([][]float32, len(result.Data))
	for i, data := range result.Data {
		embeddings[i] = data.Embedding
	}
	return embeddings, nil
}

// HashEmbedder is a deterministic offline EmbeddingProvider. It hashes
// word trigrams into a fixed-size vector and normalizes it, so similar
// text lands near itself without any network call. Meant for development
// and tests, not for real relevance.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hash-based embedder with the given dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{dimension: dimension}
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimension)
	lower := strings.ToLower(text)
	for i := 0; i+3 <= len(lower); i++ {
		h := fnv.New32a()
		h.Write([]byte(lower[i : i+3]))
		vec[h.Sum32()%uint32(e.dimension)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func (e *HashEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.GenerateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// EnableSemanticSearch creates the vector tables and indexes every artist
// bio and venue description. Call after seeding; re-indexing replaces
// existing vectors.
func (s *Store) EnableSemanticSearch(ctx context.Context, provider EmbeddingProvider) error {
	if provider == nil {
		return fmt.Errorf("embedding provider is nil")
	}

	dimension := provider.Dimension()
	vectorSchema := fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS artist_embeddings USING vec0(
			artist_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
		CREATE VIRTUAL TABLE IF NOT EXISTS venue_embeddings USING vec0(
			venue_id TEXT PRIMARY KEY,
			embedding float[%d] distance_metric=cosine
		);
	`, dimension, dimension)
	if _, err := s.db.Exec(vectorSchema); err != nil {
		return fmt.Errorf("failed to create vector tables: %w", err)
	}

	artists, err := s.SearchArtists(ctx, ArtistQuery{Limit: 1000})
	if err != nil {
		return err
	}
	for _, a := range artists {
		text := a.Name + ". " + a.Bio
		embedding, err := provider.GenerateEmbedding(ctx, text)
		if err != nil {
			return fmt.Errorf("failed to embed artist %s: %w", a.ID, err)
		}
		if err := s.storeEmbedding("artist_embeddings", "artist_id", a.ID, embedding); err != nil {
			return err
		}
	}

	venues, err := s.SearchVenues(ctx, VenueQuery{Limit: 1000})
	if err != nil {
		return err
	}
	for _, v := range venues {
		text := v.Name + ". " + v.Description
		embedding, err := provider.GenerateEmbedding(ctx, text)
		if err != nil {
			return fmt.Errorf("failed to embed venue %s: %w", v.ID, err)
		}
		if err := s.storeEmbedding("venue_embeddings", "venue_id", v.ID, embedding); err != nil {
			return err
		}
	}

	s.embedder = provider
	s.logger.Info().
		Int("artists", len(artists)).
		Int("venues", len(venues)).
		Msg("semantic search enabled")
	return nil
}

func (s *Store) storeEmbedding(table, idColumn, id string, embedding []float32) error {
	blob, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s, embedding) VALUES (?, ?)", table, idColumn)
	if _, err := s.db.Exec(query, id, string(blob)); err != nil {
		return fmt.Errorf("failed to store embedding for %s: %w", id, err)
	}
	return nil
}

// SemanticMatch pairs a catalog entity ID with its similarity to a query.
type SemanticMatch struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// SemanticSearchArtists ranks artists by similarity to a free-text query.
// Returns an error when semantic search was never enabled.
func (s *Store) SemanticSearchArtists(ctx context.Context, query string, limit int) ([]SemanticMatch, error) {
	return s.semanticSearch(ctx, "artist_embeddings", "artist_id", query, limit)
}

// SemanticSearchVenues ranks venues by similarity to a free-text query.
func (s *Store) SemanticSearchVenues(ctx context.Context, query string, limit int) ([]SemanticMatch, error) {
	return s.semanticSearch(ctx, "venue_embeddings", "venue_id", query, limit)
}

func (s *Store) semanticSearch(ctx context.Context, table, idColumn, query string, limit int) ([]SemanticMatch, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("semantic search not enabled")
	}
	if limit <= 0 {
		limit = 10
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding: %w", err)
	}

	sqlQuery := fmt.Sprintf(`
		SELECT %s, vec_distance_cosine(embedding, ?) as distance
		FROM %s
		ORDER BY distance ASC
		LIMIT ?`, idColumn, table)

	rows, err := s.db.QueryContext(ctx, sqlQuery, string(embeddingJSON), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer rows.Close()

	matches := []SemanticMatch{}
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, err
		}
		matches = append(matches, SemanticMatch{ID: id, Similarity: 1.0 - distance})
	}
	return matches, rows.Err()
}
