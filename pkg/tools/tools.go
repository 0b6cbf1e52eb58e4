// ABOUTME: Tool-response layer shared by the gRPC, MCP and CLI front ends
// ABOUTME: Validates tool input and maps index outcomes to tagged responses

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nainya/standardstore/internal/logger"
	"github.com/nainya/standardstore/pkg/index"
)

// ErrorType tags a failed Response.
type ErrorType string

const (
	InvalidInput ErrorType = "invalid_input"
	NoResults    ErrorType = "no_results"
	NotFound     ErrorType = "not_found"
	APIError     ErrorType = "api_error"
)

// Response is the envelope every tool returns. ErrorType is set only on failure.
type Response struct {
	Success   bool             `json:"success"`
	Results   []map[string]any `json:"results"`
	Message   string           `json:"message"`
	ErrorType ErrorType        `json:"error_type,omitempty"`
}

// JSON encodes the response, indented for tool consumers.
func (r Response) JSON() string {
	if r.Results == nil {
		r.Results = []map[string]any{}
	}
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success": false, "results": [], "message": %q, "error_type": %q}`, err.Error(), APIError)
	}
	return string(out)
}

func failure(t ErrorType, msg string) Response {
	return Response{Results: []map[string]any{}, Message: msg, ErrorType: t}
}

// Index is what the tools need from the vector index.
type Index interface {
	Search(ctx context.Context, q index.Query) ([]index.Hit, error)
	Fetch(ctx context.Context, id string) (map[string]any, error)
}

// Grades accepted by the grade filter.
var Grades = []string{"K", "01", "02", "03", "04", "05", "06", "07", "08", "09", "10", "11", "12", "09-12"}

// ValidGrade reports whether g is an accepted grade code.
func ValidGrade(g string) bool {
	for _, v := range Grades {
		if g == v {
			return true
		}
	}
	return false
}

// Defaults bounds the result count.
type Defaults struct {
	Results    int
	MaxResults int
}

// Service implements the tools over an index.
type Service struct {
	index    Index
	defaults Defaults
	log      *logger.Logger
}

// NewService returns a tool service. Zero defaults become 5 and 20.
func NewService(ix Index, d Defaults, log *logger.Logger) *Service {
	if d.MaxResults <= 0 {
		d.MaxResults = 20
	}
	if d.Results <= 0 || d.Results > d.MaxResults {
		d.Results = min(5, d.MaxResults)
	}
	return &Service{index: ix, defaults: d, log: logger.OrNop(log)}
}

// ClampResults applies the default to n <= 0 and caps n at the maximum.
func (s *Service) ClampResults(n int) int {
	if n <= 0 {
		return s.defaults.Results
	}
	return min(n, s.defaults.MaxResults)
}

// FindRelevantStandards searches leaf standards relevant to a learning activity.
func (s *Service) FindRelevantStandards(ctx context.Context, activity string, maxResults int, grade string) Response {
	log := s.log.ToolLogger("find_relevant_standards")
	activity = strings.TrimSpace(activity)
	if activity == "" {
		return failure(InvalidInput, "Activity description cannot be empty")
	}
	grade = strings.TrimSpace(grade)
	if grade != "" && !ValidGrade(grade) {
		return failure(InvalidInput, fmt.Sprintf("Invalid grade %q; use one of %s", grade, strings.Join(Grades, ", ")))
	}

	hits, err := s.index.Search(ctx, index.Query{Text: activity, TopK: s.ClampResults(maxResults), Grade: grade})
	if err != nil {
		log.Error("Search failed").Err(err).Send()
		return failure(APIError, fmt.Sprintf("Index error: %v", err))
	}
	if len(hits) == 0 {
		return failure(NoResults, "No matching standards found")
	}

	results := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, searchResult(h))
	}
	log.Debug("Search served").Int("results", len(results)).Str("grade", grade).Send()
	return Response{
		Success: true,
		Results: results,
		Message: fmt.Sprintf("Found %d matching standards", len(results)),
	}
}

func searchResult(h index.Hit) map[string]any {
	out := map[string]any{
		"_id":                h.ID,
		"content":            h.Content,
		"score":              h.Score,
		"subject":            h.Metadata["subject"],
		"education_levels":   h.Metadata["education_levels"],
		"standard_set_title": h.Metadata["standard_set_title"],
	}
	if out["education_levels"] == nil {
		out["education_levels"] = []any{}
	}
	if n, ok := h.Metadata["statement_notation"]; ok {
		out["statement_notation"] = n
	}
	return out
}

// GetStandardDetails looks up one standard by its exact id.
func (s *Service) GetStandardDetails(ctx context.Context, id string) Response {
	log := s.log.ToolLogger("get_standard_details")
	id = strings.TrimSpace(id)
	if id == "" {
		return failure(InvalidInput, "Standard ID cannot be empty")
	}

	md, err := s.index.Fetch(ctx, id)
	if errors.Is(err, index.ErrNotFound) {
		return failure(NotFound, fmt.Sprintf(
			"Standard with GUID '%s' not found. This tool only accepts GUIDs (e.g., 'EA60C8D165F6481B90BFF782CE193F93'). "+
				"For statement notations or other identifiers, use find_relevant_standards with a keyword search instead.", id))
	}
	if err != nil {
		log.Error("Lookup failed").Str("id", id).Err(err).Send()
		return failure(APIError, fmt.Sprintf("Index error: %v", err))
	}

	if _, ok := md["_id"]; !ok {
		md["_id"] = id
	}
	return Response{
		Success: true,
		Results: []map[string]any{md},
		Message: "Retrieved standard details",
	}
}
