// Package vector exposes embedding similarity search over the corpus.
package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"toolbench/internal/corpus"
	"toolbench/internal/tools"
)

// DefaultTopK is the number of results returned when no limit is given.
const DefaultTopK = 10

// MaxTopK bounds the limit argument.
const MaxTopK = 50

// Tools implements semantic_search and get_item.
type Tools struct {
	store    *corpus.Vectors
	embedder Embedder
	db       *sql.DB
}

// New binds the vector store, a query embedder and the relational corpus used
// for item lookups.
func New(store *corpus.Vectors, embedder Embedder, db *sql.DB) (*Tools, error) {
	if store == nil {
		return nil, errors.New("vector store is nil")
	}
	if embedder == nil {
		return nil, errors.New("embedder is nil")
	}
	if db == nil {
		return nil, errors.New("database is nil")
	}
	return &Tools{store: store, embedder: embedder, db: db}, nil
}

// Capabilities returns the vector capability set.
func (t *Tools) Capabilities() []tools.Capability {
	return []tools.Capability{
		{
			Name:        "semantic_search",
			Description: "Find issues and pull requests whose title and body are semantically similar to a natural-language query.",
			InputSchema: tools.ObjectSchema(map[string]tools.Schema{
				"query": tools.StringSchema("What to look for, in natural language"),
				"type":  tools.EnumSchema("Item type to search (default all)", "issue", "pull", "all"),
				"repo":  tools.StringSchema("Optional owner/name repository filter"),
				"limit": tools.IntegerSchema("Number of results (default 10)", tools.IntPointer(1), tools.IntPointer(MaxTopK)),
			}, "query"),
			Execute: func(ctx context.Context, args tools.Args) (string, error) {
				query, err := args.RequiredString("query")
				if err != nil {
					return "", err
				}
				kind, _, err := args.OptionalString("type")
				if err != nil {
					return "", err
				}
				repo, _, err := args.OptionalString("repo")
				if err != nil {
					return "", err
				}
				limit, err := args.IntOr("limit", DefaultTopK)
				if err != nil {
					return "", err
				}
				return t.SemanticSearch(ctx, SearchRequest{Query: query, Type: kind, Repo: repo, Limit: limit})
			},
		},
		{
			Name:        "get_item",
			Description: "Fetch the full record of one issue or pull request by repository and number.",
			InputSchema: tools.ObjectSchema(map[string]tools.Schema{
				"repo":   tools.StringSchema("Repository as owner/name"),
				"number": tools.IntegerSchema("Issue or pull request number", tools.IntPointer(1), nil),
				"type":   tools.EnumSchema("Item type", "issue", "pull"),
			}, "repo", "number", "type"),
			Execute: func(ctx context.Context, args tools.Args) (string, error) {
				repo, err := args.RequiredString("repo")
				if err != nil {
					return "", err
				}
				number, err := args.IntOr("number", 0)
				if err != nil {
					return "", err
				}
				kind, err := args.RequiredString("type")
				if err != nil {
					return "", err
				}
				return t.GetItem(ctx, repo, number, kind)
			},
		},
	}
}

// SearchRequest configures semantic_search.
type SearchRequest struct {
	Query string
	Type  string
	Repo  string
	Limit int
}

type searchHit struct {
	Score       float64 `json:"score"`
	Type        string  `json:"type"`
	Repo        string  `json:"repo"`
	Number      int     `json:"number"`
	Title       string  `json:"title"`
	BodyPreview string  `json:"bodyPreview,omitempty"`
}

// SemanticSearch embeds the query and returns the most similar items.
func (t *Tools) SemanticSearch(ctx context.Context, req SearchRequest) (string, error) {
	if strings.TrimSpace(req.Query) == "" {
		return "", fmt.Errorf("query is required")
	}
	filter := Filter{Repo: strings.TrimSpace(req.Repo)}
	if kind := strings.TrimSpace(req.Type); kind != "" && kind != "all" {
		itemType, err := corpus.ParseItemType(kind)
		if err != nil {
			return "", err
		}
		filter.Type = itemType
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultTopK
	}
	if limit > MaxTopK {
		limit = MaxTopK
	}
	embedding, err := t.embedder.Embed(ctx, req.Query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	if len(embedding) != t.store.Dimension {
		return "", fmt.Errorf("query embedding has dimension %d, store expects %d", len(embedding), t.store.Dimension)
	}
	hits := Rank(t.store, embedding, filter, limit)
	if len(hits) == 0 {
		return "No items matched the filter.", nil
	}
	out := make([]searchHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, searchHit{
			Score:       roundScore(hit.Score),
			Type:        string(hit.Item.Type),
			Repo:        hit.Item.Repo,
			Number:      hit.Item.Number,
			Title:       hit.Item.Title,
			BodyPreview: hit.Item.BodyPreview,
		})
	}
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	return string(payload), nil
}

// GetItem joins index metadata with the relational record of one item.
func (t *Tools) GetItem(ctx context.Context, repo string, number int, kind string) (string, error) {
	itemType, err := corpus.ParseItemType(kind)
	if err != nil {
		return "", err
	}
	if number < 1 {
		return "", fmt.Errorf("number must be >= 1")
	}
	repo = strings.TrimSpace(repo)
	record, err := t.lookup(ctx, itemType, repo, number)
	if err != nil {
		return "", err
	}
	for _, item := range t.store.Items {
		if item.Type == itemType && item.Repo == repo && item.Number == number {
			record["id"] = item.ID
			break
		}
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode item: %w", err)
	}
	return string(payload), nil
}

const issueLookup = `SELECT i.number, i.title, i.body, i.state, u.login AS author, i.labels,
		i.comments_count, i.created_at, i.updated_at, i.closed_at
	FROM issues i
	JOIN repos r ON r.id = i.repo_id
	LEFT JOIN users u ON u.id = i.author_id
	WHERE r.full_name = ? AND i.number = ?`

const pullLookup = `SELECT p.number, p.title, p.body, p.state, u.login AS author, p.merged,
		p.additions, p.deletions, p.changed_files, p.comments_count,
		p.created_at, p.updated_at, p.closed_at, p.merged_at
	FROM pulls p
	JOIN repos r ON r.id = p.repo_id
	LEFT JOIN users u ON u.id = p.author_id
	WHERE r.full_name = ? AND p.number = ?`

func (t *Tools) lookup(ctx context.Context, itemType corpus.ItemType, repo string, number int) (map[string]any, error) {
	statement := issueLookup
	if itemType == corpus.ItemPull {
		statement = pullLookup
	}
	rows, err := t.db.QueryContext(ctx, statement, repo, number)
	if err != nil {
		return nil, fmt.Errorf("lookup %s %s#%d: %w", itemType, repo, number, err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("lookup %s %s#%d: %w", itemType, repo, number, err)
		}
		return nil, fmt.Errorf("%s %s#%d not found", itemType, repo, number)
	}
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := rows.Scan(pointers...); err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	record := map[string]any{"repo": repo, "type": string(itemType)}
	for i, column := range columns {
		record[column] = jsonValue(values[i])
	}
	return record, nil
}

func jsonValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case time.Time:
		return typed.UTC().Format(time.RFC3339)
	default:
		if _, err := json.Marshal(typed); err != nil {
			return fmt.Sprint(typed)
		}
		return typed
	}
}

func roundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}
