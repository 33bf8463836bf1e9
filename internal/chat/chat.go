// Package chat is the natural-language front end: it turns a user question
// into SQL via the LLM client, executes it through the query executor, and
// turns the result back into prose. Pure request/response glue, no state.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opaline/dbbridge/internal/db"
	"github.com/opaline/dbbridge/internal/llm"
)

// maxResultChars caps the serialized rows fed back to the model.
const maxResultChars = 8000

type Service struct {
	llm      *llm.Client
	database *db.DB
}

// Answer is one resolved chat turn.
type Answer struct {
	Question string    `json:"question"`
	SQL      string    `json:"sql"`
	Result   db.Result `json:"result"`
	Answer   string    `json:"answer"`
}

func NewService(client *llm.Client, database *db.DB) *Service {
	return &Service{llm: client, database: database}
}

// Ask resolves one natural-language question end to end. LLM failures are
// returned as errors; SQL failures are reported inside the answer, mirroring
// the tool contract where execution errors ride in the payload.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	schema, err := s.schemaSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}

	genResp, err := s.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(sqlSystemPrompt, schema)},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("generating SQL: %w", err)
	}

	query := ExtractSQL(genResp.Content)
	if query == "" {
		return nil, fmt.Errorf("model returned no SQL")
	}
	slog.Debug("generated SQL", "provider", genResp.Provider, "query", query)

	result := s.database.ExecuteQuery(ctx, query, nil)

	prose, err := s.explain(ctx, question, query, result)
	if err != nil {
		return nil, fmt.Errorf("explaining result: %w", err)
	}

	return &Answer{Question: question, SQL: query, Result: result, Answer: prose}, nil
}

func (s *Service) explain(ctx context.Context, question, query string, result db.Result) (string, error) {
	var user string
	if result.Success {
		data, _ := json.Marshal(result.Data)
		rows := string(data)
		if len(rows) > maxResultChars {
			rows = rows[:maxResultChars] + "…"
		}
		user = fmt.Sprintf(explainUserPrompt, question, query, rows)
	} else {
		user = fmt.Sprintf(explainErrorPrompt, question, query, result.Error)
	}

	resp, err := s.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: explainSystemPrompt},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// schemaSummary lists user tables and their DDL for the SQL prompt.
func (s *Service) schemaSummary(ctx context.Context) (string, error) {
	rows, err := s.database.QueryContext(ctx, `
		SELECT sql FROM sqlite_master
		WHERE type IN ('table','view') AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL
		ORDER BY name`)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var ddl []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", err
		}
		ddl = append(ddl, stmt+";")
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(ddl) == 0 {
		return "(no tables)", nil
	}
	return strings.Join(ddl, "\n"), nil
}

// ExtractSQL pulls the statement out of a model reply, stripping code fences
// and surrounding chatter. Returns "" when no statement is found.
func ExtractSQL(reply string) string {
	reply = strings.TrimSpace(reply)

	// Prefer a fenced block when present.
	if i := strings.Index(reply, "```"); i >= 0 {
		rest := reply[i+3:]
		if j := strings.Index(rest, "\n"); j >= 0 && len(strings.TrimSpace(rest[:j])) <= 10 {
			// Skip the language tag line (```sql).
			rest = rest[j+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		reply = strings.TrimSpace(rest)
	}

	if reply == "" {
		return ""
	}
	// Keep a single statement: cut at the first semicolon, if any.
	if i := strings.Index(reply, ";"); i >= 0 {
		reply = reply[:i]
	}
	return strings.TrimSpace(reply)
}
