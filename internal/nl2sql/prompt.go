package nl2sql

import (
	"fmt"
	"strings"
)

const systemPrompt = "You convert natural language questions about uploaded tabular data " +
	"into a single DuckDB SQL statement. DuckDB uses PostgreSQL-like SQL syntax. " +
	"Return ONLY SQL. No markdown, no explanation."

func buildChatPayload(model string, temperature float64, req Request) (map[string]any, error) {
	schemaJSON, err := req.Schema.Canonical()
	if err != nil {
		return nil, err
	}
	userPrompt := fmt.Sprintf(
		"Schema and sample values (JSON):\n%s\n\nQuestion:\n%s\n\nRules:\n- Use only the listed tables and columns.\n- Prefer explicit column lists over *.\n- Output a single SQL statement only.",
		schemaJSON,
		strings.TrimSpace(req.Question),
	)

	return map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"temperature": temperature,
	}, nil
}
