package nl2sql

import (
	"context"

	"github.com/tabletalk/tabletalk/internal/dataset"
)

type Request struct {
	Question string
	Schema   dataset.Description
}

// Result carries the raw completion text. Content is untrusted free-form
// output; callers must pass it through ExtractStatement before execution.
type Result struct {
	Content  string `json:"content"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
