// Copyright 2026 © The Atlas Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"time"

	"github.com/jllopis/atlas/pkg/core"
)

// Article is one entry served by the News resource.
type Article struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Published time.Time `json:"published"`
}

// News is a read-only "articles" resource.
type News struct {
	articles []Article
}

// NewNews creates the resource with the stock articles.
func NewNews() *News {
	now := time.Now().UTC()
	return NewNewsWithArticles([]Article{
		{ID: "1", Title: "Atlas Framework Released", Content: "The Atlas Framework has been released...", Published: now},
		{ID: "2", Title: "MCP Protocol Gains Adoption", Content: "The Model Context Protocol is seeing increased adoption...", Published: now},
	})
}

// NewNewsWithArticles serves articles.
func NewNewsWithArticles(articles []Article) *News {
	return &News{articles: append([]Article(nil), articles...)}
}

func (*News) Name() string         { return "news" }
func (*News) ResourceType() string { return "articles" }

// Access returns every article, or only the one matching params["id"].
func (n *News) Access(_ context.Context, params core.Params) (core.Params, error) {
	id, filter := params.String("id")
	out := make([]any, 0, len(n.articles))
	for _, a := range n.articles {
		if filter && a.ID != id {
			continue
		}
		out = append(out, map[string]any{
			"id":        a.ID,
			"title":     a.Title,
			"content":   a.Content,
			"published": a.Published.Format(time.RFC3339),
		})
	}
	return core.Params{"articles": out}, nil
}
