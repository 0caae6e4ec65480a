//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package tool provides the knowledge search tool for the agent.
package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/pravobot/pravobot/knowledge"
	"github.com/pravobot/pravobot/knowledge/document"
	"github.com/pravobot/pravobot/tool"
	"github.com/pravobot/pravobot/tool/function"
)

// Fixed user-facing strings returned by the search tool. Error conditions
// are reported as formatted text, never as raised errors, so the model can
// read them and react.
const (
	MsgNotConfigured = "Ошибка: Инструмент поиска не настроен."
	MsgNothingFound  = "По вашему запросу ничего не найдено."
)

// SearchRequest represents the input for the law search tool.
type SearchRequest struct {
	Query string `json:"query" jsonschema:"description=Строка запроса для поиска, например: неустойка по ДДУ 214-ФЗ, статья 20 ЗоЗПП"`
}

// SearchResponse represents the formatted output of the law search tool.
type SearchResponse struct {
	Text string `json:"text"`
}

// String returns the formatted text so the agent loop can forward it to the
// model verbatim.
func (r SearchResponse) String() string { return r.Text }

// NewSearchLawsTool creates the search_laws tool bound to the given
// knowledge base. The dependency is injected at construction; the tool
// holds no other state.
func NewSearchLawsTool(kb knowledge.Knowledge) tool.CallableTool {
	searchFunc := func(ctx context.Context, req SearchRequest) (SearchResponse, error) {
		if kb == nil {
			return SearchResponse{Text: MsgNotConfigured}, nil
		}

		result, err := kb.Search(ctx, &knowledge.SearchRequest{Query: req.Query})
		if err != nil {
			return SearchResponse{Text: fmt.Sprintf("Ошибка при выполнении поиска: %v", err)}, nil
		}
		if result == nil || len(result.Documents) == 0 {
			return SearchResponse{Text: MsgNothingFound}, nil
		}

		blocks := make([]string, 0, len(result.Documents))
		for i, rd := range result.Documents {
			blocks = append(blocks, formatDocument(i+1, rd.Document))
		}
		return SearchResponse{Text: strings.Join(blocks, "\n\n")}, nil
	}

	return function.NewFunctionTool(
		searchFunc,
		function.WithName("search_laws"),
		function.WithDescription("Поиск по базе знаний (законы РФ, кодексы, судебная практика). "+
			"Используй этот инструмент, когда нужно найти юридическую информацию, статьи законов, "+
			"разъяснения или судебные прецеденты для ответа на вопрос пользователя."),
	)
}

// formatDocument renders one retrieved chunk as a numbered citation block.
// Missing metadata fields are omitted, never an error.
func formatDocument(n int, doc *document.Document) string {
	source := doc.MetaString(document.MetaSource)
	if source == "" {
		source = "Unknown"
	}

	sourceParts := []string{source}
	if chapter := doc.MetaString(document.MetaChapter); chapter != "" {
		sourceParts = append(sourceParts, chapter)
	}
	if article := doc.MetaString(document.MetaArticle); article != "" {
		sourceParts = append(sourceParts, article)
	}

	header := strings.Join(sourceParts, ", ")
	if title := doc.MetaString(document.MetaTitle); title != "" {
		header += " " + title
	}

	return fmt.Sprintf("--- Документ %d ---\nИсточник: %s\nТекст: %s", n, header, doc.Content)
}
