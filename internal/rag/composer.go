package rag

import (
	"context"
	"fmt"
	"strings"

	"lecture-rag/internal/backoff"
	"lecture-rag/internal/llmservice"
	"lecture-rag/internal/models"

	"github.com/rs/zerolog/log"
)

// Composer answers questions from retrieved lecture material.
type Composer struct {
	searcher  Searcher
	generator llmservice.Generator
	figures   FigureResolver
	backoff   *backoff.Controller
}

func NewComposer(searcher Searcher, generator llmservice.Generator, figures FigureResolver, ctrl *backoff.Controller) *Composer {
	return &Composer{searcher: searcher, generator: generator, figures: figures, backoff: ctrl}
}

// Answer returns the generated (or templated) answer followed by the figures
// block and the sources listing. Nothing retrieved yields OutOfDomainAnswer.
func (c *Composer) Answer(ctx context.Context, question string) (string, error) {
	items, err := c.searcher.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}

	var texts, figurePaths []string
	for _, it := range items {
		if it.Text != "" {
			texts = append(texts, it.Text)
		}
		if it.ImagePath != "" {
			figurePaths = append(figurePaths, it.ImagePath)
		}
	}
	if len(figurePaths) == 0 {
		figurePaths = c.fallbackFigures(items)
	}

	if len(texts) == 0 && len(figurePaths) == 0 {
		log.Info().Str("question", question).Msg("Nothing retrieved, answering out of domain")
		return models.OutOfDomainAnswer, nil
	}

	answer := models.FiguresOnlyAnswer
	if len(texts) > 0 {
		user := fmt.Sprintf(models.UserPromptTemplate, question, strings.Join(texts, models.ContextSeparator))
		answer, err = backoff.Call(ctx, c.backoff, "generate answer", func(ctx context.Context) (string, error) {
			return c.generator.Generate(ctx, models.SystemPrompt, user)
		})
		if err != nil {
			return "", fmt.Errorf("failed to generate answer: %w", err)
		}
	}

	var sb strings.Builder
	sb.WriteString(answer)
	sb.WriteString(c.figuresBlock(figurePaths))
	sb.WriteString(models.SourcesSeparator)
	sb.WriteString(SourcesBlock(items))
	return sb.String(), nil
}

// fallbackFigures reconstructs figure paths from the source and page of each
// item when the store returned none.
func (c *Composer) fallbackFigures(items []models.RetrievedItem) []string {
	if c.figures == nil {
		return nil
	}
	var paths []string
	for _, it := range items {
		if it.Source == "" {
			continue
		}
		if p, ok := c.figures.Lookup(it.Source, it.Page); ok {
			paths = append(paths, p)
		}
	}
	return dedupe(paths)
}

func (c *Composer) figuresBlock(paths []string) string {
	paths = dedupe(paths)
	if len(paths) == 0 {
		return ""
	}
	lines := make([]string, len(paths))
	for i, p := range paths {
		url := p
		if c.figures != nil {
			url = c.figures.AbsURL(p)
		}
		lines[i] = fmt.Sprintf(models.FigureTemplate, url)
	}
	return models.FiguresHeader + strings.Join(lines, "\n") + "\n"
}

// SourcesBlock lists one line per item, duplicates included, in order.
func SourcesBlock(items []models.RetrievedItem) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf(models.SourceLineTemplate, it.Source, it.Page)
	}
	return strings.Join(lines, "\n")
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
