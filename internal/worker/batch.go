package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/originpoint/internal/controller"
	"github.com/ppiankov/originpoint/internal/model"
)

// Item is one query of a batch file
type Item struct {
	Line   int
	Module model.Module
	Query  string
}

// Runner executes one batch item, typically on a fresh controller
type Runner interface {
	Run(ctx context.Context, item Item) (controller.Snapshot, error)
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, item Item) (controller.Snapshot, error)

// Run calls f
func (f RunnerFunc) Run(ctx context.Context, item Item) (controller.Snapshot, error) {
	return f(ctx, item)
}

// ItemResult is the outcome of one batch item
type ItemResult struct {
	Item     Item
	Snapshot controller.Snapshot
	Error    error
}

// BatchProcessor runs many queries concurrently
type BatchProcessor struct {
	runner      Runner
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(runner Runner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessItems runs every item and returns results in input order
func (b *BatchProcessor) ProcessItems(ctx context.Context, items []Item) []*ItemResult {
	if len(items) == 0 {
		return []*ItemResult{}
	}

	pool := NewPool[*ItemResult](ctx, b.concurrency)
	pool.Start()

	for _, item := range items {
		item := item
		pool.Submit(func(ctx context.Context) *ItemResult {
			snap, err := b.runner.Run(ctx, item)
			return &ItemResult{Item: item, Snapshot: snap, Error: err}
		})
	}

	results := pool.Wait()
	for i, r := range results {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = &ItemResult{Item: items[i], Error: err}
		}
	}
	return results
}

// ProcessFile reads items from a file and processes them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string, defaultModule model.Module) ([]*ItemResult, error) {
	items, err := ReadItemsFromFile(filePath, defaultModule)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}

	return b.ProcessItems(ctx, items), nil
}

// ReadItemsFromFile reads batch items from a file
func ReadItemsFromFile(filePath string, defaultModule model.Module) ([]Item, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ParseItems(file, defaultModule)
}

// ParseItems reads one query per line. A line of the form
// "module<TAB>query" selects the module, a bare line uses defaultModule.
// Blank lines and lines starting with # are skipped, repeated
// module/query pairs are dropped. Scan cannot be batched.
func ParseItems(r io.Reader, defaultModule model.Module) ([]Item, error) {
	var items []Item
	seen := make(map[Item]bool)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		module := defaultModule
		query := line
		if name, rest, ok := strings.Cut(line, "\t"); ok {
			m, err := model.ParseModule(name)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			module = m
			query = strings.TrimSpace(rest)
		}
		if module == model.ModuleScan {
			return nil, fmt.Errorf("line %d: the scan module takes a document and cannot be batched", lineNo)
		}
		if query == "" {
			return nil, fmt.Errorf("line %d: empty query", lineNo)
		}

		key := Item{Module: module, Query: query}
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, Item{Line: lineNo, Module: module, Query: query})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return items, nil
}
