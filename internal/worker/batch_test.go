package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/originpoint/internal/controller"
	"github.com/ppiankov/originpoint/internal/model"
)

func fakeRunner(calls *int32, failOn string) Runner {
	return RunnerFunc(func(ctx context.Context, item Item) (controller.Snapshot, error) {
		atomic.AddInt32(calls, 1)
		time.Sleep(5 * time.Millisecond)
		if item.Query == failOn {
			return controller.Snapshot{}, errors.New("upstream failed")
		}
		return controller.Snapshot{
			State:  controller.StateResultReady,
			Kind:   controller.KindText,
			Module: item.Module,
			Query:  item.Query,
		}, nil
	})
}

func TestBatchProcessor_ProcessItems(t *testing.T) {
	var calls int32
	processor := NewBatchProcessor(fakeRunner(&calls, "bad"), 2)

	items := []Item{
		{Line: 1, Module: model.ModuleSearch, Query: "Smith homestead"},
		{Line: 2, Module: model.ModuleConflicts, Query: "bad"},
		{Line: 3, Module: model.ModuleMap, Query: "Lot 4, Ashford"},
	}

	results := processor.ProcessItems(context.Background(), items)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 runs, got %d", calls)
	}

	for i, res := range results {
		if res.Item != items[i] {
			t.Errorf("result %d out of order: %+v", i, res.Item)
		}
	}
	if results[0].Error != nil || results[0].Snapshot.Query != "Smith homestead" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Error == nil {
		t.Error("expected error for failing item")
	}
	if results[2].Snapshot.Module != model.ModuleMap {
		t.Errorf("expected map module, got %s", results[2].Snapshot.Module)
	}
}

func TestBatchProcessor_ProcessItems_Empty(t *testing.T) {
	var calls int32
	processor := NewBatchProcessor(fakeRunner(&calls, ""), 2)

	results := processor.ProcessItems(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessItems_Canceled(t *testing.T) {
	var calls int32
	processor := NewBatchProcessor(fakeRunner(&calls, ""), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := processor.ProcessItems(ctx, []Item{{Module: model.ModuleSearch, Query: "a"}})
	for _, res := range results {
		if res == nil {
			t.Fatal("expected a result for every item")
		}
	}
}

func TestParseItems(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"Smith homestead",
		"",
		"conflicts\tSmith homestead",
		"maps\tLot 4, Ashford",
		"Smith homestead",
		"  audit\tThe deed was filed in 1851  ",
	}, "\n")

	items, err := ParseItems(strings.NewReader(input), model.ModuleSearch)
	if err != nil {
		t.Fatalf("ParseItems failed: %v", err)
	}

	want := []Item{
		{Line: 2, Module: model.ModuleSearch, Query: "Smith homestead"},
		{Line: 4, Module: model.ModuleConflicts, Query: "Smith homestead"},
		{Line: 5, Module: model.ModuleMap, Query: "Lot 4, Ashford"},
		{Line: 7, Module: model.ModuleAudit, Query: "The deed was filed in 1851"},
	}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d: %+v", len(want), len(items), items)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d: expected %+v, got %+v", i, want[i], items[i])
		}
	}
}

func TestParseItems_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown module", "tarot\tSmith"},
		{"scan", "scan\tdeed.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseItems(strings.NewReader(tt.input), model.ModuleSearch); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	content := "Smith homestead\nvisualize\tSmith homestead\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls int32
	processor := NewBatchProcessor(fakeRunner(&calls, ""), 2)

	results, err := processor.ProcessFile(context.Background(), path, model.ModuleSearch)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
	if results[1].Item.Module != model.ModuleVisualize {
		t.Errorf("expected visualize, got %s", results[1].Item.Module)
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	var calls int32
	processor := NewBatchProcessor(fakeRunner(&calls, ""), 2)

	if _, err := processor.ProcessFile(context.Background(), "/non/existent/file", model.ModuleSearch); err == nil {
		t.Error("expected error for non-existent file")
	}
}
