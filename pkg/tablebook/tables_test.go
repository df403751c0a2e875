package tablebook

import (
	"fmt"
	"testing"
)

func TestHallTablesCarryLayoutLabels(test *testing.T) {
	test.Parallel()
	tables := HallTables()
	if len(tables) != 13 {
		test.Fatalf("expected 13 tables, got %d", len(tables))
	}
	for _, table := range tables {
		want := fmt.Sprintf("Стол %d", table.ID)
		if table.Label != want {
			test.Fatalf("expected label %q, got %q", want, table.Label)
		}
	}
	windowTables := map[TableID]bool{1: true, 2: true, 3: true, 11: true}
	for _, table := range tables {
		if table.ByWindow != windowTables[table.ID] {
			test.Fatalf("unexpected window flag for table %d", table.ID)
		}
	}
}

func TestHallTablesReturnsACopy(test *testing.T) {
	test.Parallel()
	tables := HallTables()
	tables[0].Label = "mutated"
	if HallTables()[0].Label != "Стол 1" {
		test.Fatalf("layout mutated through the returned slice")
	}
}
