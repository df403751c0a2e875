package tablebook

// Table is one physical table in the hall layout.
type Table struct {
	ID       TableID
	Label    string
	Seats    int
	ByWindow bool
}

// The hall floor plan is fixed; positions and wall geometry belong to the
// rendering layer, only identity, display label, and capacity matter here.
var hallTables = []Table{
	{ID: 1, Label: "Стол 1", Seats: 5, ByWindow: true},
	{ID: 2, Label: "Стол 2", Seats: 4, ByWindow: true},
	{ID: 3, Label: "Стол 3", Seats: 4, ByWindow: true},
	{ID: 4, Label: "Стол 4", Seats: 2},
	{ID: 5, Label: "Стол 5", Seats: 2},
	{ID: 6, Label: "Стол 6", Seats: 3},
	{ID: 7, Label: "Стол 7", Seats: 5},
	{ID: 8, Label: "Стол 8", Seats: 4},
	{ID: 9, Label: "Стол 9", Seats: 8},
	{ID: 10, Label: "Стол 10", Seats: 15},
	{ID: 11, Label: "Стол 11", Seats: 5, ByWindow: true},
	{ID: 12, Label: "Стол 12", Seats: 9},
	{ID: 13, Label: "Стол 13", Seats: 6},
}

// HallTables returns a copy of the hall layout.
func HallTables() []Table {
	tables := make([]Table, len(hallTables))
	copy(tables, hallTables)
	return tables
}

func tableExists(tableID TableID) bool {
	for _, table := range hallTables {
		if table.ID == tableID {
			return true
		}
	}
	return false
}
