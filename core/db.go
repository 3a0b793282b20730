package core

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// FilterOrderings keeps the orderings whose field is a key of `columns` and swaps the field for its column name.
// Query params never reach an ORDER BY clause without going through here.
func FilterOrderings(ords []DBOrdering, columns map[string]string) []DBOrdering {
	filtered := make([]DBOrdering, 0, len(ords))
	for _, ord := range ords {
		if col, ok := columns[ord.Field]; ok {
			filtered = append(filtered, DBOrdering{Field: col, Ascending: ord.Ascending})
		}
	}
	return filtered
}
