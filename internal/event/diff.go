package event

// DiffResult contains the rows that appeared or disappeared between two runs
type DiffResult struct {
	Added   []ResultRow
	Removed []ResultRow
	Changed []*RowChange
}

// RowChange records a field whose value differs for the same row key
type RowChange struct {
	Key      string `json:"key"`
	Index    int    `json:"index"`
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Empty reports whether the two runs matched
func (d *DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares the rows of a previous run against the current run. Rows
// are matched by Key; output keeps the order of the run they come from.
func Diff(previous, current []ResultRow) *DiffResult {
	result := &DiffResult{
		Added:   make([]ResultRow, 0),
		Removed: make([]ResultRow, 0),
		Changed: make([]*RowChange, 0),
	}

	prevByKey := make(map[string]ResultRow, len(previous))
	for _, row := range previous {
		prevByKey[row.Key()] = row
	}

	seen := make(map[string]bool, len(current))
	for _, row := range current {
		key := row.Key()
		seen[key] = true

		old, exists := prevByKey[key]
		if !exists {
			result.Added = append(result.Added, row)
			continue
		}
		result.Changed = append(result.Changed, DetectChanges(key, old, row)...)
	}

	for _, row := range previous {
		if !seen[row.Key()] {
			result.Removed = append(result.Removed, row)
		}
	}

	return result
}

// DetectChanges compares the fields of two versions of the same row
func DetectChanges(key string, previous, current ResultRow) []*RowChange {
	var changes []*RowChange

	for _, field := range current.Fields.Keys() {
		oldValue := previous.Fields.Get(field)
		newValue := current.Fields.Get(field)
		if oldValue != newValue {
			changes = append(changes, &RowChange{
				Key:      key,
				Index:    current.Index,
				Field:    field,
				OldValue: oldValue,
				NewValue: newValue,
			})
		}
	}

	// Fields that vanished entirely
	for _, field := range previous.Fields.Keys() {
		if !current.Fields.Has(field) {
			changes = append(changes, &RowChange{
				Key:      key,
				Index:    current.Index,
				Field:    field,
				OldValue: previous.Fields.Get(field),
			})
		}
	}

	return changes
}
