package backblast

// EventGroup is one logical event and the input rows that belong to it.
type EventGroup struct {
	Key  EventKey
	Rows []Row
}

// Partition groups rows by event key, preserving first-seen order of
// distinct keys. Ordering keeps summaries and backout files deterministic
// for identical input.
func Partition(rows []Row) []EventGroup {
	index := make(map[EventKey]int, len(rows))
	var groups []EventGroup
	for _, row := range rows {
		key := row.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, EventGroup{Key: key})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}
	return groups
}
