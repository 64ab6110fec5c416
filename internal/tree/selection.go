package tree

// Selection is the cursor expressed both as a row index and as the Key of
// the node on that row. The Key is authoritative across re-renders.
type Selection struct {
	Index int
	Key   Key
}

// Capture records the node identity at index.
func Capture(rows []Row, index int) Selection {
	if index < 0 || index >= len(rows) {
		return Selection{}
	}
	return Selection{Index: index, Key: rows[index].Node.key}
}

// Resolve finds the captured Key in a freshly flattened row list. When the
// node is no longer visible the selection falls back to row 0.
func (s Selection) Resolve(rows []Row) Selection {
	if idx := IndexOf(rows, s.Key); idx >= 0 {
		return Selection{Index: idx, Key: s.Key}
	}
	return Capture(rows, 0)
}

// IndexOf returns the row holding key, or -1.
func IndexOf(rows []Row, key Key) int {
	if key == "" {
		return -1
	}
	for i, r := range rows {
		if r.Node.key == key {
			return i
		}
	}
	return -1
}

// Move shifts the selection by delta rows, clamped to the row range.
func (s Selection) Move(rows []Row, delta int) Selection {
	if len(rows) == 0 {
		return Selection{}
	}
	idx := s.Index + delta
	if idx < 0 {
		idx = 0
	}
	if idx > len(rows)-1 {
		idx = len(rows) - 1
	}
	return Capture(rows, idx)
}
