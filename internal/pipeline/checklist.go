package pipeline

// ChecklistEntry records whether the control operator ticked one order line.
type ChecklistEntry struct {
	ItemID  int64 `json:"item_id"`
	Checked bool  `json:"checked"`
}

// ChecklistComplete reports whether every item id is present and checked.
// An order without items can never pass the gate.
func ChecklistComplete(itemIDs []int64, entries []ChecklistEntry) bool {
	if len(itemIDs) == 0 {
		return false
	}
	ticked := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if e.Checked {
			ticked[e.ItemID] = true
		}
	}
	for _, id := range itemIDs {
		if !ticked[id] {
			return false
		}
	}
	return true
}
