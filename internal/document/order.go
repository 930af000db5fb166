package document

// ReorderAction moves a set of entities within the draw order. The draw
// order runs back-to-front: the last id paints on top.
type ReorderAction uint32

const (
	BringToFront ReorderAction = 1
	SendToBack   ReorderAction = 2
	BringForward ReorderAction = 3
	SendBackward ReorderAction = 4
)

// Reorder applies the action to the given ids, keeping their relative
// draw-order positions (a multi-selection moves as a block and one step
// means one step for every member). Unknown ids are ignored. Returns
// whether the order changed.
func (s *Store) Reorder(ids []uint32, action ReorderAction) bool {
	moving := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.Entities[id]; ok {
			moving[id] = true
		}
	}
	if len(moving) == 0 || len(s.DrawOrder) < 2 {
		return false
	}

	order := s.DrawOrder
	var next []uint32
	switch action {
	case BringToFront, SendToBack:
		kept := make([]uint32, 0, len(order))
		picked := make([]uint32, 0, len(moving))
		for _, id := range order {
			if moving[id] {
				picked = append(picked, id)
			} else {
				kept = append(kept, id)
			}
		}
		if action == BringToFront {
			next = append(kept, picked...)
		} else {
			next = append(picked, kept...)
		}
	case BringForward:
		next = make([]uint32, len(order))
		copy(next, order)
		for i := len(next) - 2; i >= 0; i-- {
			if moving[next[i]] && !moving[next[i+1]] {
				next[i], next[i+1] = next[i+1], next[i]
			}
		}
	case SendBackward:
		next = make([]uint32, len(order))
		copy(next, order)
		for i := 1; i < len(next); i++ {
			if moving[next[i]] && !moving[next[i-1]] {
				next[i], next[i-1] = next[i-1], next[i]
			}
		}
	default:
		return false
	}

	changed := false
	for i := range next {
		if next[i] != order[i] {
			changed = true
			break
		}
	}
	if changed {
		s.DrawOrder = next
	}
	return changed
}
