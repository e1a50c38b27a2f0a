package sdata

// KeyFunc maps an id to a comparable key, ids of different Go types
// that the database treats as equal must map to the same key.
type KeyFunc func(id any) any

// PivotPlan is the client side diff between the requested ids and the
// ids already present in a pivot collection for one owner.
type PivotPlan struct {
	Insert []any
	Delete []any
}

func (p PivotPlan) Empty() bool {
	return len(p.Insert) == 0 && len(p.Delete) == 0
}

// PlanAttach inserts the requested ids that are not yet present.
func PlanAttach(existing, ids []any, key KeyFunc) PivotPlan {
	have := keySet(existing, key)
	return PivotPlan{Insert: missing(ids, have, key)}
}

// PlanSync makes the present set equal to ids. With detaching off it
// behaves like PlanAttach.
func PlanSync(existing, ids []any, detaching bool, key KeyFunc) PivotPlan {
	plan := PlanAttach(existing, ids, key)
	if detaching {
		want := keySet(ids, key)
		plan.Delete = missing(existing, want, key)
	}
	return plan
}

// PlanToggle inserts the absent ids and deletes the present ones.
func PlanToggle(existing, ids []any, key KeyFunc) PivotPlan {
	have := keySet(existing, key)
	var plan PivotPlan
	seen := make(map[any]struct{}, len(ids))

	for _, id := range ids {
		k := key(id)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}

		if _, ok := have[k]; ok {
			plan.Delete = append(plan.Delete, id)
		} else {
			plan.Insert = append(plan.Insert, id)
		}
	}
	return plan
}

func keySet(ids []any, key KeyFunc) map[any]struct{} {
	m := make(map[any]struct{}, len(ids))
	for _, id := range ids {
		m[key(id)] = struct{}{}
	}
	return m
}

// missing returns the ids (deduplicated, in order) whose key is not in set.
func missing(ids []any, set map[any]struct{}, key KeyFunc) []any {
	var out []any
	seen := make(map[any]struct{}, len(ids))
	for _, id := range ids {
		k := key(id)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := set[k]; !ok {
			out = append(out, id)
		}
	}
	return out
}
