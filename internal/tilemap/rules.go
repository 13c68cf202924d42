package tilemap

// WalkRules классифицирует id тайлов. По умолчанию любой тайл > 0 проходим:
// редактор карт порождает много декоративных id, которые не должны блокировать путь.
type WalkRules struct {
	blocked map[TileID]struct{}
	allowed map[TileID]struct{}
}

// NewWalkRules создаёт правила с чёрным списком непроходимых id
func NewWalkRules(blocked ...TileID) *WalkRules {
	r := &WalkRules{blocked: make(map[TileID]struct{}, len(blocked))}
	for _, id := range blocked {
		r.blocked[id] = struct{}{}
	}
	return r
}

// WithAllowlist ограничивает проходимость только перечисленными id.
// Чёрный список при этом продолжает действовать.
func (r *WalkRules) WithAllowlist(allowed ...TileID) *WalkRules {
	r.allowed = make(map[TileID]struct{}, len(allowed))
	for _, id := range allowed {
		r.allowed[id] = struct{}{}
	}
	return r
}

// IsWalkable проверяет id тайла. nil-правила разрешают любой непустой тайл.
func (r *WalkRules) IsWalkable(id TileID) bool {
	if id == Empty {
		return false
	}
	if r == nil {
		return true
	}
	if _, blocked := r.blocked[id]; blocked {
		return false
	}
	if len(r.allowed) > 0 {
		_, ok := r.allowed[id]
		return ok
	}
	return true
}

// RulesFromInts удобная обёртка для значений из конфигурации
func RulesFromInts(blocked, allowed []int) *WalkRules {
	r := NewWalkRules()
	for _, id := range blocked {
		if id > 0 {
			r.blocked[TileID(id)] = struct{}{}
		}
	}
	if len(allowed) > 0 {
		ids := make([]TileID, 0, len(allowed))
		for _, id := range allowed {
			if id > 0 {
				ids = append(ids, TileID(id))
			}
		}
		r.WithAllowlist(ids...)
	}
	return r
}
