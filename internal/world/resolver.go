package world

// Reason объясняет решение резолвера слоёв
type Reason int

const (
	ReasonOK Reason = iota
	ReasonSameLayer
	ReasonDescend
	ReasonAscend
	ReasonTooHigh
	ReasonNoWalkableTile
)

var reasonNames = [...]string{
	ReasonOK:             "OK",
	ReasonSameLayer:      "SAME_LAYER",
	ReasonDescend:        "DESCEND",
	ReasonAscend:         "ASCEND",
	ReasonTooHigh:        "TOO_HIGH",
	ReasonNoWalkableTile: "NO_WALKABLE_TILE",
}

func (r Reason) String() string {
	if r < 0 || int(r) >= len(reasonNames) {
		return "UNKNOWN"
	}
	return reasonNames[r]
}

// MarshalText позволяет отдавать причину строкой в JSON
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Resolution результат разрешения слоя.
// При Allowed=false TargetLayer равен NoLayer.
type Resolution struct {
	Allowed     bool   `json:"allowed"`
	TargetLayer int    `json:"target_layer"`
	Reason      Reason `json:"reason"`
}

// LayerSource отдаёт проходимые слои клетки по возрастанию
type LayerSource interface {
	WalkableLayers(x, y int) []int
}

// Resolve определяет слой, на котором окажется сущность в клетке (x, y),
// если сейчас она на слое current (NoLayer - не задан). Правила применяются
// по порядку:
//
//  1. в клетке нет проходимых слоёв - отказ, NO_WALKABLE_TILE;
//  2. слой не задан - самый высокий проходимый, OK;
//  3. текущий слой проходим - остаёмся, SAME_LAYER;
//  4. есть проходимый слой ниже текущего - самый высокий из них, DESCEND;
//  5. проходим слой ровно на один выше - подъём, ASCEND;
//  6. иначе отказ, TOO_HIGH.
//
// Функция чистая: одинаковые входные данные дают одинаковый результат.
func Resolve(src LayerSource, x, y, current int) Resolution {
	layers := src.WalkableLayers(x, y)
	if len(layers) == 0 {
		return Resolution{Allowed: false, TargetLayer: NoLayer, Reason: ReasonNoWalkableTile}
	}

	if !HasLayer(current) {
		return Resolution{Allowed: true, TargetLayer: layers[len(layers)-1], Reason: ReasonOK}
	}

	below := NoLayer
	for _, l := range layers {
		switch {
		case l == current:
			return Resolution{Allowed: true, TargetLayer: current, Reason: ReasonSameLayer}
		case l < current:
			below = l
		}
	}

	if below != NoLayer {
		return Resolution{Allowed: true, TargetLayer: below, Reason: ReasonDescend}
	}

	for _, l := range layers {
		if l == current+1 {
			return Resolution{Allowed: true, TargetLayer: l, Reason: ReasonAscend}
		}
	}

	return Resolution{Allowed: false, TargetLayer: NoLayer, Reason: ReasonTooHigh}
}
