package vec

// Vec2 представляет целочисленную клетку сетки
type Vec2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add складывает две клетки
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// ChebyshevTo возвращает "кольцевое" расстояние (max(|dx|,|dy|)),
// используется спиральным поиском
func (v Vec2) ChebyshevTo(other Vec2) int {
	dx := v.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dy := v.Y - other.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}
