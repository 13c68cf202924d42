package world

// Слой - индекс уровня высоты на карте (0 - земля, чем больше, тем выше).
// Позиция сущности может не иметь слоя: до первого появления на карте
// её слой равен NoLayer, и резолвер выбирает самый высокий проходимый.
const (
	// NoLayer слой не задан
	NoLayer = -1

	// LayerGround нижний слой карты
	LayerGround = 0
)

// HasLayer сообщает, задан ли слой
func HasLayer(layer int) bool {
	return layer >= LayerGround
}
