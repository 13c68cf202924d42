package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Типы доменных событий движка
const (
	EventZoneChanged         = "ZoneChanged"
	EventSpawnSubstituted    = "SpawnSubstituted"
	EventTransitionTriggered = "TransitionTriggered"
	EventEntityFell          = "EntityFell"
)

// SourceEngine источник событий, публикуемых движком
const SourceEngine = "isoworld"

// payloadVersion версия схемы JSON полезной нагрузки
const payloadVersion = 1

// ZoneChanged активная зона заменена новой
type ZoneChanged struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Fallback bool   `json:"fallback"` // карта не загрузилась, используется сетка по умолчанию
}

// SpawnSubstituted точка появления оказалась непроходимой и была заменена
// ближайшей проходимой клеткой (или удалена, если такой нет)
type SpawnSubstituted struct {
	Map     string `json:"map"`
	Key     string `json:"key"`
	FromX   int    `json:"from_x"`
	FromY   int    `json:"from_y"`
	ToX     int    `json:"to_x"`
	ToY     int    `json:"to_y"`
	Dropped bool   `json:"dropped"`
}

// TransitionTriggered сущность наступила на клетку перехода
type TransitionTriggered struct {
	Entity      string `json:"entity"`
	FromMap     string `json:"from_map"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	TargetMap   string `json:"target_map"`
	TargetSpawn string `json:"target_spawn"`
}

// EntityFell сущность упала с карты и появится на резервной карте
type EntityFell struct {
	Entity    string  `json:"entity"`
	FromMap   string  `json:"from_map"`
	TargetMap string  `json:"target_map"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Layer     int     `json:"layer"`
}

// priorities события смены зоны не должны теряться при переполнении шины
var priorities = map[string]int{
	EventZoneChanged:         highPriority,
	EventTransitionTriggered: highPriority,
	EventEntityFell:          highPriority,
	EventSpawnSubstituted:    1,
}

// NewEnvelope упаковывает полезную нагрузку в конверт с новым UUID
func NewEnvelope(eventType string, payload interface{}) (*Envelope, error) {
	if eventType == "" {
		return nil, errors.New("не указан тип события")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("сериализация %s: %w", eventType, err)
	}

	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    SourceEngine,
		EventType: eventType,
		Version:   payloadVersion,
		Priority:  priorities[eventType],
		Payload:   data,
	}, nil
}

// WithCorrelation связывает событие с предыдущим
func (e *Envelope) WithCorrelation(id string) *Envelope {
	e.CorrelationID = id
	return e
}

// Decode разбирает полезную нагрузку в out
func (e *Envelope) Decode(out interface{}) error {
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("разбор %s: %w", e.EventType, err)
	}
	return nil
}

type correlationKey struct{}

// WithCorrelationID кладёт id цепочки событий в контекст
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID достаёт id цепочки из контекста ("" если нет)
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Emit упаковывает и публикует событие. Nil шина допустима: событие
// никуда не уходит. Id цепочки берётся из контекста.
func Emit(ctx context.Context, bus EventBus, eventType string, payload interface{}) (*Envelope, error) {
	ev, err := NewEnvelope(eventType, payload)
	if err != nil {
		return nil, err
	}
	ev.CorrelationID = CorrelationID(ctx)
	if bus == nil {
		return ev, nil
	}
	if err := bus.Publish(ctx, ev); err != nil {
		return ev, err
	}
	return ev, nil
}
