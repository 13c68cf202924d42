package world

import "errors"

var (
	// ErrSpawnNotFound в таблице зоны нет точки появления с таким ключом
	ErrSpawnNotFound = errors.New("точка появления не найдена")

	// ErrInvalidSpawn точка появления непроходима и рядом нет замены
	ErrInvalidSpawn = errors.New("точка появления непроходима")

	// ErrNoZone менеджер ещё не загрузил ни одной зоны
	ErrNoZone = errors.New("зона не загружена")
)
