// Package kv описывает долговременное key-value хранилище клиентской сессии
// и его реализации: в памяти, в файле и в redis.
//
// Хранилище может быть общим с другим кодом приложения, поэтому реализации
// трогают только те ключи, которые им явно передали.
package kv

import "errors"

// ErrCorrupt содержимое хранилища не удалось разобрать.
// Запись в такое хранилище начинает его с чистого листа.
var ErrCorrupt = errors.New("corrupted store")

// Store синхронное key-value хранилище строк.
type Store interface {
	// Get возвращает значение и признак его наличия.
	Get(key string) (string, bool, error)
	// Set сохраняет значение по ключу.
	Set(key, value string) error
	// Remove удаляет ключ. Удаление отсутствующего ключа не ошибка.
	Remove(key string) error
}
