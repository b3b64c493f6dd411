package models

import "time"

// FulfilledSession — запись журнала исполненных checkout-сессий.
// Журнал обеспечивает явную идемпотентность: повторная доставка
// события с тем же session_id не приводит ко второй выдаче доступа.
type FulfilledSession struct {
	SessionID   string    // Идентификатор checkout-сессии провайдера
	UserID      int       // Пользователь, которому выдан доступ
	FulfilledAt time.Time // Момент исполнения
}

// FulfillResult — результат попытки фулфилмента checkout-сессии.
type FulfillResult string

const (
	// Fulfilled — доступ выдан этой попыткой.
	Fulfilled FulfillResult = "fulfilled"
	// AlreadyFulfilled — сессия уже была исполнена ранее, запись не менялась.
	AlreadyFulfilled FulfillResult = "already_fulfilled"
	// NotFulfilled — исполнение не выполнено: сессия не оплачена,
	// метаданные отсутствуют или пользователь не найден.
	NotFulfilled FulfillResult = "not_fulfilled"
)
