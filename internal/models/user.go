// Package models содержит доменные структуры сервиса фулфилмента:
// пользователя с флагом доступа к платформе, refresh-токен и запись
// журнала исполненных checkout-сессий.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
//
// Поле HasAccess — единственный признак оплаченного доступа к платформе.
// Устанавливается в true только логикой фулфилмента, в false — только
// обработчиком неуспешного продления подписки.
type User struct {
	ID           int        // Уникальный идентификатор пользователя
	Email        string     // Электронная почта (уникальная)
	PasswordHash string     // Хэш пароля пользователя
	Name         string     // Отображаемое имя
	ReferralCode string     // Уникальный реферальный код
	ReferrerID   *int       // Идентификатор пригласившего пользователя, может отсутствовать
	HasAccess    bool       // Флаг доступа к платформе
	CreatedAt    time.Time  // Дата регистрации
}

// RefreshToken хранит refresh-токен пользователя.
// Таблица заведена для auth-сервиса; сам выпуск токенов
// находится вне зоны ответственности этого сервиса.
type RefreshToken struct {
	ID        int
	UserID    int
	Token     string
	ExpiresAt time.Time
	IsRevoked bool
}
