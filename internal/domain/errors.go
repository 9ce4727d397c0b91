package domain

import "errors"

// Ошибки доменной модели.
var (
	// ErrInvalidProfile — некорректный ResourceProfile
	// (неположительные ресурсы или неизвестный класс очереди).
	ErrInvalidProfile = errors.New("invalid resource profile")
)
