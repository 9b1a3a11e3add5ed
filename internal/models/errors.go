package models

import "errors"

var (
	// ErrValidation некорректный или недостаточный ввод (400)
	ErrValidation = errors.New("validation error")

	// ErrArtifactLoad артефакт модели или скейлера не загружен (500, при старте фатально)
	ErrArtifactLoad = errors.New("artifact load error")

	// ErrNotFound запрошенный файл не существует (404)
	ErrNotFound = errors.New("not found")

	// ErrInternal любая другая непредвиденная ошибка (500)
	ErrInternal = errors.New("internal error")
)
