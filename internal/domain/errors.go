package domain

import (
	"errors"
	"strconv"
)

var (
	// ErrProviderNotFound возвращается, если провайдер с таким именем не зарегистрирован.
	ErrProviderNotFound = errors.New("провайдер не зарегистрирован")
	// ErrRecipientUnreachable возвращается, если у получателя нет нужного контакта.
	ErrRecipientUnreachable = errors.New("получатель недоступен для провайдера")
	// ErrSendTimeout возвращается, если попытка отправки не уложилась в таймаут.
	ErrSendTimeout = errors.New("send timeout")
	// ErrEmptyBody возвращается при попытке отправить пустое сообщение.
	ErrEmptyBody = errors.New("пустое тело сообщения")
	// ErrMalformedEvent оборачивает ошибки разбора и валидации событий.
	ErrMalformedEvent = errors.New("некорректное событие")
)

func invalidEvent(reason string) error {
	return &invalidEventError{reason: reason}
}

type invalidEventError struct {
	reason string
}

func (e *invalidEventError) Error() string { return e.reason }

func (e *invalidEventError) Unwrap() error { return ErrMalformedEvent }

func formatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}
