package usecases

import (
	"errors"

	"github.com/0xcro3dile/ragchat-go/internal/domain/entities"
)

// Validation failures. Commands return these instead of touching the log.
var (
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrNoDocuments     = errors.New("no documents indexed")
	ErrQueryInFlight   = errors.New("a query is already in flight")
	ErrNoFileSelected  = errors.New("no file selected")
	ErrUploadInFlight  = errors.New("an upload is already in flight")
	ErrEmptyDocumentID = errors.New("document id is empty")
	ErrNoLoader        = errors.New("session has no document loader")
	ErrSessionClosed   = errors.New("session is closed")
)

// failureDetail extracts the user-facing text of a transport failure.
func failureDetail(err error) string {
	var te *entities.TransportError
	if errors.As(err, &te) {
		return te.Detail
	}
	return err.Error()
}
