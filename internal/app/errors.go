package app

import (
	"errors"

	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/domain"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// Notice turns an operation error into the notification sent back to the
// originator. The connection stays open for every error handled here.
func Notice(err error) protocol.Event {
	switch {
	case errors.Is(err, ErrBadCredentials), errors.Is(err, ErrAlreadyOnline):
		return protocol.Failure(protocol.CodeAuthFailure, err.Error())
	case errors.Is(err, core.ErrNotMember):
		return protocol.Failure(protocol.CodeNotMember, "you are not a member of that group")
	case errors.Is(err, core.ErrUserNotFound):
		return protocol.Failure(protocol.CodeNotFound, "no such user")
	case errors.Is(err, core.ErrGroupNotFound):
		return protocol.Failure(protocol.CodeNotFound, "no such group")
	case errors.Is(err, ErrNoteNotFound):
		return protocol.Failure(protocol.CodeNotFound, "no such voice note")
	case errors.Is(err, core.ErrUserExists), errors.Is(err, core.ErrGroupExists), errors.Is(err, core.ErrAlreadyMember):
		return protocol.Failure(protocol.CodeConflict, err.Error())
	case errors.Is(err, ErrTransferSizeMismatch), errors.Is(err, ErrNoteTooLarge):
		return protocol.Failure(protocol.CodeSizeMismatch, err.Error())
	case errors.Is(err, ErrInvalidTarget), isValidation(err):
		return protocol.Failure(protocol.CodeMalformed, err.Error())
	default:
		return protocol.Failure(protocol.CodeInternal, "internal error")
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		domain.ErrUsernameEmpty, domain.ErrUsernameTooLong, domain.ErrUsernameInvalid,
		domain.ErrGroupNameEmpty, domain.ErrGroupNameTooLong, ErrPasswordEmpty,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
