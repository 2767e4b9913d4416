package domain

import "errors"

var (
	ErrDealNotFound    = errors.New("deal not found")
	ErrTaskNotFound    = errors.New("task not found")
	ErrStageNotFound   = errors.New("stage not found")
	ErrClientNotFound  = errors.New("client not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrTaskAlreadyDone = errors.New("task already completed")
	ErrInvalidValue    = errors.New("invalid field value")
)
