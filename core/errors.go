package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	BotErrorBadUpdate     = "BOT_BAD_UPDATE"
	BotErrorRateLimited   = "BOT_RATE_LIMITED"
	BotErrorCircuitOpen   = "BOT_CIRCUIT_OPEN"
	BotErrorUpstream      = "BOT_UPSTREAM_ERROR"
	BotErrorTransport     = "BOT_TRANSPORT_ERROR"
	BotErrorNotFound      = "BOT_NOT_FOUND"
	BotErrorOperation     = "BOT_OPERATION_FAILED"
	BotErrorUnauthorized  = "BOT_UNAUTHORIZED"
	BotErrorConflict      = "BOT_CONFLICT"
	BotErrorInternal      = "BOT_INTERNAL_ERROR"
)

func botErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureBotErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "circuit breaker"):
		return newBotError(err.Error(), goerrors.CategoryExternal, BotErrorCircuitOpen)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newBotError(err.Error(), goerrors.CategoryRateLimit, BotErrorRateLimited)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection"):
		return newBotError(err.Error(), goerrors.CategoryExternal, BotErrorTransport)
	case strings.Contains(msg, "not found"):
		return newBotError(err.Error(), goerrors.CategoryNotFound, BotErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "decode"):
		return newBotError(err.Error(), goerrors.CategoryBadInput, BotErrorBadUpdate)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureBotErrorEnvelope(mapped)
}

// MapError converts any error into the bot error envelope.
func MapError(err error) *goerrors.Error {
	return botErrorMapper(err)
}

func newBotError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureBotErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureBotErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = botHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultBotTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func botHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func defaultBotTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return BotErrorBadUpdate
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return BotErrorUnauthorized
	case goerrors.CategoryNotFound:
		return BotErrorNotFound
	case goerrors.CategoryConflict:
		return BotErrorConflict
	case goerrors.CategoryRateLimit:
		return BotErrorRateLimited
	case goerrors.CategoryExternal:
		return BotErrorUpstream
	case goerrors.CategoryOperation:
		return BotErrorOperation
	default:
		return BotErrorInternal
	}
}
