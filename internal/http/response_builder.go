package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"borsa/internal/api"
)

// HTMXResponseBuilder accumulates HX-Trigger events, headers and a body,
// then writes them in one shot.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a builder with a default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named client event with optional data to HX-Trigger.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// The panels listen on these events to reload themselves.

func (b *HTMXResponseBuilder) TriggerTransactionsChanged(walletID int64) *HTMXResponseBuilder {
	return b.Trigger("transactions:changed", map[string]int64{"wallet_id": walletID})
}

func (b *HTMXResponseBuilder) TriggerCategoriesChanged(walletID int64) *HTMXResponseBuilder {
	return b.Trigger("categories:changed", map[string]int64{"wallet_id": walletID})
}

func (b *HTMXResponseBuilder) TriggerWalletsChanged() *HTMXResponseBuilder {
	return b.Trigger("wallets:changed", struct{}{})
}

func (b *HTMXResponseBuilder) TriggerWalletSelected(walletID int64) *HTMXResponseBuilder {
	return b.Trigger("wallet:selected", map[string]int64{"wallet_id": walletID})
}

func (b *HTMXResponseBuilder) TriggerUserSelected(userID int64) *HTMXResponseBuilder {
	return b.Trigger("user:selected", map[string]int64{"user_id": userID})
}

func (b *HTMXResponseBuilder) TriggerPersonsChanged() *HTMXResponseBuilder {
	return b.Trigger("persons:changed", struct{}{})
}

func (b *HTMXResponseBuilder) TriggerGroupsChanged() *HTMXResponseBuilder {
	return b.Trigger("groups:changed", struct{}{})
}

func (b *HTMXResponseBuilder) TriggerSetupCompleted() *HTMXResponseBuilder {
	return b.Trigger("setup:completed", struct{}{})
}

func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger("form:reset", struct{}{})
}

// TriggerDataRefreshed tells every fragment on the page to reload after a
// manual full refresh.
func (b *HTMXResponseBuilder) TriggerDataRefreshed() *HTMXResponseBuilder {
	return b.Trigger("data:refreshed", struct{}{})
}

// NotificationType selects the toast styling on the client.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationWarning NotificationType = "warning"
	NotificationInfo    NotificationType = "info"
)

// TriggerNotification adds a show-notification event for the toast area.
func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger("show-notification", map[string]any{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// SwapNone keeps htmx from swapping the body. Mutation successes use it
// so only the HX-Trigger events drive the page; the body stays readable
// for plain HTTP clients.
func (b *HTMXResponseBuilder) SwapNone() *HTMXResponseBuilder {
	return b.Header("HX-Reswap", "none")
}

func (b *HTMXResponseBuilder) Body(content []byte) *HTMXResponseBuilder {
	b.body = content
	return b
}

func (b *HTMXResponseBuilder) BodyString(content string) *HTMXResponseBuilder {
	b.body = []byte(content)
	return b
}

func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		if triggerJSON, err := json.Marshal(b.triggers); err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse builds an inline error fragment. The message is escaped.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	escapedMsg := template.HTMLEscapeString(message)
	return NewHTMXResponse().
		Status(statusCode).
		BodyHTML(`<div class="error">` + escapedMsg + `</div>`)
}

func BadRequestError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *HTMXResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func MethodNotAllowedError(allowedMethods string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(http.StatusMethodNotAllowed).
		Header("Allow", allowedMethods)
}

// BackendErrorResponse maps a backend call failure onto an inline error
// fragment. Remote rejections keep their status and message; transport and
// decode problems surface as a bad gateway so the browser can tell "the
// backend said no" apart from "the backend is unreachable".
func BackendErrorResponse(err error) *HTMXResponseBuilder {
	switch api.KindOf(err) {
	case api.ErrRemote:
		status := http.StatusBadGateway
		msg := "Richiesta rifiutata dal backend"
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			if apiErr.Status != 0 {
				status = apiErr.Status
			}
			if apiErr.Message != "" {
				msg = apiErr.Message
			}
		}
		return ErrorResponse(status, msg)
	case api.ErrTransport:
		return ErrorResponse(http.StatusBadGateway, "Backend non raggiungibile")
	case api.ErrDecode:
		return ErrorResponse(http.StatusBadGateway, "Risposta del backend non valida")
	default:
		return InternalServerError("Errore interno")
	}
}
