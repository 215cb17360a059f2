// Package dispatch - диспетчер операций коннектора. Находит обработчик по
// идентификатору операции, разбирает параметры, открывает фасад через
// Provider и переводит ошибки фасада в HTTP статусы хоста.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"files_connector/internal/transfer"
)

// Коды ошибок в ответе хосту
const (
	ErrorCodeFailed         = "ServiceOperationFailed"
	ErrorCodeNotImplemented = "ServiceOperationNotImplemented"
)

const defaultTimeout = 60 * time.Second

// unknownOperation - метка метрик и имя span для идентификаторов без обработчика
const unknownOperation = "unknown"

// Response - успешный результат операции
type Response struct {
	Status int `json:"-"`
	Body   any `json:"body"`
}

// ProviderError - ошибка операции в терминах хоста.
// Message и InnerError уже очищены от секретов.
type ProviderError struct {
	HTTPStatus int
	ErrorCode  string
	Message    string
	InnerError string
	Cause      error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Request - один вызов операции
type Request struct {
	OperationID  string
	InvocationID string
	Binding      Binding
	Params       Params
}

// Options - настройки диспетчера
type Options struct {
	Service        string
	Provider       transfer.Provider
	Timeout        time.Duration
	StrictBooleans bool
	Logger         zerolog.Logger
	Tracer         trace.Tracer
}

// Dispatcher - неизменяемый после создания реестр обработчиков
type Dispatcher struct {
	service  string
	handlers map[string]Handler
	provider transfer.Provider
	timeout  time.Duration
	strict   bool
	log      zerolog.Logger
	tracer   trace.Tracer
}

// New создаёт диспетчер для одного сервиса
func New(opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("files_connector/dispatch")
	}
	return &Dispatcher{
		service:  opts.Service,
		handlers: defaultHandlers(),
		provider: opts.Provider,
		timeout:  opts.Timeout,
		strict:   opts.StrictBooleans,
		log:      opts.Logger.With().Str("service", opts.Service).Logger(),
		tracer:   opts.Tracer,
	}
}

// Service возвращает идентификатор сервиса
func (d *Dispatcher) Service() string {
	return d.service
}

// Operations возвращает идентификаторы операций, у которых есть обработчик
func (d *Dispatcher) Operations() []string {
	ids := make([]string, 0, len(d.handlers))
	for id := range d.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Invoke выполняет операцию. Ошибка всегда имеет тип *ProviderError.
func (d *Dispatcher) Invoke(ctx context.Context, req Request) (Response, error) {
	if req.InvocationID == "" {
		req.InvocationID = uuid.NewString()
	}
	start := time.Now()
	label := d.operationLabel(req.OperationID)

	ctx, span := d.tracer.Start(ctx, "dispatch."+label, trace.WithAttributes(
		attribute.String("service", d.service),
		attribute.String("operation", label),
		attribute.String("invocation.id", req.InvocationID),
	))
	defer span.End()

	log := d.log.With().
		Str("operation", req.OperationID).
		Str("invocation_id", req.InvocationID).
		Logger()

	conn := bind(req.Binding, req.OperationID)
	body, err := d.invoke(ctx, req, conn)
	elapsed := time.Since(start)

	status := http.StatusOK
	var perr *ProviderError
	if err != nil {
		perr = mapError(err, conn.scrub)
		status = perr.HTTPStatus
	}

	promOperations.WithLabelValues(d.service, label, strconv.Itoa(status)).Inc()
	promOperationDuration.WithLabelValues(d.service, label).Observe(elapsed.Seconds())
	span.SetAttributes(attribute.Int("http.status_code", status))

	if perr != nil {
		span.SetStatus(codes.Error, perr.Message)
		event := log.Warn()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.Int("status", status).Dur("duration", elapsed).Str("error", perr.Message).Msg("operation failed")
		return Response{}, perr
	}

	log.Info().Int("status", status).Dur("duration", elapsed).Msg("operation completed")
	return Response{Status: status, Body: body}, nil
}

// operationLabel ограничивает набор меток известными операциями,
// идентификатор приходит из пути запроса
func (d *Dispatcher) operationLabel(id string) string {
	if _, ok := d.handlers[id]; ok || id == OperationTrigger {
		return id
	}
	return unknownOperation
}

func (d *Dispatcher) invoke(ctx context.Context, req Request, conn *boundConnection) (any, error) {
	handler, ok := d.handlers[req.OperationID]
	if !ok {
		return nil, &transfer.Error{
			Kind:    transfer.KindNotImplemented,
			Message: fmt.Sprintf("operation %s is not implemented", req.OperationID),
		}
	}

	share, err := req.Params.Required(ParamFileShare)
	if err != nil {
		return nil, err
	}

	encoding := transfer.EncodingText
	if conn.Bool(ParamUseBinaryMode, false) {
		encoding = transfer.EncodingBase64
	}
	args, err := handler.Validate(Input{
		Share:          share,
		Params:         req.Params,
		Encoding:       encoding,
		StrictBooleans: d.strict,
	})
	if err != nil {
		return nil, err
	}
	conn.remember(ParamBlobConnection, args.Blob.Connection)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if d.provider == nil {
		return nil, transfer.Failed("open", "", fmt.Errorf("no provider configured for service %s", d.service))
	}
	facade, err := d.provider.Open(ctx, conn)
	if err != nil {
		if transfer.KindOf(err) == transfer.KindBadRequest {
			return nil, err
		}
		return nil, transfer.FromContextOrFailed("open", "", err)
	}

	return d.run(ctx, req.OperationID, func(ctx context.Context) (any, error) {
		return handler.Execute(ctx, facade, args)
	})
}

type outcome struct {
	body any
	err  error
}

// run выполняет операцию в отдельной горутине и ждёт её завершения или отмены контекста
func (d *Dispatcher) run(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: transfer.Failed(op, "", fmt.Errorf("panic: %v", r))}
			}
		}()
		body, err := fn(ctx)
		done <- outcome{body: body, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return nil, transfer.FromContext(op, "", o.err)
		}
		return o.body, nil
	case <-ctx.Done():
		return nil, transfer.FromContext(op, "", ctx.Err())
	}
}

// mapError переводит любую ошибку в ProviderError. Функция полная:
// неизвестные ошибки дают 500.
func mapError(err error, scrub func(string) string) *ProviderError {
	kind := transfer.KindOf(err)
	code := ErrorCodeFailed
	if kind == transfer.KindNotImplemented {
		code = ErrorCodeNotImplemented
	}

	perr := &ProviderError{
		HTTPStatus: kind.StatusCode(),
		ErrorCode:  code,
		Message:    scrub(err.Error()),
		Cause:      err,
	}
	var te *transfer.Error
	if errors.As(err, &te) && te.Cause != nil {
		perr.InnerError = scrub(te.Cause.Error())
	}
	return perr
}
