package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"vidyaguide/internal/domain"
	"vidyaguide/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	maxUploadBytes    = 10 << 20
	errorNotFound     = "NOT_FOUND"
	errorMethod       = "METHOD_NOT_ALLOWED"
)

type ChatUseCase interface {
	Reply(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	History(ctx context.Context, conversationID string) (usecase.HistoryOutput, error)
}

type AnalyzeUseCase interface {
	Analyze(ctx context.Context, in usecase.AnalyzeInput) (domain.ResumeAnalysis, error)
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

type chatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversationId,omitempty"`
}

type historyResponse struct {
	ConversationID string            `json:"conversationId"`
	Total          int               `json:"total"`
	Exchanges      []domain.Exchange `json:"exchanges"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Handler serves the chat API from API Gateway proxy events.
type Handler struct {
	chat    ChatUseCase
	analyze AnalyzeUseCase
	log     *slog.Logger
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

func NewHandler(chat ChatUseCase, analyze AnalyzeUseCase, opts ...Option) (*Handler, error) {
	if chat == nil {
		return nil, errors.New("handler: chat use case must not be nil")
	}
	if analyze == nil {
		return nil, errors.New("handler: analyze use case must not be nil")
	}
	h := &Handler{chat: chat, analyze: analyze, log: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle routes one API Gateway request. Failures are reported in the
// response; the returned error is always nil so Lambda never retries.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := headerValue(req.Headers, correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	log := h.log.With("correlation_id", corrID, "method", req.HTTPMethod, "path", req.Path)

	var resp events.APIGatewayProxyResponse
	switch route := strings.TrimRight(req.Path, "/"); route {
	case "/chatbot":
		resp = h.onlyMethod(req, http.MethodPost, func() events.APIGatewayProxyResponse { return h.handleChat(ctx, log, req) })
	case "/history":
		resp = h.onlyMethod(req, http.MethodGet, func() events.APIGatewayProxyResponse { return h.handleHistory(ctx, log, req) })
	case "/analyze":
		resp = h.onlyMethod(req, http.MethodPost, func() events.APIGatewayProxyResponse { return h.handleAnalyze(ctx, log, req) })
	default:
		resp = jsonResponse(http.StatusNotFound, errorResponse{Error: errorNotFound, Message: "no route for " + req.Path})
	}

	resp.Headers[correlationHeader] = corrID
	log.Info("request handled", "status", resp.StatusCode)
	return resp, nil
}

func (h *Handler) onlyMethod(req events.APIGatewayProxyRequest, method string, next func() events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if !strings.EqualFold(req.HTTPMethod, method) {
		resp := jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: errorMethod, Message: method + " required"})
		resp.Headers["Allow"] = method
		return resp
	}
	return next()
}

func (h *Handler) handleChat(ctx context.Context, log *slog.Logger, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	body, err := requestBody(req)
	if err != nil {
		return invalidInput(err.Error())
	}
	var in chatRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return invalidInput("body must be a JSON object with a message field")
	}

	out, err := h.chat.Reply(ctx, usecase.ChatInput{Message: in.Message, ConversationID: in.ConversationID})
	if err != nil {
		return h.errorFor(log, err)
	}
	return jsonResponse(http.StatusOK, chatResponse{Reply: out.Reply, ConversationID: out.ConversationID})
}

func (h *Handler) handleHistory(ctx context.Context, log *slog.Logger, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	out, err := h.chat.History(ctx, req.QueryStringParameters["conversationId"])
	if err != nil {
		return h.errorFor(log, err)
	}
	return jsonResponse(http.StatusOK, historyResponse{
		ConversationID: out.ConversationID,
		Total:          out.Total,
		Exchanges:      out.Exchanges,
	})
}

func (h *Handler) handleAnalyze(ctx context.Context, log *slog.Logger, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	filename, content, err := uploadedFile(req, "file")
	if err != nil {
		return invalidInput(err.Error())
	}

	out, err := h.analyze.Analyze(ctx, usecase.AnalyzeInput{Filename: filename, Content: content})
	if err != nil {
		return h.errorFor(log, err)
	}
	return jsonResponse(http.StatusOK, out)
}

func (h *Handler) errorFor(log *slog.Logger, err error) events.APIGatewayProxyResponse {
	ue := usecase.AsError(err)
	status := statusFor(ue.Code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "code", ue.Code, "reason", ue.Reason, "err", err)
	} else {
		log.Warn("request rejected", "code", ue.Code, "reason", ue.Reason)
	}
	return jsonResponse(status, errorResponse{Error: string(ue.Code), Message: ue.Reason})
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests
	case usecase.ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func invalidInput(msg string) events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: msg})
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	b, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return nil, errors.New("body is not valid base64")
	}
	return b, nil
}

// errMissingFile carries the same reason the analyze use case reports for an
// empty upload.
var errMissingFile = errors.New("missing_file")

// uploadedFile reads the named file field from a multipart/form-data body.
func uploadedFile(req events.APIGatewayProxyRequest, field string) (string, []byte, error) {
	mediaType, params, err := mime.ParseMediaType(headerValue(req.Headers, "Content-Type"))
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		return "", nil, errors.New("upload a PDF file as multipart/form-data")
	}
	body, err := requestBody(req)
	if err != nil {
		return "", nil, err
	}

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, errMissingFile
		}
		if err != nil {
			return "", nil, errors.New("malformed multipart body")
		}
		if part.FormName() != field || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		content, err := io.ReadAll(io.LimitReader(part, maxUploadBytes+1))
		_ = part.Close()
		if err != nil {
			return "", nil, errors.New("malformed multipart body")
		}
		if len(content) > maxUploadBytes {
			return "", nil, errors.New("file exceeds 10MB")
		}
		return part.FileName(), content, nil
	}
}
