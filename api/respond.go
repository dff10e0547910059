package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/garnizeh/skillswap/internal/apperr"
	"github.com/garnizeh/skillswap/internal/validation"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// maxBodyBytes caps request bodies read by the handlers.
const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorBody struct {
	Kind       apperr.Kind             `json:"kind"`
	Message    string                  `json:"message"`
	Effects    []string                `json:"effects,omitempty"`
	RolledBack bool                    `json:"rolledBack,omitempty"`
	Fields     []validation.FieldError `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to marshal response", slog.Any("err", err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logger.Error("failed to write response", slog.Any("err", err))
	}
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, envelope{Success: true, Message: message, Data: data}, status)
}

// writeError maps err to a status code and the error envelope. Internal
// errors are logged and their details are not sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validation.RequestValidationError
	if errors.As(err, &ve) {
		writeJSON(w, errorEnvelope{Error: errorBody{
			Kind:    apperr.InvalidRequest,
			Message: ve.Error(),
			Fields:  ve.Fields,
		}}, http.StatusBadRequest)
		return
	}

	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Wrap(apperr.Internal, "Internal server error", err)
	}

	body := errorBody{Kind: ae.Kind, Message: ae.Message, Effects: ae.Effects, RolledBack: ae.RolledBack}
	if ae.Kind == apperr.Internal {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.Any("effects", ae.Effects),
			slog.Any("err", err),
		)
		body.Message = "Internal server error"
	}

	writeJSON(w, errorEnvelope{Error: body}, ae.HTTPStatus())
}

// decodeJSON reads the body into dst and validates it when it carries
// validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	return unmarshalAndValidate(body, dst)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Wrap(apperr.InvalidRequest, "Request body too large", err)
		}
		return nil, apperr.Wrap(apperr.InvalidRequest, "Unable to read request body", err)
	}
	return body, nil
}

func unmarshalAndValidate(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Wrap(apperr.InvalidRequest, "Invalid request body", err)
	}
	return validation.ValidateStruct(dst)
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.InvalidRequest, "Invalid id")
	}
	return id, nil
}

// queryInt returns the integer query parameter key, or def when it is
// missing or malformed.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
