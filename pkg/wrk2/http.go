package wrk2

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"socialfeed/pkg/errs"
	"socialfeed/pkg/model"

	"github.com/pkg/errors"
)

const maxBodyBytes = 1 << 20

type postCreatedRequest struct {
	PostID int64 `json:"post_id"`
}

type acceptedResponse struct {
	ReqID  int64 `json:"req_id"`
	PostID int64 `json:"post_id"`
}

type feedResponse struct {
	UserID  int64   `json:"user_id"`
	PostIDs []int64 `json:"post_ids"`
}

type originalResponse struct {
	PostID   int64       `json:"post_id"`
	Original *model.Post `json:"original"`
}

type mentionRequest struct {
	Text        string            `json:"-"`
	RawText     json.RawMessage   `json:"text"`
	ActorID     int64             `json:"actor_id"`
	ContentType model.ContentType `json:"content_type"`
	Notify      bool              `json:"notify"`
}

type mentionsResponse struct {
	Mentions []model.Mention `json:"mentions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func ptr[T any](v T) *T {
	return &v
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errs.Validation("reading request body: %s", err.Error())
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errs.Validation("malformed request body: %s", err.Error())
	}
	return nil
}

// decodeMentionRequest rejects a text field that is missing or not a JSON
// string instead of coercing it.
func decodeMentionRequest(r *http.Request) (mentionRequest, error) {
	var req mentionRequest
	if err := decodeBody(r, &req); err != nil {
		return mentionRequest{}, err
	}
	if len(req.RawText) == 0 || req.RawText[0] != '"' {
		return mentionRequest{}, errs.Validation("text must be a string")
	}
	if err := json.Unmarshal(req.RawText, &req.Text); err != nil {
		return mentionRequest{}, errs.Validation("malformed text: %s", err.Error())
	}
	return req, nil
}

// queryInt64 reads an integer query parameter. A nil fallback makes the
// parameter required.
func queryInt64(r *http.Request, name string, fallback *int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		if fallback == nil {
			return 0, errs.Validation("missing query parameter %q", name)
		}
		return *fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errs.Validation("query parameter %q is not an integer", name)
	}
	return v, nil
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errs.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
