package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bnema/seedpool/internal/domain"
)

const maxSeedBodyBytes int64 = 16 << 10

type seedRequestBody struct {
	Size          *int   `json:"size"`
	ClientEntropy string `json:"clientEntropy"`
	Purpose       string `json:"purpose"`
}

type seedResponse struct {
	Seed      string `json:"seed"`
	Timestamp string `json:"timestamp"`
	Signature string `json:"signature"`
	RequestID string `json:"requestId"`
	Degraded  bool   `json:"degraded,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
	Error     string `json:"error,omitempty"`
}

// decodeSeedBody reads the optional request body; an empty body selects every
// default. Oversized, malformed or trailing input is an invalid request.
func decodeSeedBody(w http.ResponseWriter, r *http.Request) (seedRequestBody, error) {
	var body seedRequestBody
	if r.Body == nil || r.Body == http.NoBody {
		return body, nil
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSeedBodyBytes))
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return seedRequestBody{}, nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return seedRequestBody{}, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrInvalidRequest, maxSeedBodyBytes)
		}
		return seedRequestBody{}, fmt.Errorf("%w: decode body: %w", domain.ErrInvalidRequest, err)
	}
	if dec.More() {
		return seedRequestBody{}, fmt.Errorf("%w: unexpected data after JSON body", domain.ErrInvalidRequest)
	}

	return body, nil
}

func newSeedResponse(result domain.SeedResult) seedResponse {
	return seedResponse{
		Seed:      result.SeedHex(),
		Timestamp: result.Timestamp.Format(time.RFC3339Nano),
		Signature: result.Signature,
		RequestID: result.RequestID,
		Degraded:  result.Degraded,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.clock.Now().Format(time.RFC3339Nano),
	})
}

// handleGetSeed always answers 200 with a usable seed. Anything that stops
// the normal path, including a panic, yields a fallback seed flagged with
// the error.
func (s *Server) handleGetSeed(w http.ResponseWriter, r *http.Request) {
	cred := credentialFromContext(r.Context())
	size := domain.DefaultSeedSize

	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("seed handler panicked", "panic", rec)
			s.respondFallback(w, size, cred.Key, fmt.Errorf("internal error: %v", rec))
		}
	}()

	body, err := decodeSeedBody(w, r)
	if err != nil {
		s.respondFallback(w, size, cred.Key, err)
		return
	}
	if body.Size != nil {
		size = *body.Size
	}

	req, err := domain.ParseSeedRequest(body.Size, body.ClientEntropy, body.Purpose)
	if err != nil {
		s.respondFallback(w, size, cred.Key, err)
		return
	}

	result, err := s.seeds.Extract(r.Context(), req, cred.Key)
	if err != nil {
		s.respondFallback(w, size, cred.Key, err)
		return
	}

	respondJSON(w, http.StatusOK, newSeedResponse(result))
}

func (s *Server) respondFallback(w http.ResponseWriter, size int, credential string, cause error) {
	result := s.seeds.FallbackSeed(size, credential)
	s.logger.Warn("serving fallback seed", "request_id", result.RequestID, "error", cause)

	response := newSeedResponse(result)
	response.Fallback = true
	response.Error = cause.Error()
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.seeds.Stats())
}
