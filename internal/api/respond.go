package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"
)

var ErrAlreadyResponded = errors.New("response already sent")

// responder writes at most one JSON reply per request. Later attempts are
// refused and logged.
type responder struct {
	w         http.ResponseWriter
	logger    *zap.SugaredLogger
	requestID string
	sent      atomic.Bool
}

func newResponder(w http.ResponseWriter, logger *zap.SugaredLogger, requestID string) *responder {
	return &responder{w: w, logger: logger, requestID: requestID}
}

func (rs *responder) JSON(status int, body any) error {
	if !rs.sent.CompareAndSwap(false, true) {
		rs.logger.Errorw("Refusing second response",
			"request_id", rs.requestID,
			"status", status,
		)
		return ErrAlreadyResponded
	}

	rs.w.Header().Set("Content-Type", "application/json")
	rs.w.WriteHeader(status)
	if err := json.NewEncoder(rs.w).Encode(body); err != nil {
		rs.logger.Errorw("Failed to encode response", "request_id", rs.requestID, "error", err)
		return err
	}
	return nil
}

func (rs *responder) Sent() bool {
	return rs.sent.Load()
}
