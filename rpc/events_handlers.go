package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"mintgate/storage/eventlog"
)

func (s *Server) handleEventsList(ctx context.Context, c *call) (interface{}, *RPCError) {
	if len(c.params) > 1 {
		return nil, invalidParams("too many parameters", nil)
	}
	if s.events == nil {
		return nil, newError(http.StatusServiceUnavailable, codeServerError, "event log unavailable", nil)
	}
	var filter eventlog.Filter
	if len(c.params) == 1 {
		raw := bytes.TrimSpace(c.params[0])
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&filter); err != nil {
				return nil, invalidParams("invalid filter", err.Error())
			}
		}
	}
	if filter.Limit < 0 || filter.AfterID < 0 {
		return nil, invalidParams("limit and afterId must be non-negative", nil)
	}
	entries, err := s.events.List(ctx, filter)
	if err != nil {
		s.logger.Error("event log query failed",
			slog.String("requestid", requestIDFromContext(ctx)),
			slog.String("error", err.Error()))
		return nil, newError(http.StatusInternalServerError, codeServerError, "internal error", nil)
	}
	return entries, nil
}
