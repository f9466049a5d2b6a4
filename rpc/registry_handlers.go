package rpc

import (
	"context"
	"log/slog"

	"mintgate/crypto"
	"mintgate/native/issuance"
	"mintgate/observability/metrics"
)

// engineError converts an engine failure into its RPC form, logging errors
// that do not map onto a domain code.
func (s *Server) engineError(ctx context.Context, op string, err error) *RPCError {
	rpcErr := domainError(err)
	if rpcErr != nil && rpcErr.Code == codeServerError {
		s.logger.Error("engine operation failed",
			slog.String("requestid", requestIDFromContext(ctx)),
			slog.String("operation", op),
			slog.String("error", err.Error()))
	}
	return rpcErr
}

func (s *Server) handleGrantRole(ctx context.Context, c *call) (interface{}, *RPCError) {
	return s.changeRole(ctx, c, "grant_role", s.engine.GrantRole)
}

func (s *Server) handleRevokeRole(ctx context.Context, c *call) (interface{}, *RPCError) {
	return s.changeRole(ctx, c, "revoke_role", s.engine.RevokeRole)
}

func (s *Server) changeRole(ctx context.Context, c *call, op string, apply func(caller, target [20]byte, role issuance.Role) error) (interface{}, *RPCError) {
	if rpcErr := expectParams(c.params, 2); rpcErr != nil {
		return nil, rpcErr
	}
	target, rpcErr := parseAddressParam(c.params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	role, rpcErr := parseRoleParam(c.params[1])
	if rpcErr != nil {
		return nil, rpcErr
	}
	err := apply(c.caller.Raw(), target.Raw(), role)
	if err != nil {
		metrics.Issuance().RecordAdmin(op, "rejected")
		return nil, s.engineError(ctx, op, err)
	}
	held, err := s.engine.HasRole(target.Raw(), role)
	if err != nil {
		return nil, s.engineError(ctx, "has_role", err)
	}
	return RoleResult{Address: target.String(), Role: role.String(), Held: held}, nil
}

func (s *Server) handleHasRole(ctx context.Context, c *call) (interface{}, *RPCError) {
	if rpcErr := expectParams(c.params, 2); rpcErr != nil {
		return nil, rpcErr
	}
	target, rpcErr := parseAddressParam(c.params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	role, rpcErr := parseRoleParam(c.params[1])
	if rpcErr != nil {
		return nil, rpcErr
	}
	held, err := s.engine.HasRole(target.Raw(), role)
	if err != nil {
		return nil, s.engineError(ctx, "has_role", err)
	}
	return held, nil
}

func (s *Server) handleClassify(ctx context.Context, c *call) (interface{}, *RPCError) {
	if rpcErr := expectParams(c.params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	target, rpcErr := parseAddressParam(c.params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.classify(ctx, target)
}

func (s *Server) handleMyRole(ctx context.Context, c *call) (interface{}, *RPCError) {
	if rpcErr := expectParams(c.params, 0); rpcErr != nil {
		return nil, rpcErr
	}
	return s.classify(ctx, c.caller)
}

func (s *Server) classify(ctx context.Context, target crypto.Address) (interface{}, *RPCError) {
	label, err := s.engine.Classify(target.Raw())
	if err != nil {
		return nil, s.engineError(ctx, "classify", err)
	}
	return string(label), nil
}

func (s *Server) handleSetRestrictedStart(ctx context.Context, c *call) (interface{}, *RPCError) {
	return s.setPhaseStart(ctx, c, "set_restricted_start", s.engine.SetRestrictedStartTime)
}

func (s *Server) handleSetPublicStart(ctx context.Context, c *call) (interface{}, *RPCError) {
	return s.setPhaseStart(ctx, c, "set_public_start", s.engine.SetPublicStartTime)
}

func (s *Server) setPhaseStart(ctx context.Context, c *call, op string, apply func(caller [20]byte, ts int64) error) (interface{}, *RPCError) {
	if rpcErr := expectParams(c.params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	ts, rpcErr := parseInt64Param(c.params[0], "timestamp")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := apply(c.caller.Raw(), ts); err != nil {
		metrics.Issuance().RecordAdmin(op, "rejected")
		return nil, s.engineError(ctx, op, err)
	}
	return s.phases(ctx)
}

func (s *Server) handlePhases(ctx context.Context, c *call) (interface{}, *RPCError) {
	if rpcErr := expectParams(c.params, 0); rpcErr != nil {
		return nil, rpcErr
	}
	return s.phases(ctx)
}

func (s *Server) phases(ctx context.Context) (interface{}, *RPCError) {
	status, err := s.engine.Status()
	if err != nil {
		return nil, s.engineError(ctx, "phases", err)
	}
	return PhasesResult{
		RestrictedStart: status.Clock.RestrictedStart,
		PublicStart:     status.Clock.PublicStart,
		Now:             status.Now,
		RestrictedOpen:  status.RestrictedOpen,
		PublicOpen:      status.PublicOpen,
	}, nil
}
