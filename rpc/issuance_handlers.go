package rpc

import (
	"context"

	"mintgate/crypto"
	"mintgate/native/issuance"
	"mintgate/observability/metrics"
)

func (s *Server) handleRestrictedIssue(ctx context.Context, c *call) (interface{}, *RPCError) {
	return s.issue(ctx, c, issuance.PhaseRestricted, s.engine.RestrictedIssue)
}

func (s *Server) handleOpenIssue(ctx context.Context, c *call) (interface{}, *RPCError) {
	return s.issue(ctx, c, issuance.PhasePublic, s.engine.OpenIssue)
}

func (s *Server) issue(ctx context.Context, c *call, phase issuance.Phase, apply func(caller [20]byte, quantity uint64) (issuance.Allocation, error)) (interface{}, *RPCError) {
	if rpcErr := expectParams(c.params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	quantity, rpcErr := parseUint64Param(c.params[0], "quantity")
	if rpcErr != nil {
		return nil, rpcErr
	}
	alloc, err := apply(c.caller.Raw(), quantity)
	if err != nil {
		metrics.Issuance().RecordRejection(string(phase), rejectionReason(err))
		return nil, s.engineError(ctx, "issue_"+string(phase), err)
	}
	return AllocationResult{
		Owner:    crypto.FormatAddress(alloc.Owner),
		Phase:    string(alloc.Phase),
		FirstID:  alloc.FirstID,
		LastID:   alloc.LastID,
		Quantity: alloc.Quantity(),
		IssuedAt: alloc.IssuedAt,
	}, nil
}

func (s *Server) handleTokenURI(ctx context.Context, c *call) (interface{}, *RPCError) {
	if rpcErr := expectParams(c.params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseUint64Param(c.params[0], "id")
	if rpcErr != nil {
		return nil, rpcErr
	}
	uri, err := s.engine.ResolveURI(id)
	if err != nil {
		return nil, s.engineError(ctx, "token_uri", err)
	}
	return uri, nil
}

func (s *Server) handleOwnerOf(ctx context.Context, c *call) (interface{}, *RPCError) {
	if rpcErr := expectParams(c.params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseUint64Param(c.params[0], "id")
	if rpcErr != nil {
		return nil, rpcErr
	}
	owner, err := s.engine.OwnerOf(id)
	if err != nil {
		return nil, s.engineError(ctx, "owner_of", err)
	}
	return crypto.FormatAddress(owner), nil
}

func (s *Server) handleBalanceOf(ctx context.Context, c *call) (interface{}, *RPCError) {
	if rpcErr := expectParams(c.params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddressParam(c.params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.engine.BalanceOf(owner.Raw())
	if err != nil {
		return nil, s.engineError(ctx, "balance_of", err)
	}
	return balance, nil
}

func (s *Server) handleTotalIssued(ctx context.Context, c *call) (interface{}, *RPCError) {
	if rpcErr := expectParams(c.params, 0); rpcErr != nil {
		return nil, rpcErr
	}
	total, err := s.engine.TotalIssued()
	if err != nil {
		return nil, s.engineError(ctx, "total_issued", err)
	}
	return total, nil
}
