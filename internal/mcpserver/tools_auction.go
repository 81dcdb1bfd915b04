package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerAuctionTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"place_bid",
			mcp.WithDescription("Place a bid for a team on an open lot"),
			mcp.WithString("lot_id", mcp.Required(), mcp.Description("Lot id")),
			mcp.WithString("team_id", mcp.Required(), mcp.Description("Bidding team id")),
			mcp.WithNumber("amount", mcp.Required(), mcp.Description("Bid amount, must not exceed the team's remaining purse")),
		),
		s.handlePlaceBid,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"mark_sold",
			mcp.WithDescription("Sell a lot to a team. Only one sale per lot succeeds"),
			mcp.WithString("lot_id", mcp.Required(), mcp.Description("Lot id")),
			mcp.WithString("team_id", mcp.Required(), mcp.Description("Buying team id")),
			mcp.WithNumber("amount", mcp.Required(), mcp.Description("Sale price")),
		),
		s.handleMarkSold,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_live_bid",
			mcp.WithDescription("Read the live bid view of a lot"),
			mcp.WithString("lot_id", mcp.Required(), mcp.Description("Lot id")),
		),
		s.handleGetLiveBid,
	)
}

type lotArgs struct {
	LotID  string
	TeamID string
	Amount int64
}

func parseLotArgs(request mcp.CallToolRequest) (lotArgs, *mcp.CallToolResult) {
	lotID, err := request.RequireString("lot_id")
	if err != nil {
		return lotArgs{}, toolError("invalid_request", err.Error())
	}
	teamID, err := request.RequireString("team_id")
	if err != nil {
		return lotArgs{}, toolError("invalid_request", err.Error())
	}
	amount, err := requireInt64(request, "amount")
	if err != nil {
		return lotArgs{}, toolError("invalid_request", err.Error())
	}
	return lotArgs{LotID: lotID, TeamID: teamID, Amount: amount}, nil
}

func (s *Server) handlePlaceBid(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, errResp := parseLotArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	p, err := s.auction.PlaceBid(ctx, args.LotID, args.TeamID, args.Amount)
	if err != nil {
		return mapAppError(err), nil
	}
	return toolResult(p), nil
}

func (s *Server) handleMarkSold(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, errResp := parseLotArgs(request)
	if errResp != nil {
		return errResp, nil
	}
	res, err := s.auction.MarkSold(ctx, args.LotID, args.TeamID, args.Amount)
	if err != nil {
		return mapAppError(err), nil
	}
	return toolResult(res), nil
}

func (s *Server) handleGetLiveBid(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lotID, err := request.RequireString("lot_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	v, err := s.auction.LiveBid(ctx, lotID)
	if err != nil {
		return mapAppError(err), nil
	}
	return toolResult(v), nil
}
