package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerScoringTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"update_score",
			mcp.WithDescription("Apply a score delta to one side of a live match"),
			mcp.WithString("match_id", mcp.Required(), mcp.Description("Match id")),
			mcp.WithString("side", mcp.Required(), mcp.Description("A|B")),
			mcp.WithNumber("delta", mcp.Required(), mcp.Description("Signed delta; the score never drops below zero")),
		),
		s.handleUpdateScore,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"finalize_match",
			mcp.WithDescription("Record the final score of a match. Repeating the same score is a no-op"),
			mcp.WithString("match_id", mcp.Required(), mcp.Description("Match id")),
			mcp.WithNumber("score_a", mcp.Required(), mcp.Description("Final score of side A")),
			mcp.WithNumber("score_b", mcp.Required(), mcp.Description("Final score of side B")),
		),
		s.handleFinalizeMatch,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_live_score",
			mcp.WithDescription("Read the live score view of a match"),
			mcp.WithString("match_id", mcp.Required(), mcp.Description("Match id")),
		),
		s.handleGetLiveScore,
	)
}

func (s *Server) handleUpdateScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	matchID, err := request.RequireString("match_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	side, err := request.RequireString("side")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	delta, err := requireInt(request, "delta")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	p, err := s.scores.UpdateScore(ctx, matchID, side, delta)
	if err != nil {
		return mapAppError(err), nil
	}
	return toolResult(p), nil
}

func (s *Server) handleFinalizeMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	matchID, err := request.RequireString("match_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	scoreA, err := requireInt(request, "score_a")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	scoreB, err := requireInt(request, "score_b")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	res, err := s.scores.FinalizeMatch(ctx, matchID, scoreA, scoreB)
	if err != nil {
		return mapAppError(err), nil
	}
	return toolResult(res), nil
}

func (s *Server) handleGetLiveScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	matchID, err := request.RequireString("match_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	p, err := s.scores.LiveScore(ctx, matchID)
	if err != nil {
		return mapAppError(err), nil
	}
	return toolResult(p), nil
}
