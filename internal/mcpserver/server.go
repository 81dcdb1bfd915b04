// Package mcpserver exposes the scorer and auctioneer commands as MCP tools so
// agents can drive matches and auctions over the streamable HTTP transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"courtpulse/internal/app/apperr"
	"courtpulse/internal/app/auction"
	"courtpulse/internal/app/livescore"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type Server struct {
	scores  *livescore.Coordinator
	auction *auction.Coordinator

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(scores *livescore.Coordinator, a *auction.Coordinator) *Server {
	mcpSrv := server.NewMCPServer(
		"courtpulse",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		scores:     scores,
		auction:    a,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerScoringTools()
	s.registerAuctionTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"match://{match_id}/live",
			"match_live_score",
			mcp.WithTemplateDescription("Live score view of a match"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.readMatchResource,
	)
}

func (s *Server) readMatchResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	raw := request.Params.URI
	if !strings.HasPrefix(raw, "match://") || !strings.HasSuffix(raw, "/live") {
		return nil, apperr.InvalidRequest("resource uri must be match://{match_id}/live")
	}
	matchID := strings.TrimSuffix(strings.TrimPrefix(raw, "match://"), "/live")
	if matchID == "" {
		return nil, apperr.InvalidRequest("match_id is required")
	}
	p, err := s.scores.LiveScore(ctx, matchID)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      raw,
			MIMEType: "application/json",
			Text:     string(payload),
		},
	}, nil
}
