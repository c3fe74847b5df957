// Package mcpadapter exposes question answering as a Model Context Protocol tool.
package mcpadapter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/whitepaper-qa/internal/core/ports"
)

const askToolName = "ask_documents"

type Server struct {
	queryUC ports.QuestionAnswerer
	logger  *slog.Logger
	mcp     *server.MCPServer
}

func New(queryUC ports.QuestionAnswerer, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		queryUC: queryUC,
		logger:  logger,
		mcp:     server.NewMCPServer("whitepaper-qa", version, server.WithToolCapabilities(false)),
	}
	s.mcp.AddTool(askTool(), s.handleAsk)
	return s
}

func askTool() mcp.Tool {
	return mcp.NewTool(askToolName,
		mcp.WithDescription("Answer a question from the ingested whitepapers. Returns the answer and the reference document."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Natural language question about the documents"),
		),
	)
}

// ServeStdio runs the protocol over in/out until ctx is done or the client disconnects.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	answer, err := s.queryUC.Answer(ctx, question)
	if err != nil {
		s.logger.Warn("mcp_ask_failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	payload, err := json.Marshal(answer)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(payload)), nil
}
