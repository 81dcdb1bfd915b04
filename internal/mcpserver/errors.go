package mcpserver

import (
	"errors"
	"fmt"

	"courtpulse/internal/app/apperr"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	return toolErrorWith(code, message, nil)
}

func toolErrorWith(code, message string, extra map[string]any) *mcp.CallToolResult {
	body := map[string]any{
		"code":    code,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	result := mcp.NewToolResultStructured(
		map[string]any{"error": body},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

func mapAppError(err error) *mcp.CallToolResult {
	var conflict *apperr.ConflictError
	var funds *apperr.InsufficientFundsError
	switch {
	case err == nil:
		return toolError("internal_error", "unknown error")
	case errors.As(err, &funds):
		return toolErrorWith("insufficient_funds", err.Error(), map[string]any{"remaining_purse": funds.Remaining})
	case errors.As(err, &conflict):
		return toolError(conflict.Code, conflict.Code)
	case errors.Is(err, apperr.ErrInvalidRequest):
		return toolError("invalid_request", err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return toolError("not_found", err.Error())
	case apperr.Retryable(err):
		return toolErrorWith("store_unavailable", err.Error(), map[string]any{"retryable": true})
	default:
		return toolError("internal_error", err.Error())
	}
}
