package mcpserver

import (
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
)

// requireInt64 reads a whole-number argument. Fractional or out of range
// numbers are rejected rather than truncated.
func requireInt64(request mcp.CallToolRequest, key string) (int64, error) {
	v, err := request.RequireFloat(key)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("argument %q must be an integer", key)
	}
	if v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, fmt.Errorf("argument %q is out of range", key)
	}
	return int64(v), nil
}

func requireInt(request mcp.CallToolRequest, key string) (int, error) {
	v, err := requireInt64(request, key)
	if err != nil {
		return 0, err
	}
	if v < math.MinInt || v > math.MaxInt {
		return 0, fmt.Errorf("argument %q is out of range", key)
	}
	return int(v), nil
}
