// Package mcptool exposes the simwatch database to MCP clients: the
// leaderboard, per-entity lookups, recent alerts, and stats.
package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/simwatch/kit"
	"github.com/hazyhaar/simwatch/score"
	"github.com/hazyhaar/simwatch/store"
)

// Service wraps the store for MCP exposure.
type Service struct {
	st *store.Store
}

// New creates a Service.
func New(st *store.Store) *Service {
	return &Service{st: st}
}

// RegisterMCP registers all simwatch tools on an MCP server.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	svc.registerTopEntities(srv)
	svc.registerSearchEntity(srv)
	svc.registerRecentAlerts(srv)
	svc.registerStats(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (svc *Service) registerTopEntities(srv *mcp.Server) {
	type req struct {
		Limit int `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "simwatch_top_entities",
		Description: "List watched providers ranked by registration leniency score (most lenient first)",
		InputSchema: inputSchema(map[string]any{
			"limit": map[string]any{"type": "integer", "description": "Max entries (default 10)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		top, err := svc.st.TopEntities(ctx, p.Limit)
		if err != nil {
			return nil, err
		}
		type entry struct {
			*store.StoredSnapshot
			Band string `json:"band"`
		}
		out := make([]entry, 0, len(top))
		for _, snap := range top {
			out = append(out, entry{snap, score.Band(snap.Score)})
		}
		return out, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (svc *Service) registerSearchEntity(srv *mcp.Server) {
	type req struct {
		Name         string `json:"name"`
		HistoryLimit int    `json:"history_limit"`
	}

	tool := &mcp.Tool{
		Name:        "simwatch_search_entity",
		Description: "Get the latest leniency snapshot and score history for one provider",
		InputSchema: inputSchema(map[string]any{
			"name":          map[string]any{"type": "string", "description": "Provider name"},
			"history_limit": map[string]any{"type": "integer", "description": "Max history rows (default 20)"},
		}, []string{"name"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if p.Name == "" {
			return nil, errors.New("name is required")
		}
		latest, err := svc.st.LatestSnapshot(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		if latest == nil {
			return nil, fmt.Errorf("entity %q has never been scored", p.Name)
		}
		limit := p.HistoryLimit
		if limit <= 0 {
			limit = 20
		}
		history, err := svc.st.EntityHistory(ctx, p.Name, time.Time{}, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"latest":  latest,
			"band":    score.Band(latest.Score),
			"history": history,
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (svc *Service) registerRecentAlerts(srv *mcp.Server) {
	type req struct {
		Since string `json:"since"`
		Limit int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "simwatch_recent_alerts",
		Description: "List recent significant score changes (new entities, relaxed or tightened registration)",
		InputSchema: inputSchema(map[string]any{
			"since": map[string]any{"type": "string", "description": "RFC3339 cutoff (default: no cutoff)"},
			"limit": map[string]any{"type": "integer", "description": "Max entries (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		var since time.Time
		if p.Since != "" {
			t, err := time.Parse(time.RFC3339, p.Since)
			if err != nil {
				return nil, fmt.Errorf("since must be RFC3339: %w", err)
			}
			since = t
		}
		return svc.st.RecentChanges(ctx, since, p.Limit)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (svc *Service) registerStats(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "simwatch_stats",
		Description: "Aggregate counters: entities, snapshots, changes, cycles, last cycle time",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return svc.st.Stats(ctx)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

// decodeInto unmarshals MCP arguments into a typed request.
func decodeInto[T any](r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var p T
	if len(r.Params.Arguments) > 0 {
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &p}, nil
}
