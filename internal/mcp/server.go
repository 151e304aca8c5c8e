package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pccr10001/mbpd/internal/providers"
	"github.com/pccr10001/mbpd/pkg/logger"
)

// Source yields the provider database to answer from. It is called per
// tool invocation so reloads take effect immediately.
type Source interface {
	Get() *providers.Database
}

type Server struct {
	source    Source
	mcpServer *mcp.Server
}

type LookupMCCMNCInput struct {
	MCCMNC string `json:"mccmnc" jsonschema:"MCC followed by MNC, 5 or 6 digits, e.g. 310410"`
}

type LookupCDMASIDInput struct {
	SID uint32 `json:"sid" jsonschema:"CDMA system identifier"`
}

type GetCountryInput struct {
	Code string `json:"code" jsonschema:"ISO 3166 alpha-2 country code"`
}

func NewServer(source Source, version string) *Server {
	s := &Server{
		source: source,
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    "mbpd",
			Version: version,
		}, nil),
	}

	mcp.AddTool(s.mcpServer,
		&mcp.Tool{
			Name:        "lookup_mccmnc",
			Description: "Find the mobile carrier and its APN settings for an MCC/MNC network code.",
		},
		s.lookupMCCMNC,
	)
	mcp.AddTool(s.mcpServer,
		&mcp.Tool{
			Name:        "lookup_cdma_sid",
			Description: "Find the CDMA carrier operating a system identifier (SID).",
		},
		s.lookupCDMASID,
	)
	mcp.AddTool(s.mcpServer,
		&mcp.Tool{
			Name:        "get_country",
			Description: "List the carriers of a country with their access settings.",
		},
		s.getCountry,
	)
	return s
}

func (s *Server) lookupMCCMNC(_ context.Context, _ *mcp.CallToolRequest, args LookupMCCMNCInput) (*mcp.CallToolResult, any, error) {
	code := strings.TrimSpace(args.MCCMNC)
	mcc, mnc, ok := providers.SplitMCCMNC(code)
	if !ok {
		return toolError(fmt.Sprintf("%q is not a 5 or 6 digit MCC/MNC", args.MCCMNC))
	}
	p := s.source.Get().LookupMCCMNC(code)
	if p == nil {
		return toolError("No provider found for MCC " + mcc + " MNC " + mnc)
	}
	return toolJSON(map[string]any{"mcc": mcc, "mnc": mnc, "provider": p})
}

func (s *Server) lookupCDMASID(_ context.Context, _ *mcp.CallToolRequest, args LookupCDMASIDInput) (*mcp.CallToolResult, any, error) {
	p := s.source.Get().LookupCDMASID(args.SID)
	if p == nil {
		return toolError(fmt.Sprintf("No provider found for SID %d", args.SID))
	}
	return toolJSON(map[string]any{"sid": args.SID, "provider": p})
}

func (s *Server) getCountry(_ context.Context, _ *mcp.CallToolRequest, args GetCountryInput) (*mcp.CallToolResult, any, error) {
	country := s.source.Get().LookupCountry(args.Code)
	if country == nil {
		return toolError(fmt.Sprintf("Unknown country code %q", args.Code))
	}
	return toolJSON(country)
}

// HTTPHandler serves the tools over streamable HTTP.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server {
			return s.mcpServer
		},
		&mcp.StreamableHTTPOptions{Stateless: true},
	)
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Log.Errorf("MCP: marshal result: %v", err)
		return toolError("Failed to encode result: " + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func toolError(message string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}, nil, nil
}
