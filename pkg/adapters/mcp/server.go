// Package mcp exposes the transition engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/flowra"
	"github.com/aretw0/flowra/internal/logging"
	"github.com/aretw0/flowra/internal/runtime"
	"github.com/aretw0/flowra/pkg/domain"
	"github.com/aretw0/flowra/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// InstanceArgs locate one (entity, workflow) pair.
type InstanceArgs struct {
	Workflow  string `json:"workflow"`
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
}

type ApplyArgs struct {
	InstanceArgs
	Transition string   `json:"transition"`
	AppliedBy  string   `json:"applied_by,omitempty"`
	Comment    string `json:"comment,omitempty"`
}

type JumpArgs struct {
	InstanceArgs
	Target    string `json:"target"`
	JumpKey   string `json:"jump_key,omitempty"`
	AppliedBy string `json:"applied_by,omitempty"`
}

// StateResponse is returned by every tool touching an instance.
type StateResponse struct {
	Current     domain.StateID   `json:"current" jsonschema_description:"The state the entity is in"`
	Available   []string         `json:"available" jsonschema_description:"Transitions leaving the current state"`
	Applied     *domain.Record   `json:"applied,omitempty" jsonschema_description:"The history entry written by this call"`
	History     []*domain.Record `json:"history,omitempty" jsonschema_description:"Applied transitions, oldest first"`
	ActionError string           `json:"action_error,omitempty" jsonschema_description:"Failure of a post-commit action"`
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    *runtime.Engine
	entities  ports.EntityResolver
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer registers the tools and one definition resource per workflow type.
func NewServer(engine *runtime.Engine, entities ports.EntityResolver, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		entities:  entities,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("flowra-mcp", flowra.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. to serve it over SSE.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func instanceParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Workflow type")),
		mcp.WithString("owner_type", mcp.Required(), mcp.Description("Type of the owning entity")),
		mcp.WithString("owner_id", mcp.Required(), mcp.Description("Identifier of the owning entity")),
	}
}

func (s *Server) registerTools() {
	applyTool := mcp.NewTool("apply_transition", append(instanceParams(),
		mcp.WithDescription("Apply a registered transition to an entity."),
		mcp.WithString("transition", mcp.Required(), mcp.Description("Transition key")),
		mcp.WithString("applied_by", mcp.Description("Who applies the transition")),
		mcp.WithString("comment", mcp.Description("Comment stored with the history entry")),
		mcp.WithOutputSchema[StateResponse](),
	)...)
	s.mcpServer.AddTool(applyTool, mcp.NewStructuredToolHandler(s.handleApply))

	jumpTool := mcp.NewTool("jump_to", append(instanceParams(),
		mcp.WithDescription("Force an entity into a state, bypassing guards and actions."),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target state")),
		mcp.WithString("jump_key", mcp.Description("Key recorded in history (default: reset)")),
		mcp.WithString("applied_by", mcp.Description("Who performs the jump")),
		mcp.WithOutputSchema[StateResponse](),
	)...)
	s.mcpServer.AddTool(jumpTool, mcp.NewStructuredToolHandler(s.handleJump))

	currentTool := mcp.NewTool("current_state", append(instanceParams(),
		mcp.WithDescription("Get the current state and the transitions available from it."),
		mcp.WithOutputSchema[StateResponse](),
	)...)
	s.mcpServer.AddTool(currentTool, mcp.NewStructuredToolHandler(s.handleCurrent))

	historyTool := mcp.NewTool("history", append(instanceParams(),
		mcp.WithDescription("List the transitions applied to an entity, oldest first."),
		mcp.WithOutputSchema[StateResponse](),
	)...)
	s.mcpServer.AddTool(historyTool, mcp.NewStructuredToolHandler(s.handleHistory))

	s.mcpServer.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("List the registered workflow types."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, _ := json.Marshal(s.engine.Cache().Registry().Types())
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) instance(ctx context.Context, args InstanceArgs) (*runtime.Instance, error) {
	if args.Workflow == "" || args.OwnerType == "" || args.OwnerID == "" {
		return nil, errors.New("workflow, owner_type and owner_id are required")
	}
	ent, err := s.entities.Resolve(ctx, args.OwnerType, args.OwnerID)
	if err != nil {
		return nil, err
	}
	return s.engine.For(ent, args.Workflow), nil
}

func (s *Server) describe(ctx context.Context, inst *runtime.Instance) (StateResponse, error) {
	current, err := inst.CurrentState(ctx)
	if err != nil {
		return StateResponse{}, err
	}
	available, err := inst.Available(ctx)
	if err != nil {
		return StateResponse{}, err
	}
	resp := StateResponse{Current: current, Available: []string{}}
	for _, t := range available {
		resp.Available = append(resp.Available, t.Key)
	}
	return resp, nil
}

func (s *Server) handleApply(ctx context.Context, request mcp.CallToolRequest, args ApplyArgs) (StateResponse, error) {
	inst, err := s.instance(ctx, args.InstanceArgs)
	if err != nil {
		return StateResponse{}, err
	}
	opts := []runtime.ApplyOption{runtime.WithAppliedBy(args.AppliedBy)}
	if args.Comment != "" {
		opts = append(opts, runtime.WithComment(args.Comment))
	}
	res, err := inst.Apply(ctx, args.Transition, opts...)
	if err != nil {
		s.logger.Debug("mcp apply rejected", "transition", args.Transition, "error", err)
		return StateResponse{}, fmt.Errorf("apply failed: %w", err)
	}
	resp, err := s.describe(ctx, inst)
	if err != nil {
		return StateResponse{}, err
	}
	resp.Applied = res.Applied
	if err := res.Err(); err != nil {
		resp.ActionError = err.Error()
	}
	return resp, nil
}

func (s *Server) handleJump(ctx context.Context, request mcp.CallToolRequest, args JumpArgs) (StateResponse, error) {
	inst, err := s.instance(ctx, args.InstanceArgs)
	if err != nil {
		return StateResponse{}, err
	}
	res, err := inst.JumpTo(ctx, domain.StateID(args.Target), args.JumpKey, args.AppliedBy)
	if err != nil {
		return StateResponse{}, fmt.Errorf("jump failed: %w", err)
	}
	resp, err := s.describe(ctx, inst)
	if err != nil {
		return StateResponse{}, err
	}
	resp.Applied = res.Applied
	return resp, nil
}

func (s *Server) handleCurrent(ctx context.Context, request mcp.CallToolRequest, args InstanceArgs) (StateResponse, error) {
	inst, err := s.instance(ctx, args)
	if err != nil {
		return StateResponse{}, err
	}
	return s.describe(ctx, inst)
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest, args InstanceArgs) (StateResponse, error) {
	inst, err := s.instance(ctx, args)
	if err != nil {
		return StateResponse{}, err
	}
	resp, err := s.describe(ctx, inst)
	if err != nil {
		return StateResponse{}, err
	}
	resp.History, err = inst.History(ctx)
	return resp, err
}

func definitionURI(workflow string) string {
	return "flowra://workflows/" + workflow
}

func (s *Server) registerResources() {
	for _, typ := range s.engine.Cache().Registry().Types() {
		uri := definitionURI(typ)
		s.mcpServer.AddResource(mcp.NewResource(uri, typ+" workflow definition",
			mcp.WithMIMEType("application/json"),
		), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			text, err := s.definitionJSON(ctx, typ)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: text},
			}, nil
		})
	}
}

func (s *Server) definitionJSON(ctx context.Context, workflow string) (string, error) {
	def, err := s.engine.Definition(ctx, workflow)
	if err != nil {
		return "", fmt.Errorf("failed to build definition: %w", err)
	}
	data, err := json.Marshal(def.Artifacts())
	if err != nil {
		return "", err
	}
	return string(data), nil
}
