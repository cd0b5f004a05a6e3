package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/randysalars/dreamweaving/internal/model"
	"github.com/randysalars/dreamweaving/internal/service/scoring"
)

func (s *Server) registerTools() {
	// dreamweave_recommend: ranked lessons for an upcoming run.
	s.mcpServer.AddTool(
		mcplib.NewTool("dreamweave_recommend",
			mcplib.WithDescription("Get the most effective lessons for a generation run, with a ready-to-inject prompt block"),
			mcplib.WithString("topic", mcplib.Description("Session topic"), mcplib.Required()),
			mcplib.WithString("desired_outcome", mcplib.Description("Desired outcome for the listener")),
			mcplib.WithString("category", mcplib.Description("Restrict to one lesson category")),
			mcplib.WithNumber("limit", mcplib.Description("Maximum lessons to return")),
		),
		s.handleRecommend,
	)

	// dreamweave_record_outcome: report a run's measured result.
	s.mcpServer.AddTool(
		mcplib.NewTool("dreamweave_record_outcome",
			mcplib.WithDescription("Record the measured outcome of a generation run and update lesson effectiveness"),
			mcplib.WithString("subject", mcplib.Description("Subject of the generated session"), mcplib.Required()),
			mcplib.WithString("topic", mcplib.Description("Session topic"), mcplib.Required()),
			mcplib.WithBoolean("success", mcplib.Description("Whether generation succeeded"), mcplib.Required()),
			mcplib.WithNumber("quality_score", mcplib.Description("Quality score 0-100"), mcplib.Required()),
			mcplib.WithString("desired_outcome", mcplib.Description("Desired outcome for the listener")),
			mcplib.WithString("applied_lessons", mcplib.Description("Comma-separated lesson IDs applied to this run")),
			mcplib.WithString("external_ref", mcplib.Description("Published content ID; schedules a delayed metrics check")),
			mcplib.WithString("outcome_id", mcplib.Description("Outcome ID for idempotent replays")),
		),
		s.handleRecordOutcome,
	)

	// dreamweave_suggest_queries: proven queries for a topic.
	s.mcpServer.AddTool(
		mcplib.NewTool("dreamweave_suggest_queries",
			mcplib.WithDescription("Suggest knowledge-base queries that historically produced high-quality sessions for a topic"),
			mcplib.WithString("topic", mcplib.Description("Session topic"), mcplib.Required()),
			mcplib.WithString("desired_outcome", mcplib.Description("Desired outcome for the listener")),
			mcplib.WithString("content_type", mcplib.Description("Restrict to one content type")),
			mcplib.WithNumber("limit", mcplib.Description("Maximum suggestions to return")),
		),
		s.handleSuggestQueries,
	)
}

func (s *Server) handleRecommend(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	topic := request.GetString("topic", "")
	if topic == "" {
		return errorResult("topic is required"), nil
	}
	desired := request.GetString("desired_outcome", "")
	category := request.GetString("category", "")
	limit := request.GetInt("limit", 10)

	all, err := s.registry.List(ctx, false)
	if err != nil {
		return errorResult(fmt.Sprintf("list lessons failed: %v", err)), nil
	}
	contextKey := model.GenerationContext{Topic: topic, DesiredOutcome: desired}.Key()
	ranked, err := s.scorer.Ranked(ctx, all, category, contextKey, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("ranking failed: %v", err)), nil
	}

	resultData, _ := json.MarshalIndent(map[string]any{
		"lessons":      ranked,
		"prompt_block": scoring.RenderLessonBlock(ranked),
	}, "", "  ")

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleRecordOutcome(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	subject := request.GetString("subject", "")
	topic := request.GetString("topic", "")
	if subject == "" || topic == "" {
		return errorResult("subject and topic are required"), nil
	}

	outcome := model.Outcome{
		ID:          request.GetString("outcome_id", ""),
		Subject:     subject,
		ExternalRef: request.GetString("external_ref", ""),
		Context: model.GenerationContext{
			Topic:          topic,
			DesiredOutcome: request.GetString("desired_outcome", ""),
		},
		Immediate: model.ImmediateMetrics{
			GenerationSuccess: request.GetBool("success", false),
			QualityScore:      request.GetFloat("quality_score", 0),
		},
	}
	outcome.AppliedLessons = splitIDs(request.GetString("applied_lessons", ""))
	if outcome.ExternalRef != "" {
		outcome.DelayedPending = true
	}

	id, err := s.store.RecordOutcome(ctx, outcome)
	if err != nil {
		return errorResult(fmt.Sprintf("record outcome failed: %v", err)), nil
	}
	outcome.ID = id

	contextKey := outcome.Context.Key()
	for _, lessonID := range outcome.AppliedLessons {
		if err := s.scorer.Update(ctx, lessonID, outcome, contextKey); err != nil {
			return errorResult(fmt.Sprintf("effectiveness update failed: %v", err)), nil
		}
	}

	if outcome.ExternalRef != "" {
		if err := s.store.SchedulePendingCheck(ctx, id, outcome.ExternalRef, s.delayedCheckDays); err != nil {
			return errorResult(fmt.Sprintf("schedule delayed check failed: %v", err)), nil
		}
	}

	resultData, _ := json.Marshal(map[string]any{
		"outcome_id":      id,
		"lessons_updated": len(outcome.AppliedLessons),
		"status":          "recorded",
	})

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleSuggestQueries(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	topic := request.GetString("topic", "")
	if topic == "" {
		return errorResult("topic is required"), nil
	}
	desired := request.GetString("desired_outcome", "")
	contentType := request.GetString("content_type", "")
	limit := request.GetInt("limit", 5)

	suggestions, err := s.queries.SuggestQueries(ctx, topic, desired, contentType, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("suggest queries failed: %v", err)), nil
	}

	resultData, _ := json.MarshalIndent(map[string]any{
		"suggestions": suggestions,
		"total":       len(suggestions),
	}, "", "  ")

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

// splitIDs parses a comma-separated ID list, dropping empties.
func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}
