package dialog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vkarpekin/mebelbot/internal/domain"
	"github.com/vkarpekin/mebelbot/internal/memory"
)

// bulkPreview prepares a mass stage transfer: resolve the target stage,
// count the affected deals and ask for an explicit confirmation bound
// to a one-time token.
func (e *Engine) bulkPreview(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent) Response {
	s.ResetFlow()
	s.State = domain.StateBulkConfirm

	if name := intent.Get("stage"); name != "" {
		if key, ok := e.resolveStageByName(ctx, name); ok {
			s.BulkStageKey = key
			return e.bulkRenderPreview(ctx, s)
		}
	}

	stages, err := e.stages.ListStages(ctx)
	if err != nil {
		slog.Error("list stages", "error", err)
		return e.oops(s, ActionMainMenu)
	}
	buttons := make([]Button, 0, len(stages)+1)
	for _, st := range stages {
		buttons = append(buttons, btnData(st.Name, ActionStageSet, st.Key))
	}
	buttons = append(buttons, btn("✖️ Отмена", ActionCancel))
	return e.reply(s, "📦 На какой этап переносим все сделки?", buttons...)
}

// bulkRenderPreview counts and shows what the transfer would touch.
func (e *Engine) bulkRenderPreview(ctx context.Context, s *domain.DialogSession) Response {
	count, err := e.deals.CountDealsNotInStage(ctx, s.BulkStageKey)
	if err != nil {
		slog.Error("count deals for bulk", "error", err, "stage_key", s.BulkStageKey)
		return e.oops(s, ActionMainMenu)
	}
	name := e.stageName(ctx, s.BulkStageKey)
	if count == 0 {
		s.ResetFlow()
		return e.reply(s,
			fmt.Sprintf("Все сделки уже на этапе «%s», переносить нечего.", name),
			mainMenuButtons()...)
	}

	s.BulkToken = uuid.NewString()
	s.State = domain.StateBulkConfirm
	return e.reply(s,
		fmt.Sprintf("⚠️ Перенести %d сделок на этап «%s»? Отменить это будет нельзя.", count, name),
		btnData("✅ Да, перенести", ActionBulkConfirm, s.BulkToken),
		btn("✖️ Отмена", ActionCancel))
}

func (e *Engine) textBulkConfirm(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, intent *domain.ParsedIntent, text string) Response {
	if s.BulkStageKey == "" {
		// Still picking the stage; typed names work too.
		if key, ok := e.resolveStageByName(ctx, text); ok {
			s.BulkStageKey = key
			return e.bulkRenderPreview(ctx, s)
		}
		return e.fallback(s, mem)
	}
	if isYes(text) || intent.Action == domain.ActionConfirm {
		return e.bulkExecute(ctx, s, mem, s.BulkToken)
	}
	if isNo(text) {
		return e.cancelFlow(s, mem)
	}
	return e.reply(s, "Подтверждаете перенос?",
		btnData("✅ Да, перенести", ActionBulkConfirm, s.BulkToken),
		btn("✖️ Отмена", ActionCancel))
}

// bulkExecute runs the confirmed transfer. The affected set is
// recomputed at execution time; the preview count is informational
// only. A token mismatch means the preview is stale and a fresh one is
// rendered instead of executing.
func (e *Engine) bulkExecute(ctx context.Context, s *domain.DialogSession, mem *memory.Memory, token string) Response {
	if s.BulkStageKey == "" || s.BulkToken == "" || token != s.BulkToken {
		if s.BulkStageKey != "" {
			return e.bulkRenderPreview(ctx, s)
		}
		return e.fallback(s, mem)
	}

	moved, err := e.deals.MoveAllToStage(ctx, s.BulkStageKey)
	if err != nil {
		slog.Error("bulk move", "error", err, "stage_key", s.BulkStageKey)
		return e.oops(s, ActionMainMenu)
	}
	name := e.stageName(ctx, s.BulkStageKey)
	mem.RecordAction(fmt.Sprintf("массовый перенос на этап «%s»", name))
	s.ResetFlow()
	return e.reply(s,
		fmt.Sprintf("✅ Перенесено сделок: %d. Теперь все на этапе «%s».", moved, name),
		btn("📊 Отчет по этапам", ActionReport),
		btn("🏠 В меню", ActionMainMenu))
}
