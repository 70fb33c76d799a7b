package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/yourusername/study-planner/internal/models"
	"github.com/yourusername/study-planner/pkg/utils"
	"go.uber.org/zap"
)

type Service interface {
	Subjects() []models.Subject
	TasksForDay(date utils.Date) []models.DayPlan
	Revisions(ctx context.Context) []models.Revision
	SubjectsForReview(date utils.Date) []models.Subject
	BuildSchedule() []models.ScheduleEntry
	Settings() models.UserSettings

	ImportSubjects(ctx context.Context, names []string, edital string) ([]models.Subject, error)
	UpdateTaskStatus(ctx context.Context, subjectID, taskID string, status models.TaskStatus, tracking *models.ExerciseTracking) error
	CompleteRevision(ctx context.Context, revisionID string) error
	AdvanceReview(ctx context.Context, subjectID string) error
	RecordStudySession(ctx context.Context, subjectID string) error
}

type TelegramHandler struct {
	api     *tgbotapi.BotAPI
	service Service

	// Chat of the last /start, target for reminders. Single-user bot.
	chatID atomic.Int64
}

func NewTelegramHandler(token string, service Service) (*TelegramHandler, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	return &TelegramHandler{
		api:     api,
		service: service,
	}, nil
}

func (h *TelegramHandler) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := h.api.GetUpdatesChan(u)

	zap.S().Info("bot started")

	go h.startReminderScheduler()

	for update := range updates {
		if update.Message == nil && update.CallbackQuery == nil {
			continue
		}

		h.handleUpdate(update)
	}
}

func (h *TelegramHandler) handleUpdate(update tgbotapi.Update) {
	ctx := context.Background()

	if update.Message != nil && update.Message.IsCommand() {
		if update.Message.From == nil {
			zap.S().Warn("received command from nil user")
			return
		}
		h.handleCommand(ctx, update)
	} else if update.Message != nil {
		h.sendMessage(update.Message.Chat.ID, "Não entendi. Use /help para ver os comandos disponíveis.")
	} else if update.CallbackQuery != nil {
		if update.CallbackQuery.From == nil {
			zap.S().Warn("received callback from nil user")
			return
		}
		h.handleCallback(ctx, update)
	}
}

func (h *TelegramHandler) handleCommand(ctx context.Context, update tgbotapi.Update) {
	switch update.Message.Command() {
	case "start":
		h.handleStart(update)
	case "today":
		h.handleToday(update)
	case "reviews":
		h.handleReviews(ctx, update)
	case "schedule":
		h.handleSchedule(update)
	case "progress":
		h.handleProgress(update)
	case "add":
		h.handleAdd(ctx, update)
	case "settings":
		h.handleSettings(update)
	case "help":
		h.handleHelp(update)
	default:
		h.sendMessage(update.Message.Chat.ID, "Comando desconhecido. Use /help")
	}
}

func (h *TelegramHandler) handleStart(update tgbotapi.Update) {
	h.chatID.Store(update.Message.Chat.ID)

	text := `Olá! 👋

Eu organizo seus estudos: divido cada assunto em tarefas diárias e agendo as revisões espaçadas (1, 7, 15 e 30 dias).

Comandos:
/today — tarefas de hoje
/reviews — revisões pendentes
/schedule — cronograma da semana
/progress — progresso por assunto
/add <nome> — adicionar assunto
/settings — janela de estudo
/help — ajuda`

	h.sendMessage(update.Message.Chat.ID, text)
}

func (h *TelegramHandler) handleToday(update tgbotapi.Update) {
	chatID := update.Message.Chat.ID
	today := utils.DateOf(time.Now())

	plans := h.service.TasksForDay(today)
	if len(plans) == 0 {
		h.sendMessage(chatID, "🎉 Nenhuma tarefa para hoje!")
		return
	}

	text := fmt.Sprintf("📚 <b>Tarefas de hoje</b> (%s):\n\n", today)
	var buttons [][]tgbotapi.InlineKeyboardButton

	for _, plan := range plans {
		text += fmt.Sprintf("<b>%s</b>\n", escapeHTML(plan.SubjectName))
		for i, task := range plan.Tasks {
			text += fmt.Sprintf("  %d. %s — %d min\n", i+1, task.Type, task.PlannedDurationMinutes)
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("✅ %s: %s", truncate(plan.SubjectName, 20), task.Type),
					fmt.Sprintf("task:%s:%s", plan.SubjectID, task.ID),
				),
			))
		}
		text += "\n"
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(buttons...)
	h.sendMessageWithKeyboard(chatID, text, keyboard)
}

func (h *TelegramHandler) handleReviews(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID
	today := utils.DateOf(time.Now())

	var pending []models.Revision
	for _, revision := range h.service.Revisions(ctx) {
		if revision.Status == models.RevisionPending && revision.DueDate <= today {
			pending = append(pending, revision)
		}
	}
	dueSubjects := h.service.SubjectsForReview(today)

	if len(pending) == 0 && len(dueSubjects) == 0 {
		h.sendMessage(chatID, "🎉 Nenhuma revisão pendente hoje!")
		return
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	text := ""

	if len(pending) > 0 {
		text += "🔄 <b>Revisões vencidas</b>:\n\n"
		for _, revision := range pending {
			text += fmt.Sprintf("• %s — ciclo de %d dias (vencimento %s)\n",
				escapeHTML(revision.SubjectName), revision.CycleDay, revision.DueDate)
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("✅ %s (%dd)", truncate(revision.SubjectName, 20), revision.CycleDay),
					fmt.Sprintf("rev:%s", revision.ID),
				),
			))
		}
		text += "\n"
	}

	if len(dueSubjects) > 0 {
		text += "📖 <b>Assuntos para revisar</b>:\n\n"
		for _, subject := range dueSubjects {
			text += fmt.Sprintf("• %s — intervalo atual: %d dias\n",
				escapeHTML(subject.Name), subject.ReviewInterval)
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(
					fmt.Sprintf("🔁 Revisei %s", truncate(subject.Name, 20)),
					fmt.Sprintf("review:%s", subject.ID),
				),
			))
		}
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(buttons...)
	h.sendMessageWithKeyboard(chatID, text, keyboard)
}

func (h *TelegramHandler) handleSchedule(update tgbotapi.Update) {
	chatID := update.Message.Chat.ID

	schedule := h.service.BuildSchedule()
	if len(schedule) == 0 {
		h.sendMessage(chatID, "Nenhum cronograma gerado. Adicione assuntos com /add e confira a configuração.")
		return
	}

	names := make(map[string]string)
	for _, subject := range h.service.Subjects() {
		names[subject.ID] = subject.Name
	}

	limit := 7
	if len(schedule) < limit {
		limit = len(schedule)
	}

	text := "🗓 <b>Cronograma</b>:\n\n"
	for _, entry := range schedule[:limit] {
		text += fmt.Sprintf("<b>%s</b>\n", entry.Date)
		for _, id := range entry.SubjectIDs {
			text += fmt.Sprintf("  • %s\n", escapeHTML(names[id]))
		}
		text += "\n"
	}

	h.sendMessage(chatID, text)
}

func (h *TelegramHandler) handleProgress(update tgbotapi.Update) {
	chatID := update.Message.Chat.ID

	subjects := h.service.Subjects()
	if len(subjects) == 0 {
		h.sendMessage(chatID, "Nenhum assunto cadastrado. Use /add para começar.")
		return
	}

	text := "📊 <b>Progresso</b>:\n\n"
	for _, subject := range subjects {
		text += fmt.Sprintf("• %s [%s]\n   Progresso: %d%% | Nota: %d%%\n\n",
			escapeHTML(subject.Name), escapeHTML(subject.Edital),
			subject.ProgressPercentage, subject.OverallScore)
	}

	h.sendMessage(chatID, text)
}

func (h *TelegramHandler) handleAdd(ctx context.Context, update tgbotapi.Update) {
	chatID := update.Message.Chat.ID

	name := strings.TrimSpace(update.Message.CommandArguments())
	if name == "" {
		h.sendMessage(chatID, "Uso: /add <nome do assunto>")
		return
	}

	created, err := h.service.ImportSubjects(ctx, []string{name}, "Geral")
	if err != nil || len(created) == 0 {
		zap.S().Error("import subject", zap.Error(err), zap.String("name", name))
		h.sendMessage(chatID, "Não foi possível adicionar o assunto. Tente novamente.")
		return
	}

	subject := created[0]
	h.sendMessage(chatID, fmt.Sprintf("✅ Assunto \"%s\" adicionado com %d tarefas. Use /today para começar.",
		escapeHTML(subject.Name), len(subject.Tasks)))
}

func (h *TelegramHandler) handleSettings(update tgbotapi.Update) {
	settings := h.service.Settings()
	text := fmt.Sprintf("⚙️ <b>Janela de estudo</b>:\n\nInício: %s\nFim: %s\nPausa: %d min",
		settings.StudyStartTime, settings.StudyEndTime, settings.BreakDurationMinutes)
	h.sendMessage(update.Message.Chat.ID, text)
}

func (h *TelegramHandler) handleHelp(update tgbotapi.Update) {
	text := `Comandos disponíveis:

/today — tarefas agendadas para hoje
/reviews — revisões espaçadas pendentes
/schedule — cronograma dos próximos dias
/progress — progresso e notas por assunto
/add <nome> — adicionar um assunto
/settings — janela de estudo configurada

Complete tarefas pelos botões de /today. Quando todas as tarefas de um assunto terminam, as quatro revisões (1, 7, 15 e 30 dias) são agendadas automaticamente.`

	h.sendMessage(update.Message.Chat.ID, text)
}

func (h *TelegramHandler) handleCallback(ctx context.Context, update tgbotapi.Update) {
	data := update.CallbackQuery.Data
	chatID := update.CallbackQuery.Message.Chat.ID

	callback := tgbotapi.NewCallback(update.CallbackQuery.ID, "")
	if _, err := h.api.Request(callback); err != nil {
		zap.S().Warn("answer callback", zap.Error(err))
	}

	switch {
	case strings.HasPrefix(data, "task:"):
		parts := strings.SplitN(data, ":", 3)
		if len(parts) != 3 {
			return
		}
		h.completeTask(ctx, chatID, parts[1], parts[2])
	case strings.HasPrefix(data, "rev:"):
		h.completeRevision(ctx, chatID, strings.TrimPrefix(data, "rev:"))
	case strings.HasPrefix(data, "review:"):
		h.advanceReview(ctx, chatID, strings.TrimPrefix(data, "review:"))
	default:
		zap.S().Warn("unknown callback", zap.String("data", data))
	}
}

func (h *TelegramHandler) completeTask(ctx context.Context, chatID int64, subjectID, taskID string) {
	err := h.service.UpdateTaskStatus(ctx, subjectID, taskID, models.TaskCompleted, nil)
	if err != nil {
		if errors.Is(err, models.ErrSubjectNotFound) || errors.Is(err, models.ErrTaskNotFound) {
			h.sendMessage(chatID, "Tarefa não encontrada. Use /today para atualizar a lista.")
			return
		}
		zap.S().Error("update task status", zap.Error(err),
			zap.String("subject_id", subjectID), zap.String("task_id", taskID))
		h.sendMessage(chatID, "Não foi possível concluir a tarefa.")
		return
	}

	if err := h.service.RecordStudySession(ctx, subjectID); err != nil {
		zap.S().Warn("record study session", zap.Error(err), zap.String("subject_id", subjectID))
	}

	for _, subject := range h.service.Subjects() {
		if subject.ID != subjectID {
			continue
		}
		if subject.Completed() {
			h.sendMessage(chatID, fmt.Sprintf("🏆 \"%s\" concluído! Revisões de 1, 7, 15 e 30 dias agendadas.",
				escapeHTML(subject.Name)))
		} else {
			h.sendMessage(chatID, fmt.Sprintf("✅ Tarefa concluída. \"%s\" está em %d%%.",
				escapeHTML(subject.Name), subject.ProgressPercentage))
		}
		return
	}
}

func (h *TelegramHandler) completeRevision(ctx context.Context, chatID int64, revisionID string) {
	if err := h.service.CompleteRevision(ctx, revisionID); err != nil {
		if errors.Is(err, models.ErrRevisionNotFound) {
			h.sendMessage(chatID, "Revisão não encontrada. Use /reviews para atualizar a lista.")
			return
		}
		zap.S().Error("complete revision", zap.Error(err), zap.String("revision_id", revisionID))
		h.sendMessage(chatID, "Não foi possível concluir a revisão.")
		return
	}
	h.sendMessage(chatID, "✅ Revisão concluída!")
}

func (h *TelegramHandler) advanceReview(ctx context.Context, chatID int64, subjectID string) {
	if err := h.service.AdvanceReview(ctx, subjectID); err != nil {
		if errors.Is(err, models.ErrSubjectNotFound) {
			h.sendMessage(chatID, "Assunto não encontrado.")
			return
		}
		zap.S().Error("advance review", zap.Error(err), zap.String("subject_id", subjectID))
		h.sendMessage(chatID, "Não foi possível registrar a revisão.")
		return
	}

	for _, subject := range h.service.Subjects() {
		if subject.ID == subjectID && subject.NextReview != nil {
			h.sendMessage(chatID, fmt.Sprintf("🔁 Revisão registrada. Próxima em %s (%d dias).",
				*subject.NextReview, subject.ReviewInterval))
			return
		}
	}
}

func (h *TelegramHandler) startReminderScheduler() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		h.checkAndSendReminder()
	}
}

func (h *TelegramHandler) checkAndSendReminder() {
	chatID := h.chatID.Load()
	if chatID == 0 {
		return
	}

	now := time.Now()
	if now.Hour() != reminderHour {
		return
	}

	today := utils.DateOf(now)
	plans := h.service.TasksForDay(today)

	due := 0
	for _, revision := range h.service.Revisions(context.Background()) {
		if revision.Status == models.RevisionPending && revision.DueDate <= today {
			due++
		}
	}

	if len(plans) == 0 && due == 0 {
		return
	}

	text := "🔔 Bom dia! Hoje você tem"
	if len(plans) > 0 {
		text += fmt.Sprintf(" tarefas de %d assunto(s)", len(plans))
	}
	if due > 0 {
		if len(plans) > 0 {
			text += " e"
		}
		text += fmt.Sprintf(" %d revisão(ões) pendente(s)", due)
	}
	text += ".\nUse /today para começar."

	h.sendMessage(chatID, text)
}

const reminderHour = 8

func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

func (h *TelegramHandler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.api.Send(msg); err != nil {
		zap.S().Error("send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (h *TelegramHandler) sendMessageWithKeyboard(chatID int64, text string, keyboard interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = keyboard
	if _, err := h.api.Send(msg); err != nil {
		zap.S().Error("send message with keyboard", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}
