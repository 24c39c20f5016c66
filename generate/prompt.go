// Package generate builds generation prompts and streams completions from an
// upstream language model.
package generate

import (
	"fmt"
	"strings"

	"github.com/xraph/entitle/entitlement"
	"github.com/xraph/entitle/plan"
)

const basePrompt = "You are a helpful assistant that simplifies complex text. ALWAYS answer in RUSSIAN language."

var modePrompts = map[plan.Mode]string{
	plan.ModeSimple: "Объясни следующий текст простым языком, понятным для 8-классника. " +
		"Избегай жаргона. Если термин необходим, объясни его. Тон полезный и нейтральный.",
	plan.ModeShort: "Сократи следующий текст до одного предложения. Передай самую суть. " +
		"Будь максимально краток.",
	plan.ModeKeyPoints: "Выдели главные мысли из текста и оформи их в виде маркированного списка. " +
		"Убери всё лишнее, оставь только суть.",
	plan.ModeExamples: "Объясни текст просто, а затем приведи конкретный пример из реальной жизни. " +
		"Используй формат: 'Объяснение: [текст]\n\nПример: [пример]'",
}

const genericPrompt = "Упрости этот текст."

// SystemPrompt returns the system prompt for mode. A non-nil settings value
// tunes the prompt; callers pass nil unless the subject's plan enables AI
// settings.
func SystemPrompt(mode plan.Mode, settings *entitlement.Settings) string {
	instr, ok := modePrompts[mode]
	if !ok {
		instr = genericPrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteByte(' ')
	b.WriteString(instr)

	if settings == nil {
		return b.String()
	}

	switch mode {
	case plan.ModeSimple:
		fmt.Fprintf(&b, " Степень упрощения: %d из 10.", settings.SimplifyLevel)
	case plan.ModeShort:
		fmt.Fprintf(&b, " Степень сокращения: %d из 10.", settings.ShortenLevel)
	case plan.ModeKeyPoints:
		fmt.Fprintf(&b, " Количество пунктов: не более %d.", settings.BulletCount)
	case plan.ModeExamples:
		fmt.Fprintf(&b, " Количество примеров: %d.", settings.ExampleCount)
	}
	return b.String()
}
