//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package penalty provides deterministic penalty calculators exposed as
// agent tools: the 214-FZ shared-construction calculator and the consumer
// protection law (ZoZPP) calculator.
package penalty

import (
	"context"
	"fmt"
	"strings"

	"github.com/pravobot/pravobot/tool"
	"github.com/pravobot/pravobot/tool/function"
)

// RefinancingRate is the Central Bank refinancing rate, percent, used by the
// 214-FZ formula. Fixed by configuration of the statutory calculation.
const RefinancingRate = 21.0

// Request carries the arguments shared by both calculators.
type Request struct {
	Price     float64 `json:"price" jsonschema:"description=Стоимость объекта (товара, работы или услуги) в рублях"`
	DelayDays int     `json:"delay_days" jsonschema:"description=Количество дней просрочки"`
}

// Response carries the formatted calculation text returned to the model.
type Response struct {
	Text string `json:"text"`
}

// String returns the calculation text so the agent loop can forward it to
// the model verbatim.
func (r Response) String() string { return r.Text }

// New214FZTool returns the 214-FZ penalty calculator tool.
// Formula: (price * rate / 100 / 300) * delayDays, with an informational
// doubled figure (1/150 rate) commonly awarded to individual claimants.
func New214FZTool() tool.CallableTool {
	return function.NewFunctionTool(
		func(ctx context.Context, req Request) (Response, error) {
			return Response{Text: Calculate214FZ(req.Price, req.DelayDays)}, nil
		},
		function.WithName("calculate_penalty_214fz"),
		function.WithDescription("Калькулятор неустойки по 214-ФЗ (долевое строительство). "+
			"Используй этот инструмент, если вопрос касается задержки сдачи квартиры или "+
			"нарушения сроков по ДДУ (договор долевого участия). "+
			"Формула: (Цена договора * Ставка рефинансирования ЦБ РФ / 300) * Дни просрочки. "+
			"Текущая ставка рефинансирования: 21%."),
	)
}

// NewZPPTool returns the consumer protection law penalty calculator tool.
// Computes both the 1% (goods) and 3% (services) daily figures.
func NewZPPTool() tool.CallableTool {
	return function.NewFunctionTool(
		func(ctx context.Context, req Request) (Response, error) {
			return Response{Text: CalculateZPP(req.Price, req.DelayDays)}, nil
		},
		function.WithName("calculate_penalty_zpp"),
		function.WithDescription("Калькулятор неустойки по Закону о защите прав потребителей (ЗоЗПП). "+
			"Используй этот инструмент для расчета неустойки за нарушение сроков выполнения работ, "+
			"оказания услуг или передачи товара (не по ДДУ). "+
			"Считает по ставке 1% в день (товары) и 3% в день (работы/услуги)."),
	)
}

// Calculate214FZ computes the 214-FZ penalty text. Pure arithmetic, no I/O.
func Calculate214FZ(price float64, delayDays int) string {
	dailyPenalty := price * (RefinancingRate / 100) / 300
	totalPenalty := dailyPenalty * float64(delayDays)

	return fmt.Sprintf(
		"Расчет неустойки по 214-ФЗ:\n"+
			"- Цена объекта: %s руб.\n"+
			"- Дней просрочки: %d\n"+
			"- Ставка ЦБ РФ: %.1f%%\n"+
			"- Формула: (Цена * Ставка / 300) * Дни\n"+
			"- Размер неустойки (1/300 ставки): %s руб.\n"+
			"(Примечание: Для физических лиц суд часто взыскивает неустойку в двойном размере — "+
			"1/150 ставки, то есть %s руб.)",
		formatRub(price), delayDays, RefinancingRate,
		formatRub(totalPenalty), formatRub(totalPenalty*2),
	)
}

// CalculateZPP computes the ZoZPP penalty text with both statutory variants.
// Statutory caps are advisory text only, not enforced numerically.
func CalculateZPP(price float64, delayDays int) string {
	penaltyGoods := price * 0.01 * float64(delayDays)
	penaltyServices := price * 0.03 * float64(delayDays)

	return fmt.Sprintf(
		"Расчет неустойки по ЗоЗПП (Закон о защите прав потребителей):\n"+
			"- Цена: %s руб.\n"+
			"- Дней просрочки: %d\n\n"+
			"Вариант 1 (Товары - 1%% в день, ст. 23 ЗоЗПП):\n"+
			"- Сумма: %s руб.\n\n"+
			"Вариант 2 (Работы/Услуги - 3%% в день, ст. 28 ЗоЗПП):\n"+
			"- Сумма: %s руб.\n"+
			"(Примечание: Сумма неустойки не может превышать стоимость товара/работы/услуги).",
		formatRub(price), delayDays,
		formatRub(penaltyGoods), formatRub(penaltyServices),
	)
}

// formatRub renders an amount with comma-grouped thousands and two decimal
// places, e.g. 10,000,000.00.
func formatRub(v float64) string {
	s := fmt.Sprintf("%.2f", v)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	out := b.String() + "." + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
