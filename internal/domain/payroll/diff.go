package payroll

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionUp        Direction = "UP"
	DirectionDown      Direction = "DOWN"
	DirectionUnchanged Direction = "UNCHANGED"
)

// Negate flips UP and DOWN; UNCHANGED maps to itself.
func (d Direction) Negate() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	}
	return d
}

var (
	lineItemIrregularDelta = decimal.NewFromInt(50)

	deductionMetrics = map[string]bool{
		MetricTax:      true,
		MetricPension:  true,
		MetricNIOrPRSI: true,
		MetricUSC:      true,
	}
	variablePayMetrics = map[string]bool{
		MetricBonuses:  true,
		MetricOvertime: true,
	}
)

type MetricDiff struct {
	Metric    string          `json:"metric"`
	Current   decimal.Decimal `json:"current"`
	Previous  decimal.Decimal `json:"previous"`
	Delta     decimal.Decimal `json:"delta"`
	Direction Direction       `json:"direction"`
	Insight   string          `json:"insight"`
}

type LineItemChange struct {
	Type           string          `json:"type"`
	Label          string          `json:"label"`
	CurrentAmount  decimal.Decimal `json:"currentAmount"`
	PreviousAmount decimal.Decimal `json:"previousAmount"`
	Delta          decimal.Decimal `json:"delta"`
	IsNew          bool            `json:"isNew"`
	IsIrregular    bool            `json:"isIrregular"`
}

// ComputeMetricDiffs compares every tracked metric of two breakdowns, in
// TrackedMetrics order.
func ComputeMetricDiffs(current, previous Breakdown) []MetricDiff {
	diffs := make([]MetricDiff, 0, len(TrackedMetrics))
	for _, metric := range TrackedMetrics {
		cur := current.Metric(metric)
		prev := previous.Metric(metric)
		delta := Round2(cur.Sub(prev))
		direction := directionOf(delta)
		diffs = append(diffs, MetricDiff{
			Metric:    metric,
			Current:   cur,
			Previous:  prev,
			Delta:     delta,
			Direction: direction,
			Insight:   metricInsight(metric, delta, direction),
		})
	}
	return diffs
}

func directionOf(delta decimal.Decimal) Direction {
	switch delta.Sign() {
	case 1:
		return DirectionUp
	case -1:
		return DirectionDown
	}
	return DirectionUnchanged
}

func metricInsight(metric string, delta decimal.Decimal, direction Direction) string {
	label := MetricLabel(metric)
	if direction == DirectionUnchanged {
		return fmt.Sprintf("%s stayed unchanged", label)
	}
	amount := delta.Abs().StringFixed(2)
	up := direction == DirectionUp

	switch {
	case deductionMetrics[metric]:
		if up {
			return fmt.Sprintf("%s increased by %s; check your deductions", label, amount)
		}
		return fmt.Sprintf("%s decreased by %s; verify your deductions", label, amount)
	case variablePayMetrics[metric]:
		if up {
			return fmt.Sprintf("%s up by %s; variable pay higher this period", label, amount)
		}
		return fmt.Sprintf("%s down by %s; variable pay lower this period", label, amount)
	}
	if up {
		return fmt.Sprintf("%s increased by %s", label, amount)
	}
	return fmt.Sprintf("%s decreased by %s", label, amount)
}

// DetectLineItemChanges matches line items across two periods by (type, label).
// Repeated keys pair up in input order; once a key's previous occurrences run
// out, further current items compare against its last one. Items only present
// in the previous period are reported with a zero current amount and their
// irregularity is judged on the dropped amount itself. The result is ordered by
// descending absolute delta, ties keeping input order.
func DetectLineItemChanges(current, previous []LineItem) []LineItemChange {
	previousByKey := make(map[LineItemKey][]LineItem, len(previous))
	for _, item := range previous {
		previousByKey[item.Key()] = append(previousByKey[item.Key()], item)
	}
	consumed := make(map[LineItemKey]int, len(previousByKey))
	currentKeys := make(map[LineItemKey]bool, len(current))

	changes := make([]LineItemChange, 0, len(current)+len(previous))
	for _, item := range current {
		key := item.Key()
		currentKeys[key] = true
		candidates, matched := previousByKey[key]
		prevAmount := decimal.Zero
		if matched {
			idx := min(consumed[key], len(candidates)-1)
			prevAmount = candidates[idx].Amount
			consumed[key]++
		}
		delta := Round2(item.Amount.Sub(prevAmount))
		changes = append(changes, LineItemChange{
			Type:           item.Type,
			Label:          item.Label,
			CurrentAmount:  item.Amount,
			PreviousAmount: prevAmount,
			Delta:          delta,
			IsNew:          !matched,
			IsIrregular:    delta.Abs().GreaterThanOrEqual(lineItemIrregularDelta),
		})
	}

	for _, item := range previous {
		if currentKeys[item.Key()] {
			continue
		}
		changes = append(changes, LineItemChange{
			Type:           item.Type,
			Label:          item.Label,
			CurrentAmount:  decimal.Zero,
			PreviousAmount: item.Amount,
			Delta:          Round2(item.Amount.Neg()),
			IsNew:          false,
			IsIrregular:    item.Amount.Abs().GreaterThanOrEqual(lineItemIrregularDelta),
		})
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Delta.Abs().GreaterThan(changes[j].Delta.Abs())
	})
	return changes
}
