package notification

import (
	"fmt"
	"strings"

	"srtrader/internal/execution"

	"github.com/shopspring/decimal"
)

func px(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) }

// OrderAlert describes a placed or moved paper order.
func OrderAlert(o execution.Order) Alert {
	title := "Paper order placed"
	msg := fmt.Sprintf("%s buy limit %s (tp %s / sl %s) via %s",
		o.OrderID, px(o.Price), px(o.TakeProfit), px(o.StopLoss), o.Strategy)
	if o.Update {
		title = "Paper order moved"
		msg = fmt.Sprintf("%s buy limit %s -> %s (tp %s / sl %s)",
			o.OrderID, px(o.Previous), px(o.Price), px(o.TakeProfit), px(o.StopLoss))
	}
	return Alert{Level: AlertInfo, Title: title, Message: msg, Series: string(o.Series)}
}

// FillAlert describes a paper fill.
func FillAlert(f execution.Fill) Alert {
	return Alert{
		Level: AlertWarning,
		Title: "Paper order filled",
		Message: fmt.Sprintf("%s long @ %s (bar low %s) tp %s / sl %s",
			f.OrderID, px(f.Price), px(f.BarLow), px(f.TakeProfit), px(f.StopLoss)),
		Series: string(f.Series),
	}
}

// SummaryAlert lists every position and the total running P&L of open ones.
func SummaryAlert(positions []execution.Position, fills int) Alert {
	var b strings.Builder
	total := decimal.Zero
	for _, p := range positions {
		switch p.State {
		case execution.StateOpen:
			total = total.Add(decimal.NewFromFloat(p.RunningPnL))
			fmt.Fprintf(&b, "%s OPEN @ %s pnl %s\n", p.Series, px(p.OrderPrice), px(p.RunningPnL))
		case execution.StatePending:
			fmt.Fprintf(&b, "%s PENDING @ %s\n", p.Series, px(p.OrderPrice))
		default:
			fmt.Fprintf(&b, "%s FLAT\n", p.Series)
		}
	}
	fmt.Fprintf(&b, "fills: %d, open pnl: %s", fills, total.StringFixed(2))
	return Alert{Level: AlertInfo, Title: "Paper trading summary", Message: b.String()}
}
