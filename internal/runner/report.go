package runner

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dmp1ce/charge-lnd/internal/policy"
	"github.com/dmp1ce/charge-lnd/internal/scid"
	"github.com/dmp1ce/charge-lnd/internal/strategy"
)

var (
	greenText  = color.New(color.FgGreen).SprintFunc()
	yellowText = color.New(color.FgYellow).SprintFunc()
	redText    = color.New(color.FgRed).SprintFunc()
	dimText    = color.New(color.Faint).SprintFunc()
)

// Print writes a per-channel report of the run to w.
func (s Summary) Print(w io.Writer) {
	for _, res := range s.Results {
		id := scid.Format(res.Channel.ChanID)
		switch res.Outcome {
		case policy.OutcomeFailed:
			fmt.Fprintf(w, "%s  %s  policy=%s: %v\n", id, redText("failed"), res.PolicyName, res.Err)
		case policy.OutcomeUnresolved:
			fmt.Fprintf(w, "%s  %s\n", id, dimText("no policy"))
		default:
			fmt.Fprintf(w, "%s  %s  policy=%s strategy=%s%s\n",
				id, outcomeText(res), res.PolicyName, res.Strategy, actionText(res))
		}
	}

	mode := "applied"
	if s.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(w, "%d channels: %d resolved, %d defaulted, %d without policy, %d failed (%d updates, %s)\n",
		len(s.Results), s.Resolved, s.Defaulted, s.Unresolved, s.Failed, s.Applied, mode)
}

func outcomeText(res ChannelResult) string {
	if res.Err != nil {
		return redText(res.Outcome.String())
	}
	if res.Applied {
		return greenText(res.Outcome.String())
	}
	return yellowText(res.Outcome.String())
}

func actionText(res ChannelResult) string {
	switch res.Action.Kind {
	case strategy.KindSetFees:
		return fmt.Sprintf(" base_fee_msat=%d fee_ppm=%d", res.Action.BaseFeeMsat, res.Action.FeeRatePpm)
	case strategy.KindDisable:
		return " action=disable"
	default:
		return ""
	}
}
