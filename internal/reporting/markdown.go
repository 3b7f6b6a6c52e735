package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Scenario Report: %s\n\n", r.Scenario))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	s := r.Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Steps | %d |\n", s.Steps))
	sb.WriteString(fmt.Sprintf("| Failed Steps | %d |\n", s.FailedSteps))
	sb.WriteString(fmt.Sprintf("| Blocks | %d - %d |\n", s.StartBlock, s.EndBlock))
	sb.WriteString(fmt.Sprintf("| Time | %s - %s |\n", unix(s.StartTime), unix(s.EndTime)))
	sb.WriteString(fmt.Sprintf("| Events | %d |\n", s.Events))
	sb.WriteString(fmt.Sprintf("| Rewards Paid | %s |\n", s.RewardsPaid))
	sb.WriteString(fmt.Sprintf("| Fees Collected | %s |\n", s.FeesCollected))
	sb.WriteString(fmt.Sprintf("| Dripped | %s |\n", s.Dripped))
	sb.WriteString(fmt.Sprintf("| Deferred Harvests | %d |\n", s.Deferrals))
	sb.WriteString(fmt.Sprintf("| Event Log Digest | `%s` |\n", s.Fingerprint))
	sb.WriteString("\n")

	sb.WriteString("## Checks\n\n")
	if len(r.Checks) > 0 {
		sb.WriteString("| Check | Expected | Actual | Status |\n")
		sb.WriteString("|-------|----------|--------|--------|\n")
		for _, c := range r.Checks {
			status := "FAIL"
			if c.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Expected, c.Actual, status))
		}
		sb.WriteString("\n")
		if r.AllChecksPassed {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.**\n\n")
		}
	} else {
		sb.WriteString("No checks defined.\n\n")
	}

	sb.WriteString("## Pools\n\n")
	if len(r.Pools) > 0 {
		sb.WriteString("| Pool | Stake | Weight | Delay (s) | Total Staked | Acc/Share |\n")
		sb.WriteString("|------|-------|--------|-----------|--------------|-----------|\n")
		for _, p := range r.Pools {
			sb.WriteString(fmt.Sprintf("| %d | %s | %d | %d | %s | %s |\n",
				p.ID, p.StakeToken, p.Weight, p.HarvestDelay, p.TotalStaked, p.AccRewardPerShare))
		}
	} else {
		sb.WriteString("No pools.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Holders\n\n")
	if len(r.Holders) > 0 {
		sb.WriteString("| Holder | Pool | Staked | Carried | Pending | Paid | Fees | Harvests | Deferred |\n")
		sb.WriteString("|--------|------|--------|---------|---------|------|------|----------|----------|\n")
		for _, h := range r.Holders {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s | %s | %d | %d |\n",
				h.Name, h.Pool, h.Staked, h.Carried, h.Pending, h.Paid, h.Fees, h.Harvests, h.Deferrals))
		}
	} else {
		sb.WriteString("No holders.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Events\n\n")
	if len(r.EventCounts) > 0 {
		sb.WriteString("| Kind | Count | Total |\n")
		sb.WriteString("|------|-------|-------|\n")
		for _, e := range r.EventCounts {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", e.Kind, e.Count, e.Total))
		}
	} else {
		sb.WriteString("No events recorded.\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Steps\n\n")
	if len(r.Steps) > 0 {
		sb.WriteString("| # | Block | Action | Actor | Pool | Outcome | Detail |\n")
		sb.WriteString("|---|-------|--------|-------|------|---------|--------|\n")
		for _, st := range r.Steps {
			outcome := st.Outcome
			if st.Failed {
				outcome = "**" + outcome + "**"
			}
			pool := "-"
			if st.Pool >= 0 {
				pool = fmt.Sprintf("%d", st.Pool)
			}
			sb.WriteString(fmt.Sprintf("| %d | %d | %s | %s | %s | %s | %s |\n",
				st.Index, st.Block, st.Action, st.Actor, pool, outcome, escapePipes(st.Detail)))
		}
	} else {
		sb.WriteString("No steps.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func unix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
