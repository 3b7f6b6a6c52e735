package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders holder rows as a CSV string.
func RenderCSV(holders []HolderRow) string {
	var sb strings.Builder

	sb.WriteString("name,address,pool,staked,carried,pending,paid,fees,harvests,deferrals\n")
	for _, h := range holders {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%s,%s,%s,%s,%s,%d,%d\n",
			h.Name,
			h.Address,
			h.Pool,
			h.Staked,
			h.Carried,
			h.Pending,
			h.Paid,
			h.Fees,
			h.Harvests,
			h.Deferrals,
		))
	}
	return sb.String()
}

// RenderStepsCSV renders the step log as a CSV string. Detail is quoted.
func RenderStepsCSV(steps []StepRow) string {
	var sb strings.Builder

	sb.WriteString("index,block,time,action,actor,pool,outcome,failed,detail\n")
	for _, s := range steps {
		sb.WriteString(fmt.Sprintf("%d,%d,%d,%s,%s,%d,%s,%t,%q\n",
			s.Index, s.Block, s.Time, s.Action, s.Actor, s.Pool, s.Outcome, s.Failed, s.Detail))
	}
	return sb.String()
}
