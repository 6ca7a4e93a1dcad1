package store

import (
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
)

// applyUpdate merges upd into run in memory. Counts always merge; the status
// only moves when the transition is legal, so a late regressive write cannot
// roll a run backwards.
func applyUpdate(run *model.Run, upd RunUpdate) {
	if c := upd.Counts.LeadCount; c != nil {
		run.LeadCount = *c
	}
	if c := upd.Counts.ProcessedCount; c != nil {
		run.ProcessedCount = *c
	}
	if c := upd.Counts.SuccessCount; c != nil {
		run.SuccessCount = *c
	}
	if c := upd.Counts.ErrorCount; c != nil {
		run.ErrorCount = *c
	}
	if c := upd.Counts.QualifiedCount; c != nil {
		run.QualifiedCount = *c
	}
	if upd.ErrorMessage != "" {
		run.ErrorMessage = upd.ErrorMessage
	}

	if upd.Status == "" || upd.Status == run.Status {
		return
	}
	if !run.Status.CanTransition(upd.Status) {
		zap.L().Warn("ignoring regressive run status write",
			zap.String("run_id", run.ID),
			zap.String("current", string(run.Status)),
			zap.String("requested", string(upd.Status)))
		return
	}
	run.Status = upd.Status
}
