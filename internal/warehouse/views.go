package warehouse

import (
	"context"
	"fmt"
	"time"
)

// View names published over the assertion table.
const (
	DailyRecapView    = "daily_recap"
	ActionSummaryView = "action_summary"
)

// dailyRecapDDL aggregates assertion outcomes per day. A view recomputes
// on every query, so it always reflects current table contents.
var dailyRecapDDL = fmt.Sprintf(`
	CREATE OR REPLACE VIEW %s AS
	WITH processed_data AS (
		SELECT
			toDate(Start_Time) AS assertion_date,
			State,
			dateDiff('second', Start_Time, End_Time) AS duration_seconds
		FROM %s
	)
	SELECT
		assertion_date,
		count() AS total_assertions,
		countIf(State = 'SUCCEEDED') AS passed_assertions,
		countIf(State = 'FAILED') AS failed_assertions,
		round(countIf(State = 'FAILED') / count() * 100, 2) AS failure_percentage,
		round(avg(duration_seconds), 2) AS avg_duration_seconds,
		min(duration_seconds) AS min_duration_seconds,
		max(duration_seconds) AS max_duration_seconds
	FROM processed_data
	GROUP BY assertion_date
	ORDER BY assertion_date DESC
`, DailyRecapView, TableName)

// actionSummaryDDL aggregates assertion outcomes per action name.
var actionSummaryDDL = fmt.Sprintf(`
	CREATE OR REPLACE VIEW %s AS
	WITH processed_data AS (
		SELECT
			Action_Name,
			State,
			dateDiff('second', Start_Time, End_Time) AS duration_seconds
		FROM %s
	)
	SELECT
		Action_Name,
		count() AS total_executions,
		countIf(State = 'SUCCEEDED') AS passed_executions,
		countIf(State = 'FAILED') AS failed_executions,
		round(countIf(State = 'SUCCEEDED') / count() * 100, 2) AS success_percentage,
		round(countIf(State = 'FAILED') / count() * 100, 2) AS failure_percentage,
		round(avg(duration_seconds), 2) AS avg_duration_seconds,
		min(duration_seconds) AS min_duration_seconds,
		max(duration_seconds) AS max_duration_seconds
	FROM processed_data
	GROUP BY Action_Name
	ORDER BY failure_percentage DESC, total_executions DESC
`, ActionSummaryView, TableName)

// viewDDLs maps each published view to its definition.
var viewDDLs = map[string]string{
	DailyRecapView:    dailyRecapDDL,
	ActionSummaryView: actionSummaryDDL,
}

// PublishViews issues the CREATE OR REPLACE VIEW statements. Rerunning
// has no cumulative effect: the prior definitions are overwritten.
func (w *Warehouse) PublishViews(ctx context.Context) error {
	for _, view := range []string{DailyRecapView, ActionSummaryView} {
		stmtCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		_, err := w.db.ExecContext(stmtCtx, viewDDLs[view])
		cancel()
		if err != nil {
			return &ViewError{View: view, Err: err}
		}
	}
	return nil
}
