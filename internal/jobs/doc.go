// Package jobs runs the periodic background processors of the Atelier API.
//
// # Processors
//
//   - WorkshopLifecycleProcessor: completes ended workshops, expires stale
//     waiting list entries and purges expired refresh tokens
//   - ReminderProcessor: emails participants of workshops starting soon
//
// Each processor has Start, Stop, RunOnce and IsRunning. Start runs one pass
// after a short warm-up delay and then one per interval. A failed pass is
// logged and counted in atelier_job_runs_total; it never stops the loop.
//
//	p := jobs.NewReminderProcessor(jobs.ReminderConfig{...})
//	p.Start()
//	defer p.Stop()
package jobs
