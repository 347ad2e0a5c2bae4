// Package jobs runs scheduled commands.
//
// Each job owns one timer slot. Cron jobs are one-shot timers re-armed after
// every fire from the schedule's next occurrence; interval jobs are repeating
// timers. Fired jobs are handed to a small worker pool so a slow command
// never delays other timers.
package jobs
