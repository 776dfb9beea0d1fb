// Package scheduler triggers recurring tasks (cron expressions or fixed
// intervals) and hands each trigger to the task engine for execution.
package scheduler
