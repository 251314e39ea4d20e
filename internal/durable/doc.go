// Package durable executes named units of work at most once per run.
//
// An Executor belongs to one run. Step looks the label up in a Journal: a
// recorded value (or recorded failure) is returned without running the
// function again, otherwise the function runs and its outcome is recorded.
// A run that is retried from the start after a crash therefore replays its
// completed steps and resumes at the first unrecorded one.
//
// Labels may repeat within a run; the n-th use of a label is keyed
// "label:n" (the first use is the bare label), so replays must issue steps
// in the same order as the original attempt.
package durable
