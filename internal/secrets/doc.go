// Package secrets redacts credentials from text before it crosses a process
// boundary: command output published as run events, and payloads logged at
// debug level.
//
// Detection uses the gitleaks default rule set.
package secrets
