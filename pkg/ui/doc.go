// Package ui holds the terminal presentation pieces of the CLI: colors, per-file
// byte progress bars, the overwrite prompt, the batch summary table and desktop
// notifications.
package ui
