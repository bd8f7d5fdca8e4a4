// Package checkpoint lets an interrupted batch resume where it stopped.
//
// A checkpoint is keyed by the contents of the URL list and records each page
// that finished, with the number of files it saved. Files are written
// atomically through a temporary file and rename.
package checkpoint
