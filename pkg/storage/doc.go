// Package storage manages the output directory downloads are written to.
//
// Downloads never write to their final name directly. Create opens a
// "<name>.part" file next to the destination; Commit renames it into place
// once the transfer is complete and Discard removes it after a failure or
// cancellation, so a destination path only ever holds a finished file.
//
// Usage:
//
//	manager, err := storage.NewManager("downloads")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !manager.IsDownloaded("episode.mp3") {
//	    part, err := manager.Create("episode.mp3")
//	    if err != nil {
//	        return err
//	    }
//	    if _, err := io.Copy(part, body); err != nil {
//	        part.Discard()
//	        return err
//	    }
//	    return part.Commit()
//	}
package storage
