package main

import (
	"fmt"
	"os"

	// Packages
	media "github.com/mutablelogic/go-uploader/pkg/media"
	session "github.com/mutablelogic/go-uploader/pkg/session"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

const nameLength = 32

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// render prints one line per file as it settles, and on a terminal a
// running progress line, until ch is closed.
func render(f *os.File, ch <-chan session.Snapshot) {
	tty := isTerminal(f)
	printed := make(map[string]bool)
	for snapshot := range ch {
		count := len(snapshot.Candidates)
		w := len(fmt.Sprint(count))
		for i, c := range snapshot.Candidates {
			if printed[c.ID] || !settled(c.State) {
				continue
			}
			printed[c.ID] = true
			fileTag := fmt.Sprintf("[%*d/%d]", w, i+1, count)
			name := media.FormatName(c.Name, nameLength)
			if tty {
				fmt.Fprintf(f, "\r\x1b[K  %s  %9s  \x1b[1m%s\x1b[0m  %s\n", fileTag, status(c), name, detail(c))
			} else {
				fmt.Fprintf(f, "  %s  %9s  %s  %s\n", fileTag, status(c), name, detail(c))
			}
		}
		if tty {
			if n, pct := uploading(snapshot); n > 0 {
				fmt.Fprintf(f, "\r\x1b[K  uploading %d file(s)  %5d%%", n, pct)
			}
		}
	}
	if tty {
		fmt.Fprint(f, "\r\x1b[K")
	}
}

// summary prints the totals for a finished session
func summary(f *os.File, snapshot session.Snapshot) {
	complete := snapshot.Count(session.StateComplete)
	failed := snapshot.Count(session.StateError)
	rejected := snapshot.Count(session.StateRejected)
	switch {
	case failed > 0 || rejected > 0:
		fmt.Fprintf(f, "%d file(s) uploaded, %d failed, %d rejected\n", complete, failed, rejected)
	default:
		fmt.Fprintf(f, "%d file(s) uploaded\n", complete)
	}
}

func settled(state session.State) bool {
	switch state {
	case session.StateComplete, session.StateError, session.StateRejected:
		return true
	}
	return false
}

func status(c session.Candidate) string {
	switch c.State {
	case session.StateComplete:
		return media.FormatSize(c.Size)
	case session.StateRejected:
		return "skip"
	default:
		return "failed"
	}
}

func detail(c session.Candidate) string {
	if c.State == session.StateComplete {
		return c.URL
	}
	return c.Error
}

// uploading returns the number of files in flight and the overall progress,
// weighted by size, of the files that are being or have been sent
func uploading(snapshot session.Snapshot) (int, int) {
	var n int
	var sent, total int64
	for _, c := range snapshot.Candidates {
		switch c.State {
		case session.StateUploading:
			n++
		case session.StateComplete, session.StateError:
		default:
			continue
		}
		sent += c.Size * int64(c.Progress) / 100
		total += c.Size
	}
	if total == 0 {
		return n, 0
	}
	return n, int(sent * 100 / total)
}
