// Command replay reads a session log and prints a reconstruction summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/okian/inkline/internal/adapters/replay"
	"github.com/okian/inkline/pkg/logger"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <session-log.jsonl>\n", os.Args[0])
		flag.PrintDefaults()
	}
	verbose := flag.Bool("v", false, "print every stroke")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString("error")

	ctx := context.Background()
	session, err := replay.ReadFile(ctx, flag.Arg(0))
	if err != nil {
		os.Stderr.WriteString("reconstruction failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	fmt.Printf("session    %s\n", session.Header.SessionID)
	fmt.Printf("started    %s\n", session.Header.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("canvas     %.0fx%.0f\n", session.Header.CanvasWidth, session.Header.CanvasHeight)
	for key, value := range session.Header.Metadata {
		fmt.Printf("meta       %s=%s\n", key, value)
	}
	fmt.Printf("strokes    %d\n", len(session.Strokes))
	fmt.Printf("externals  %d\n", len(session.Externals))
	fmt.Printf("markers    %d\n", len(session.Markers))
	if session.Corrupt > 0 {
		fmt.Printf("corrupt    %d records skipped\n", session.Corrupt)
	}

	if *verbose {
		for i := range session.Strokes {
			s := &session.Strokes[i]
			fmt.Printf("\nstroke %d: %d points, %.3fs, reason=%s",
				s.ID, len(s.Points), s.Duration(), s.CloseReason)
			if s.Features != nil {
				fmt.Printf(", length=%.1f, peak_v=%.1f", s.Features.PathLength, s.Features.PeakVelocity)
			}
		}
		fmt.Println()
		for _, m := range session.Markers {
			fmt.Printf("marker @%.3fs: %s\n", m.TS, m.Text)
		}
	}
}
