package cli

import (
	"fmt"
	"os"
	"time"

	cursor "github.com/ahmetalpbalkan/go-cursor"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/tj/go-spin"
)

// progress shows msg with a spinner on stderr until the returned func is
// called. Nothing is shown when stderr is not a terminal or logs are on.
func (r *run) progress(msg string) func() {
	if r.v.GetBool("debug") || r.v.IsSet("v") || !isatty.IsTerminal(os.Stderr.Fd()) {
		return func() {}
	}

	s := spin.New()
	done := make(chan struct{})
	stopped := make(chan struct{})

	fmt.Fprint(os.Stderr, cursor.Hide())
	go func() {
		defer close(stopped)
		for {
			select {
			case <-done:
				fmt.Fprintf(os.Stderr, "\r%s\r%s", cursor.ClearEntireLine(), cursor.Show())
				return
			case <-time.After(time.Millisecond * 100):
				fmt.Fprintf(os.Stderr, "\r%s %s %s", cursor.ClearEntireLine(), color.CyanString(msg), s.Next())
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
