// Command absensi records employee attendance.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ZidnyIlmanN/absensi-indobuzz-v1-sub001/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
