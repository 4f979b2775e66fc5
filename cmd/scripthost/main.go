// Command scripthost runs a script file against the host capability surface.
//
//	scripthost [flags] <script>
//	scripthost describe [--format json|yaml] [--schema]
//	scripthost repl
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, newApp(), os.Args[1:])
	stop()
	os.Exit(code)
}
