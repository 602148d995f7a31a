// lockdownd — lockdown policy enforcement engine for online exam
// sessions. The webview shell renders; this process decides.
package main

import "github.com/understandly/lockdownd/internal/cli"

func main() {
	cli.Execute()
}
