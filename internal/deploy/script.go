package deploy

import (
	"fmt"
	"strings"
)

// BinaryName is the executable started on the VM.
const BinaryName = "fraudlake"

// shellQuote single-quotes s for POSIX sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// StartScript returns the remote shell script that stops a running API
// server and starts a new one in the background from remoteDir.
func StartScript(remoteDir string) string {
	var b strings.Builder
	b.WriteString("set -e\n")
	fmt.Fprintf(&b, "cd %s\n", shellQuote(remoteDir))
	fmt.Fprintf(&b, "chmod +x ./%s\n", BinaryName)
	fmt.Fprintf(&b, "pkill -f '%s serve' || true\n", BinaryName)
	fmt.Fprintf(&b, "nohup ./%s serve > %s.log 2>&1 < /dev/null &\n", BinaryName, BinaryName)
	fmt.Fprintf(&b, "echo \"started %s serve (pid $!)\"\n", BinaryName)
	return b.String()
}
