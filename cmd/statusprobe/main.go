// Command statusprobe connects to a running lucamon console, issues one
// command (STATUS by default) and prints the reply. It is a standalone
// debugging utility for checking a daemon from scripts or another host
// without keeping an interactive session open.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ziutek/telnet"
)

func main() {
	host := flag.String("host", "localhost", "Console host")
	port := flag.Int("port", 7310, "Console port")
	cmd := flag.String("cmd", "STATUS", "Command to send (STATUS, HISTORY 10, HELP, ...)")
	timeoutSec := flag.Int("timeout", 5, "Read timeout in seconds")
	flag.Parse()

	command := strings.TrimSpace(*cmd)
	if command == "" {
		log.Fatal("statusprobe: empty command")
	}
	timeout := time.Duration(*timeoutSec) * time.Second

	addr := net.JoinHostPort(*host, fmt.Sprintf("%d", *port))
	conn, err := telnet.DialTimeout("tcp", addr, timeout)
	if err != nil {
		log.Fatalf("statusprobe: dial %s: %v", addr, err)
	}
	defer conn.Close()

	if err := runProbe(conn, command, timeout); err != nil {
		log.Fatalf("statusprobe: %v", err)
	}
}

// runProbe sends the command then BYE, and prints every line the server
// returns until it closes the connection. The welcome banner and the
// farewell are suppressed so script output is just the reply body.
func runProbe(conn *telnet.Conn, command string, timeout time.Duration) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := conn.Write([]byte(command + "\r\nBYE\r\n")); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	first := true
	for {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		line, err := conn.ReadString('\n')
		if err != nil {
			line = strings.TrimRight(line, "\r\n")
			if line != "" && line != "73" {
				fmt.Fprintln(os.Stdout, line)
			}
			return nil
		}
		line = strings.TrimRight(line, "\r\n")
		if first {
			// Welcome banner.
			first = false
			continue
		}
		if line == "73" {
			return nil
		}
		fmt.Fprintln(os.Stdout, line)
	}
}
