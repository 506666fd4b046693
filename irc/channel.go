package irc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// special internal Message commands to propagate labeled response status to the writing goroutine
var labelEnableCommand = ":enable_labeled_response"
var labelDisableCommand = ":disable_labeled_response"

const chanCapacity = 64

// EnableLabels tells the writing goroutine of a ChanInOut pair to tag
// every outgoing message with a label, once the labeled-response
// capability was acknowledged.
func EnableLabels(out chan<- Message) {
	out <- NewMessage(labelEnableCommand)
}

func DisableLabels(out chan<- Message) {
	out <- NewMessage(labelDisableCommand)
}

// ChanInOut adapts a connection into channels of lines and messages.
// The in channel carries raw lines, one complete line each, with the
// CR LF stripped; lines that fail to parse are passed through so the
// session can still surface them. The out channel accepts messages,
// paced by a token bucket so the server does not kick us for flooding,
// and keeps the connection alive with PINGs when traffic stops.
func ChanInOut(conn net.Conn) (in <-chan string, out chan<- Message) {
	in_ := make(chan string, chanCapacity)
	out_ := make(chan Message, chanCapacity)

	const keepAlive = 30 * time.Second
	const maxRTT = 10 * time.Second
	var last atomic.Value
	last.Store(time.Now())

	go func() {
		r := bufio.NewScanner(conn)
		for r.Scan() {
			line := r.Text()
			line = strings.ToValidUTF8(line, string([]rune{unicode.ReplacementChar}))
			now := time.Now()
			last.Store(now)
			conn.SetReadDeadline(now.Add(keepAlive + maxRTT))
			in_ <- line
		}
		close(in_)
	}()

	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		// roughly the burst allowance of common server flood limits
		limiter := rate.NewLimiter(rate.Every(500*time.Millisecond), 10)
		labeledResponse := false
	outer:
		for {
			select {
			case msg, ok := <-out_:
				if !ok {
					break outer
				}
				if msg.Command == labelEnableCommand {
					labeledResponse = true
					continue
				}
				if msg.Command == labelDisableCommand {
					labeledResponse = false
					continue
				}
				if labeledResponse {
					if msg.Tags == nil {
						msg.Tags = make(map[string]string, 1)
					}
					msg.Tags["label"] = uuid.NewString()
				}

				_ = limiter.Wait(context.Background())
				last.Store(time.Now())
				_, err := fmt.Fprintf(conn, "%s\r\n", msg.String())
				if err != nil {
					break outer
				}
			case <-t.C:
				now := time.Now()
				if last.Load().(time.Time).Add(keepAlive).After(now) {
					continue
				}
				if last.Load().(time.Time).Add(keepAlive + maxRTT).Before(now) {
					// probably out of sleep, reset connection
					conn.Close()
					continue
				}
				last.Store(now)
				_, err := fmt.Fprint(conn, "PING _\r\n")
				if err != nil {
					break outer
				}
			}
		}
		_ = conn.Close()
	}()

	return in_, out_
}
