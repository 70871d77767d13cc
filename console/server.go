// Package console implements the plain-text line-command server: the daemon
// analog of the handheld client's serial console. Commands are
// newline-terminated lines over TCP with no framing, escaping or
// authentication.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	lev "github.com/agnivade/levenshtein"

	"lucamon/history"
	"lucamon/status"
)

// knownVerbs drives dispatch and the "did you mean" suggestion for typos.
var knownVerbs = []string{"STATUS", "API", "HISTORY", "WATCH", "UNWATCH", "HELP", "BYE"}

const (
	maxSuggestDistance = 2
	watchQueueSize     = 16
	defaultHistoryN    = 5
	maxHistoryN        = 100
)

// Options configures the console server.
type Options struct {
	Port           int
	MaxConnections int
	Welcome        string
}

// Server accepts console clients and serves commands against the poller and
// the optional history store.
type Server struct {
	opts     Options
	poller   *status.Poller
	hist     *history.Store // may be nil when history is disabled
	logger   *log.Logger
	listener net.Listener

	mu       sync.Mutex
	clients  map[int]*client
	nextID   int
	shutdown chan struct{}
	started  bool
}

type client struct {
	id   int
	conn net.Conn

	writeMu sync.Mutex

	watchMu     sync.Mutex
	watching    bool
	unsubscribe func()
	stream      chan string
	streamDone  chan struct{}
}

// NewServer builds a console server. hist may be nil.
func NewServer(opts Options, poller *status.Poller, hist *history.Store, logger *log.Logger) *Server {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 50
	}
	return &Server{
		opts:     opts,
		poller:   poller,
		hist:     hist,
		logger:   logger,
		clients:  make(map[int]*client),
		shutdown: make(chan struct{}),
	}
}

// Start begins listening and accepting clients.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.opts.Port))
	if err != nil {
		return fmt.Errorf("console: listen on port %d: %w", s.opts.Port, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = true
	s.mu.Unlock()

	s.logf("console: listening on %s", listener.Addr())
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and disconnects all clients.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.shutdown)
	listener := s.listener
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}
	for _, c := range clients {
		s.teardownClient(c)
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logf("console: accept failed: %v", err)
			continue
		}
		if !s.admit(conn) {
			continue
		}
	}
}

func (s *Server) admit(conn net.Conn) bool {
	s.mu.Lock()
	if len(s.clients) >= s.opts.MaxConnections {
		s.mu.Unlock()
		fmt.Fprintf(conn, "Too many connections, try again later.\r\n")
		_ = conn.Close()
		return false
	}
	id := s.nextID
	s.nextID++
	c := &client{id: id, conn: conn}
	s.clients[id] = c
	s.mu.Unlock()

	go s.handleClient(c)
	return true
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
}

func (s *Server) teardownClient(c *client) {
	c.stopWatch()
	_ = c.conn.Close()
}

func (s *Server) handleClient(c *client) {
	defer func() {
		s.teardownClient(c)
		s.removeClient(c)
	}()

	if s.opts.Welcome != "" {
		c.writeLine(s.opts.Welcome)
	}

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 512), 512)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !s.dispatch(c, line) {
			return
		}
	}
}

// dispatch runs one command; the return value is false when the client asked
// to disconnect.
func (s *Server) dispatch(c *client, line string) bool {
	verb, arg := commandVerb(line)
	switch verb {
	case "STATUS":
		c.writeLines(formatStatus(s.poller.Current(), s.poller.Endpoint()))
	case "API":
		s.handleAPI(c, arg)
	case "HISTORY":
		s.handleHistory(c, arg)
	case "WATCH":
		s.handleWatch(c)
	case "UNWATCH":
		c.stopWatch()
		c.writeLine("Watch stopped.")
	case "HELP":
		c.writeLines(helpLines())
	case "BYE", "QUIT", "EXIT":
		c.writeLine("73")
		return false
	default:
		s.handleUnknown(c, verb)
	}
	return true
}

func (s *Server) handleAPI(c *client, arg string) {
	if arg == "" {
		c.writeLine("Usage: API:<url>")
		return
	}
	if !strings.HasPrefix(arg, "http://") && !strings.HasPrefix(arg, "https://") {
		c.writeLine("Endpoint must start with http:// or https://")
		return
	}
	s.poller.SetEndpoint(arg)
	s.logf("console: endpoint retargeted to %s", s.poller.Endpoint())
	c.writeLine("API URL updated: " + s.poller.Endpoint())
}

func (s *Server) handleHistory(c *client, arg string) {
	if s.hist == nil {
		c.writeLine("History store is disabled.")
		return
	}
	n := defaultHistoryN
	if arg != "" {
		parsed, err := strconv.Atoi(arg)
		if err != nil || parsed <= 0 {
			c.writeLine("Usage: HISTORY [n]")
			return
		}
		n = parsed
	}
	if n > maxHistoryN {
		n = maxHistoryN
	}
	records, err := s.hist.Recent(n)
	if err != nil {
		s.logf("console: history read failed: %v", err)
		c.writeLine("History unavailable: " + err.Error())
		return
	}
	if len(records) == 0 {
		c.writeLine("No history yet.")
		return
	}
	for _, snap := range records {
		c.writeLine(formatTickLine(snap))
	}
}

func (s *Server) handleWatch(c *client) {
	c.watchMu.Lock()
	if c.watching {
		c.watchMu.Unlock()
		c.writeLine("Already watching.")
		return
	}
	c.watching = true
	c.stream = make(chan string, watchQueueSize)
	c.streamDone = make(chan struct{})
	stream := c.stream
	done := c.streamDone
	c.unsubscribe = s.poller.Subscribe(func(snap status.Snapshot) {
		// Runs on the poll goroutine; never block it on a slow client.
		select {
		case stream <- formatTickLine(snap):
		default:
		}
	})
	c.watchMu.Unlock()

	go func() {
		for {
			select {
			case line := <-stream:
				c.writeLine(line)
			case <-done:
				return
			}
		}
	}()
	c.writeLine("Watching poll ticks. UNWATCH to stop.")
}

func (c *client) stopWatch() {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if !c.watching {
		return
	}
	c.watching = false
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.streamDone != nil {
		close(c.streamDone)
		c.streamDone = nil
	}
	c.stream = nil
}

func (s *Server) handleUnknown(c *client, verb string) {
	if suggestion, ok := suggestVerb(verb); ok {
		c.writeLine(fmt.Sprintf("Unknown command %s. Did you mean %s?", verb, suggestion))
		return
	}
	c.writeLine("Unknown command. Type HELP for commands.")
}

// suggestVerb finds the closest known verb within the edit-distance cap.
func suggestVerb(verb string) (string, bool) {
	if verb == "" {
		return "", false
	}
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, known := range knownVerbs {
		d := lev.ComputeDistance(verb, known)
		if d < bestDist {
			bestDist = d
			best = known
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

func (c *client) writeLine(line string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, _ = c.conn.Write([]byte(line + "\r\n"))
}

func (c *client) writeLines(lines []string) {
	for _, line := range lines {
		c.writeLine(line)
	}
}

func (s *Server) logf(format string, args ...any) {
	if s == nil || s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
