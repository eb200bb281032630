package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/pario-ai/oracle/pkg/models"
)

// ErrNotFound is returned by a Store when nothing is recorded for a lookup.
var ErrNotFound = errors.New("journal record not found")

// Store persists journal records for a Server.
type Store interface {
	// Append stores outcome under sort and returns the record as written.
	Append(ctx context.Context, sort string, outcome models.WorkOutcome) (models.JournalRecord, error)
	// Lookup returns the newest outcome stored under sort for req's key,
	// model and ctr, or ErrNotFound.
	Lookup(ctx context.Context, sort string, req models.WorkRequest) (*models.WorkOutcome, error)
}

// Server answers the journal wire protocol from a Store.
type Server struct {
	store  Store
	logger *slog.Logger
}

// NewServer creates a Server backed by store.
func NewServer(store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, logger: logger}
}

// Serve accepts connections on ln until ctx is cancelled, handling each
// connection on its own goroutine. It closes ln before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return fmt.Errorf("journal accept: %w", err)
			}
			g.Go(func() error {
				s.handle(gctx, conn)
				return nil
			})
		}
	})

	err := g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	remote := conn.RemoteAddr().String()
	s.logger.Debug("journal connection opened", "remote", remote)

	r := bufio.NewReader(conn)
	for {
		cmd, err := readTag(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Debug("journal connection read failed", "remote", remote, "error", err)
			}
			break
		}

		var sort string
		var doc []byte
		switch cmd {
		case cmdHi:
		case cmdPut, cmdGet:
			line, err := readLine(r)
			if err == nil {
				sort = string(line)
				doc, err = readLine(r)
			}
			if err != nil {
				s.logger.Debug("journal request read failed", "remote", remote, "cmd", cmd, "error", err)
				return
			}
		default:
			// The rest of the stream cannot be framed after an unknown command.
			s.logger.Warn("journal unknown command", "remote", remote, "cmd", cmd)
			_, _ = conn.Write([]byte(statusErr))
			return
		}

		reply := s.reply(ctx, cmd, sort, doc)
		if _, err := conn.Write(reply); err != nil {
			s.logger.Debug("journal reply failed", "remote", remote, "error", err)
			break
		}
	}
	s.logger.Debug("journal connection closed", "remote", remote)
}

// reply executes one command and returns the encoded response.
func (s *Server) reply(ctx context.Context, cmd, sort string, doc []byte) []byte {
	switch cmd {
	case cmdPut:
		if err := s.put(ctx, sort, doc); err != nil {
			s.logger.Warn("journal put rejected", "error", err)
			return []byte(statusErr)
		}
		return []byte(statusOK)
	case cmdGet:
		payload, err := s.get(ctx, sort, doc)
		if err != nil {
			s.logger.Warn("journal get rejected", "error", err)
			return []byte(statusErr)
		}
		return appendPayload(nil, payload)
	default:
		return []byte(statusOK)
	}
}

func (s *Server) put(ctx context.Context, sort string, data []byte) error {
	sort = models.NormalizeSort(sort)
	if sort == "" {
		return errors.New("empty sort")
	}
	var outcome models.WorkOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return fmt.Errorf("decode outcome: %w", err)
	}
	if outcome.Request.Key == "" {
		return errors.New("outcome has no request key")
	}
	if outcome.Success == nil && outcome.Failure == nil {
		return errors.New("outcome has neither success nor failure")
	}
	rec, err := s.store.Append(ctx, sort, outcome)
	if err != nil {
		return err
	}
	s.logger.Debug("journal put", "sort", sort, "eid", rec.EID, "key", outcome.Request.Key, "model", outcome.Request.Model)
	return nil
}

// get returns the encoded outcome, or an empty payload on a miss.
func (s *Server) get(ctx context.Context, sort string, data []byte) ([]byte, error) {
	sort = models.NormalizeSort(sort)
	var req models.WorkRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode query: %w", err)
	}
	outcome, err := s.store.Lookup(ctx, sort, req)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(outcome)
}
