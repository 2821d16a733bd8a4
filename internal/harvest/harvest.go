// Package harvest collects reply addresses and message identifiers from the
// messages carrying one Gmail label.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/joshsymonds/labelcast/internal/gmail"
	"github.com/joshsymonds/labelcast/internal/rate"
)

const maxPageSize = 500

// Result is the outcome of one harvest. Addresses and MessageIDs are not
// parallel: a message with neither Reply-To nor From contributes an
// identifier but no address.
type Result struct {
	// Addresses holds each distinct extracted address once, compared as
	// exact strings.
	Addresses []string
	// MessageIDs lists every scanned message in page arrival order.
	MessageIDs []gmail.MessageID
	// Pages is the number of list calls made.
	Pages int
}

// Service walks a label's messages one request at a time.
type Service struct {
	Client   gmail.Client
	Limiter  rate.Limiter
	Logger   *slog.Logger
	PageSize int
}

// NewService constructs a Service with sane defaults.
func NewService(client gmail.Client, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if limiter == nil {
		limiter = rate.Unlimited{}
	}
	return &Service{Client: client, Limiter: limiter, Logger: logger, PageSize: maxPageSize}
}

// Harvest lists every message carrying label and extracts one reply address
// per message. An empty label yields an empty result.
func (s *Service) Harvest(ctx context.Context, label gmail.LabelID) (Result, error) {
	if label == "" {
		return Result{}, nil
	}
	ids, pages, err := s.listAll(ctx, label)
	if err != nil {
		return Result{}, err
	}

	seen := make(map[string]struct{}, len(ids))
	var addresses []string
	for _, id := range ids {
		if err := s.Limiter.Wait(ctx); err != nil {
			return Result{}, err
		}
		detail, err := s.Client.GetHeaders(ctx, id)
		if err != nil {
			return Result{}, fmt.Errorf("get message %s: %w", id, err)
		}
		addr, ok := ReplyAddress(detail)
		if !ok || addr == "" {
			s.Logger.DebugContext(ctx, "no reply address", "message_id", id)
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)

	s.Logger.InfoContext(ctx, "harvested label",
		"label_id", label, "pages", pages, "messages", len(ids), "addresses", len(addresses))
	return Result{Addresses: addresses, MessageIDs: ids, Pages: pages}, nil
}

func (s *Service) listAll(ctx context.Context, label gmail.LabelID) ([]gmail.MessageID, int, error) {
	pageSize := s.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	var (
		all   []gmail.MessageID
		token string
		pages int
	)
	for {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, pages, err
		}
		page, err := s.Client.List(ctx, label, token, pageSize)
		if err != nil {
			return nil, pages, fmt.Errorf("list messages: %w", err)
		}
		pages++
		all = append(all, page.IDs...)
		if page.NextPageToken == "" {
			return all, pages, nil
		}
		token = page.NextPageToken
	}
}
