// Package pipeline turns the listing page into the offers nobody has been
// told about yet.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"flat_bot/internal/extract"
	"flat_bot/internal/filter"
	"flat_bot/internal/identity"
	"flat_bot/internal/model"
)

// PageFetcher downloads the listing page.
type PageFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	URL() string
}

// SeenStore loads and replaces the set of listing IDs already handled.
type SeenStore interface {
	LoadSeen(ctx context.Context) (model.IDSet, error)
	SaveSeen(ctx context.Context, seen model.IDSet) error
}

// Report summarizes one run.
type Report struct {
	Strategy   string
	Candidates int
	Malformed  int
	Filtered   int
	Duplicates int
	Seen       int
	New        int
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("strategy", r.Strategy),
		slog.Int("candidates", r.Candidates),
		slog.Int("malformed", r.Malformed),
		slog.Int("filtered", r.Filtered),
		slog.Int("duplicates", r.Duplicates),
		slog.Int("seen", r.Seen),
		slog.Int("new", r.New),
	)
}

// Pipeline runs fetch, extraction, filtering and deduplication.
type Pipeline struct {
	fetcher  PageFetcher
	store    SeenStore
	chain    extract.Chain
	resolver identity.Resolver
	criteria filter.Criteria
	linkBase string
	log      *slog.Logger
}

// New creates a Pipeline with the default extraction chain.
// linkBase is prefixed to the listing ID when a block carries no link.
func New(f PageFetcher, store SeenStore, criteria filter.Criteria, linkBase string, log *slog.Logger) *Pipeline {
	return &Pipeline{
		fetcher:  f,
		store:    store,
		chain:    extract.DefaultChain(),
		criteria: criteria,
		linkBase: linkBase,
		log:      log,
	}
}

// RunOnce fetches the page and returns the offers that pass the criteria
// and were not seen in any earlier run, in page order. Their IDs are
// already recorded when it returns.
//
// A failed fetch or an unreadable seen set returns an error and leaves the
// store untouched.
func (p *Pipeline) RunOnce(ctx context.Context) ([]model.Offer, error) {
	offers, report, err := p.run(ctx)
	if err != nil {
		return nil, err
	}
	p.log.Info("run complete", "report", report)
	return offers, nil
}

func (p *Pipeline) run(ctx context.Context) ([]model.Offer, Report, error) {
	var report Report

	page, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return nil, report, fmt.Errorf("fetch page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, report, fmt.Errorf("parse page: %w", err)
	}

	seen, err := p.store.LoadSeen(ctx)
	if err != nil {
		return nil, report, fmt.Errorf("load seen listings: %w", err)
	}

	blocks := p.chain.Extract(doc)
	report.Candidates = len(blocks)
	if len(blocks) > 0 {
		report.Strategy = blocks[0].Strategy
	} else {
		p.log.Warn("no listing candidates found, page layout may have changed", "url", p.fetcher.URL())
	}

	batch := model.NewIDSet()
	var fresh []model.Offer
	for _, b := range blocks {
		offer, l, bad := p.offer(b)
		if bad != nil {
			report.Malformed++
			p.log.Warn("skip malformed listing", "strategy", bad.Strategy, "reason", bad.Reason, "snippet", bad.Snippet)
			continue
		}
		if ok, reason := p.criteria.Match(l); !ok {
			report.Filtered++
			p.log.Debug("listing filtered", "id", offer.ListingID, "reason", reason, "rent", offer.ColdRent, "address", offer.Address)
			continue
		}
		if batch.Has(offer.ListingID) {
			report.Duplicates++
			continue
		}
		batch.Add(offer.ListingID)
		if seen.Has(offer.ListingID) {
			report.Seen++
			continue
		}
		fresh = append(fresh, offer)
	}
	report.New = len(fresh)
	if report.Candidates > 0 && report.Malformed == report.Candidates {
		p.log.Warn("every listing candidate was malformed", "strategy", report.Strategy, "candidates", report.Candidates)
	}

	updated := seen.Clone()
	for id := range batch {
		updated.Add(id)
	}
	if err := p.store.SaveSeen(ctx, updated); err != nil {
		return nil, report, fmt.Errorf("save seen listings: %w", err)
	}
	return fresh, report, nil
}

// offer builds an Offer from a block, or reports why it cannot.
func (p *Pipeline) offer(b extract.Block) (model.Offer, filter.Listing, *extract.MalformedListingError) {
	f := extract.ParseFields(b.Selection)
	if !f.RentOK {
		return model.Offer{}, filter.Listing{}, &extract.MalformedListingError{
			Strategy: b.Strategy,
			Reason:   "no parseable cold rent",
			Snippet:  extract.Snippet(b.Selection),
		}
	}

	id, src := p.resolver.Resolve(b.Selection, f)
	offer := model.Offer{
		ListingID:    id,
		IDSource:     src,
		Address:      f.Address,
		Rooms:        f.Rooms,
		AreaSqm:      f.Area,
		ColdRent:     f.Rent,
		ColdRentText: f.RentRaw,
		DetailLink:   p.detailLink(f.Link, id),
	}
	return offer, filter.Listing{ColdRent: f.Rent, Address: f.Address, Text: f.Text}, nil
}

func (p *Pipeline) detailLink(href, id string) string {
	if href != "" {
		base, err := url.Parse(p.fetcher.URL())
		ref, refErr := url.Parse(href)
		if err == nil && refErr == nil {
			return base.ResolveReference(ref).String()
		}
	}
	return p.linkBase + url.QueryEscape(strings.TrimSpace(id))
}
