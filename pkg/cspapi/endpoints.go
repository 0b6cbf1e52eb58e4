package cspapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nainya/standardstore/pkg/datastore"
	"github.com/nainya/standardstore/pkg/standards"
)

// JurisdictionFilter narrows the jurisdiction list. Empty members match everything.
type JurisdictionFilter struct {
	Search string // case-insensitive substring of the title
	Type   string // case-insensitive type: school, organization, state, nation
}

// Match reports whether j passes the filter.
func (f JurisdictionFilter) Match(j standards.Jurisdiction) bool {
	if f.Type != "" && !strings.EqualFold(j.Type, f.Type) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(j.Title), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// Jurisdictions lists jurisdictions, from cache unless refresh is set.
func (c *Client) Jurisdictions(ctx context.Context, filter JurisdictionFilter, refresh bool) ([]standards.Jurisdiction, error) {
	var env standards.Envelope[[]standards.Jurisdiction]
	decode := func(data []byte) error { return json.Unmarshal(data, &env) }

	path := ""
	if c.cache != nil {
		path = c.cache.JurisdictionsPath()
	}
	if _, err := c.cached(ctx, "jurisdictions", path, "/jurisdictions", refresh, decode); err != nil {
		return nil, err
	}

	out := make([]standards.Jurisdiction, 0, len(env.Data))
	for _, j := range env.Data {
		if filter.Match(j) {
			out = append(out, j)
		}
	}
	return out, nil
}

// JurisdictionDetails returns a jurisdiction and its standard set references.
func (c *Client) JurisdictionDetails(ctx context.Context, id string, refresh bool) (*standards.JurisdictionDetails, error) {
	if err := datastore.ValidateID(id); err != nil {
		return nil, fmt.Errorf("csp api: jurisdiction: %w", err)
	}
	var env standards.Envelope[*standards.JurisdictionDetails]
	decode := func(data []byte) error {
		if err := json.Unmarshal(data, &env); err != nil {
			return err
		}
		if env.Data == nil {
			return fmt.Errorf("%w: missing data member", standards.ErrMalformedDocument)
		}
		return nil
	}

	path := ""
	if c.cache != nil {
		path = c.cache.JurisdictionPath(id)
	}
	if _, err := c.cached(ctx, "jurisdiction", path, "/jurisdictions/"+url.PathEscape(id), refresh, decode); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// StandardSet downloads one standard set, from cache unless refresh is set.
func (c *Client) StandardSet(ctx context.Context, id string, refresh bool) (*standards.Tree, error) {
	if err := datastore.ValidateID(id); err != nil {
		return nil, fmt.Errorf("csp api: standard set: %w", err)
	}
	var tree *standards.Tree
	decode := func(data []byte) error {
		t, err := standards.DecodeTree(bytes.NewReader(data))
		if err != nil {
			return err
		}
		tree = t
		return nil
	}

	path := ""
	if c.cache != nil {
		path = c.cache.RawSetPath(id)
	}
	if _, err := c.cached(ctx, "standard_set", path, "/standard_sets/"+url.PathEscape(id), refresh, decode); err != nil {
		return nil, err
	}
	return tree, nil
}

// SetFilter selects standard sets of a jurisdiction. All present members must match.
type SetFilter struct {
	EducationLevels   []string // any level in common, case-insensitive
	PublicationStatus string   // case-insensitive; sets without a status pass
	ValidYear         string   // exact
	Title             string   // case-insensitive substring
	Subject           string   // case-insensitive substring
}

// Match reports whether ref passes the filter.
func (f SetFilter) Match(ref standards.StandardSetReference) bool {
	if len(f.EducationLevels) > 0 {
		want := make(map[string]struct{}, len(f.EducationLevels))
		for _, l := range standards.NormalizeEducationLevels(f.EducationLevels) {
			want[strings.ToUpper(l)] = struct{}{}
		}
		found := false
		for _, l := range ref.EducationLevels {
			if _, ok := want[strings.ToUpper(l)]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PublicationStatus != "" && ref.Document.PublicationStatus != "" &&
		!strings.EqualFold(ref.Document.PublicationStatus, f.PublicationStatus) {
		return false
	}
	if f.ValidYear != "" && ref.Document.Valid != f.ValidYear {
		return false
	}
	if f.Title != "" && !strings.Contains(strings.ToLower(ref.Title), strings.ToLower(f.Title)) {
		return false
	}
	if f.Subject != "" && !strings.Contains(strings.ToLower(ref.Subject), strings.ToLower(f.Subject)) {
		return false
	}
	return true
}

// MatchingSets returns the set references of details that pass filter, in listing order.
func MatchingSets(details *standards.JurisdictionDetails, filter SetFilter) []standards.StandardSetReference {
	var out []standards.StandardSetReference
	for _, ref := range details.StandardSets {
		if filter.Match(ref) {
			out = append(out, ref)
		}
	}
	return out
}

// DownloadSets downloads every set of a jurisdiction that passes filter,
// running up to Concurrency downloads at once under the shared rate limit.
// It returns the ids downloaded, in listing order, and the joined errors of
// the sets that failed.
func (c *Client) DownloadSets(ctx context.Context, jurisdictionID string, filter SetFilter, refresh bool) ([]string, error) {
	details, err := c.JurisdictionDetails(ctx, jurisdictionID, false)
	if err != nil {
		return nil, err
	}
	refs := MatchingSets(details, filter)
	c.log.Info("Downloading standard sets").
		Str("jurisdiction", jurisdictionID).
		Int("matching", len(refs)).
		Int("total", len(details.StandardSets)).
		Send()

	ok := make([]bool, len(refs))
	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			if _, err := c.StandardSet(gctx, ref.ID, refresh); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.log.Error("Failed to download standard set").Str("set_id", ref.ID).Err(err).Send()
				mu.Lock()
				errs = append(errs, fmt.Errorf("standard set %s: %w", ref.ID, err))
				mu.Unlock()
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ids []string
	for i, ref := range refs {
		if ok[i] {
			ids = append(ids, ref.ID)
		}
	}
	return ids, errors.Join(errs...)
}
