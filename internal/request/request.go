// Package request builds the search URLs issued for a contextual search.
// A request carries a normal-priority URL and, when prefetch is enabled, a
// low-priority variant used for speculative loading. Priority switching is
// one-directional: once a request drops to normal priority it never goes
// back.
package request

import (
	"errors"
	"fmt"
	"net/url"

	"ctxsearch/internal/config"
)

// Query parameters understood by the search service.
const (
	paramQuery         = "q"
	paramContextual    = "ctxs"
	paramAlternateTerm = "ctxsl_alternate_term"
	paramKnowledgeID   = "kgmid"
	paramNoSuggestions = "sns"
	paramTranslateFrom = "tlitesl"
	paramTranslateTo   = "tlitetl"

	contextualVersion = "2"
)

// Request is one contextual search request. Construct with New; the zero
// value is not usable.
type Request struct {
	normal      *url.URL
	lowPriority *url.URL

	usingLowPriority bool
	// prefetch records whether this request was created for speculative
	// loading; immutable after construction.
	prefetch   bool
	hasFailed  bool
	translated bool
}

// New builds the URL variants for searchTerm. alternateTerm and knowledgeID
// ("mid") are optional and empty means absent. When lowPriorityEnabled the
// low-priority variant is built and starts active.
func New(cfg config.SearchConfig, searchTerm, alternateTerm, knowledgeID string, lowPriorityEnabled bool) (*Request, error) {
	if searchTerm == "" {
		return nil, errors.New("empty search term")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	normal := *base
	normal.Path = cfg.SearchPath
	q := normal.Query()
	q.Set(paramQuery, searchTerm)
	q.Set(paramContextual, contextualVersion)
	if alternateTerm != "" {
		q.Set(paramAlternateTerm, alternateTerm)
	}
	if knowledgeID != "" {
		q.Set(paramKnowledgeID, knowledgeID)
	}
	normal.RawQuery = q.Encode()

	r := &Request{
		normal:           &normal,
		usingLowPriority: lowPriorityEnabled,
		prefetch:         lowPriorityEnabled,
	}
	if lowPriorityEnabled {
		low := normal
		low.Path = cfg.LowPriorityPath
		lq := low.Query()
		lq.Set(paramNoSuggestions, "1")
		low.RawQuery = lq.Encode()
		r.lowPriority = &low
	}
	return r, nil
}

// SearchURL returns the currently active URL variant. It is never nil.
func (r *Request) SearchURL() *url.URL {
	if r.usingLowPriority {
		return r.lowPriority
	}
	return r.normal
}

// IsUsingLowPriority reports whether the low-priority variant is active.
func (r *Request) IsUsingLowPriority() bool { return r.usingLowPriority }

// WasPrefetch reports whether this request was constructed for speculative
// loading.
func (r *Request) WasPrefetch() bool { return r.prefetch }

// SetNormalPriority switches to the normal-priority URL. The switch is
// one-directional and idempotent.
func (r *Request) SetNormalPriority() { r.usingLowPriority = false }

// SetHasFailed records that the issued request failed. The flag is one-shot
// and carries no automatic behavior: callers are expected to check
// HasFailed and re-issue at normal priority.
func (r *Request) SetHasFailed() { r.hasFailed = true }

// HasFailed reports whether SetHasFailed was called.
func (r *Request) HasFailed() bool { return r.hasFailed }

// ForceTranslation appends translation parameters to both URL variants.
// An empty sourceLanguage tells the service to auto-detect.
func (r *Request) ForceTranslation(sourceLanguage, targetLanguage string) {
	r.translated = true
	appendTranslation(r.normal, sourceLanguage, targetLanguage)
	if r.lowPriority != nil {
		appendTranslation(r.lowPriority, sourceLanguage, targetLanguage)
	}
}

// IsTranslationForced reports whether translation parameters were applied.
func (r *Request) IsTranslationForced() bool { return r.translated }

func appendTranslation(u *url.URL, source, target string) {
	q := u.Query()
	q.Set(paramTranslateFrom, source)
	q.Set(paramTranslateTo, target)
	u.RawQuery = q.Encode()
}
