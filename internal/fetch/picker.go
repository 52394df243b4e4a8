package fetch

import (
	"context"
	"errors"

	"github.com/shelfwatch/shelfwatch/internal/logger"
	"github.com/shelfwatch/shelfwatch/internal/sites"
)

// Picker routes a fetch to the transport the site's adapter asks for and
// falls back once to the other transport when the primary returns an
// explicit error or an unusable page. Never a second fallback.
type Picker struct {
	static   Transport
	rendered Transport
}

// NewPicker wires the two transports together.
func NewPicker(static, rendered Transport) *Picker {
	return &Picker{static: static, rendered: rendered}
}

// Fetch retrieves the page via the site's primary transport. The usable
// probe, when non-nil, lets the caller reject a structurally successful
// fetch whose content is a placeholder (the cascade's invalid-name rule);
// such pages trigger the same one-shot fallback as an explicit error.
func (p *Picker) Fetch(ctx context.Context, url string, site sites.Site, usable func(RawPage) bool) (RawPage, error) {
	primary, fallback := p.static, p.rendered
	if site.RequiresRendering {
		primary, fallback = p.rendered, p.static
	}

	page, err := primary.Fetch(ctx, url, site)
	if err == nil && (usable == nil || usable(page)) {
		return page, nil
	}

	logger.Debug("primary transport insufficient, trying fallback",
		"url", url, "primary", primary.Name(), "error", err)

	fbPage, fbErr := fallback.Fetch(ctx, url, site)
	if fbErr == nil {
		return fbPage, nil
	}

	// Fallback failed too. An unusable-but-successful primary page is still
	// the best content we have; let the extraction cascade work on it.
	if err == nil {
		return page, nil
	}
	return page, errors.Join(err, fbErr)
}

// Close releases both transports.
func (p *Picker) Close() error {
	errStatic := p.static.Close()
	errRendered := p.rendered.Close()
	return errors.Join(errStatic, errRendered)
}
