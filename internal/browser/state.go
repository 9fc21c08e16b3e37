package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/attachtimer/internal/models"
)

// localStorageSnapshot is evaluated in the page to read the current origin's storage
const localStorageSnapshot = `({
	origin: location.origin,
	entries: Object.keys(localStorage).map(k => ({name: k, value: localStorage.getItem(k)}))
})`

type storageSnapshot struct {
	Origin  string                 `json:"origin"`
	Entries []models.StateKeyValue `json:"entries"`
}

// StorageState captures cookies for the instance and current URL plus the
// current origin's localStorage
func (p *Page) StorageState(ctx context.Context) (*models.StorageState, error) {
	var (
		location string
		snapshot storageSnapshot
		cookies  []*network.Cookie
	)

	err := p.run(ctx,
		chromedp.Location(&location),
		chromedp.Evaluate(localStorageSnapshot, &snapshot),
		chromedp.ActionFunc(func(ctx context.Context) error {
			urls := []string{location}
			if p.baseURL != "" && p.baseURL != location {
				urls = append(urls, p.baseURL)
			}
			var err error
			cookies, err = network.GetCookies().WithURLs(urls).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to capture storage state: %w", err)
	}

	state := &models.StorageState{
		Cookies: make([]models.StateCookie, 0, len(cookies)),
		Origins: []models.StateOrigin{},
	}
	for _, c := range cookies {
		expires := c.Expires
		if c.Session {
			expires = -1
		}
		state.Cookies = append(state.Cookies, models.StateCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}
	if snapshot.Origin != "" && snapshot.Origin != "null" && len(snapshot.Entries) > 0 {
		state.Origins = append(state.Origins, models.StateOrigin{
			Origin:       snapshot.Origin,
			LocalStorage: snapshot.Entries,
		})
	}

	p.logger.Debug().
		Int("cookies", len(state.Cookies)).
		Int("origins", len(state.Origins)).
		Str("url", location).
		Msg("Captured storage state")

	return state, nil
}

// restoreState installs cookies directly and localStorage through a script
// that runs before any page script on matching origins
func (p *Page) restoreState(ctx context.Context, state *models.StorageState) error {
	actions := []chromedp.Action{}

	if len(state.Cookies) > 0 {
		params := make([]*network.CookieParam, 0, len(state.Cookies))
		for _, c := range state.Cookies {
			params = append(params, cookieParam(c))
		}
		actions = append(actions, network.SetCookies(params))
	}

	for _, origin := range state.Origins {
		if len(origin.LocalStorage) == 0 {
			continue
		}
		script, err := localStorageScript(origin)
		if err != nil {
			return err
		}
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx)
			return err
		}))
	}

	if len(actions) == 0 {
		return nil
	}
	return chromedp.Run(ctx, actions...)
}

func cookieParam(c models.StateCookie) *network.CookieParam {
	param := &network.CookieParam{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}
	switch network.CookieSameSite(c.SameSite) {
	case network.CookieSameSiteStrict, network.CookieSameSiteLax, network.CookieSameSiteNone:
		param.SameSite = network.CookieSameSite(c.SameSite)
	}
	if c.Expires > 0 {
		sec, frac := math.Modf(c.Expires)
		expires := cdp.TimeSinceEpoch(time.Unix(int64(sec), int64(frac*1e9)))
		param.Expires = &expires
	}
	return param
}

func localStorageScript(origin models.StateOrigin) (string, error) {
	originJSON, err := json.Marshal(origin.Origin)
	if err != nil {
		return "", fmt.Errorf("failed to encode origin %s: %w", origin.Origin, err)
	}
	entriesJSON, err := json.Marshal(origin.LocalStorage)
	if err != nil {
		return "", fmt.Errorf("failed to encode localStorage for %s: %w", origin.Origin, err)
	}
	return fmt.Sprintf(`(() => {
	if (location.origin !== %s) return;
	for (const e of %s) localStorage.setItem(e.name, e.value);
})();`, originJSON, entriesJSON), nil
}
