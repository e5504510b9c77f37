package mediawiki

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rcliao/changelogged/internal/model"
)

// MaxTitlesPerQuery is the API limit for titles in one query without apihighlimits.
const MaxTitlesPerQuery = 50

type revisionsResponse struct {
	Query struct {
		Normalized []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"normalized"`
		Pages []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Invalid   bool   `json:"invalid"`
			Revisions []struct {
				Slots struct {
					Main struct {
						Content string `json:"content"`
					} `json:"main"`
				} `json:"slots"`
			} `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// ReadPages fetches the current wikitext of up to MaxTitlesPerQuery pages.
// The result is keyed by the requested titles.
func (c *Client) ReadPages(ctx context.Context, titles []string) (map[string]model.Page, error) {
	if len(titles) > MaxTitlesPerQuery {
		return nil, fmt.Errorf("mediawiki: %d titles exceeds limit of %d", len(titles), MaxTitlesPerQuery)
	}
	var resp revisionsResponse
	err := c.call(ctx, http.MethodGet, url.Values{
		"action":  {"query"},
		"prop":    {"revisions"},
		"rvprop":  {"content"},
		"rvslots": {"main"},
		"titles":  {strings.Join(titles, "|")},
	}, &resp)
	if err != nil {
		return nil, err
	}

	canonical := make(map[string]string, len(resp.Query.Normalized))
	for _, n := range resp.Query.Normalized {
		canonical[n.From] = n.To
	}
	byTitle := make(map[string]model.Page, len(resp.Query.Pages))
	for _, p := range resp.Query.Pages {
		page := model.Page{Title: p.Title, Missing: p.Missing || p.Invalid}
		if !page.Missing {
			if len(p.Revisions) == 0 {
				return nil, fmt.Errorf("mediawiki: page %q returned no revision", p.Title)
			}
			page.Text = p.Revisions[0].Slots.Main.Content
		}
		byTitle[p.Title] = page
	}

	out := make(map[string]model.Page, len(titles))
	for _, t := range titles {
		key := t
		if to, ok := canonical[t]; ok {
			key = to
		}
		if p, ok := byTitle[key]; ok {
			p.Title = t
			out[t] = p
		}
	}
	return out, nil
}

// ReadPage fetches a single page.
func (c *Client) ReadPage(ctx context.Context, title string) (model.Page, error) {
	got, err := c.ReadPages(ctx, []string{title})
	if err != nil {
		return model.Page{}, err
	}
	p, ok := got[title]
	if !ok {
		return model.Page{}, fmt.Errorf("mediawiki: page %q absent from response", title)
	}
	return p, nil
}

// WritePage saves text as a bot edit, logging in first if needed.
func (c *Client) WritePage(ctx context.Context, title, text, summary string) error {
	err := c.edit(ctx, title, text, summary)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == "badtoken" {
		c.dropEditToken()
		err = c.edit(ctx, title, text, summary)
	}
	return err
}

func (c *Client) edit(ctx context.Context, title, text, summary string) error {
	token, err := c.editToken(ctx)
	if err != nil {
		return err
	}
	var resp struct {
		Edit struct {
			Result string `json:"result"`
		} `json:"edit"`
	}
	err = c.call(ctx, http.MethodPost, url.Values{
		"action":  {"edit"},
		"title":   {title},
		"text":    {text},
		"summary": {summary},
		"bot":     {"1"},
		"token":   {token},
	}, &resp)
	if err != nil {
		return fmt.Errorf("edit %q: %w", title, err)
	}
	if resp.Edit.Result != "Success" {
		return fmt.Errorf("edit %q: result %q", title, resp.Edit.Result)
	}
	return nil
}
