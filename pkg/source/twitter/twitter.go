package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/OFFIS-RIT/followgraph/internal/util"
	"github.com/OFFIS-RIT/followgraph/pkg/common"
	"github.com/OFFIS-RIT/followgraph/pkg/logger"
	"github.com/OFFIS-RIT/followgraph/pkg/source"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.twitter.com"
	DefaultPageSize = 200

	firstCursor = "-1"
	lastCursor  = "0"
)

// Client is a ConnectionSource backed by the Twitter v1.1 REST API using
// app-only authentication.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	pageSize   int
}

// NewClientParams configures a Client. A BearerToken takes precedence over
// the consumer key pair, which is exchanged for a token on first use.
// RatePerMinute <= 0 disables client side throttling.
type NewClientParams struct {
	BaseURL        string
	BearerToken    string
	ConsumerKey    string
	ConsumerSecret string
	RatePerMinute  int
	MaxRetries     int
	RetryBackoff   time.Duration
	Timeout        time.Duration
	PageSize       int

	// HTTPClient is used as the base transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func NewClient(params NewClientParams) (*Client, error) {
	baseURL := strings.TrimRight(params.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid twitter base url: %w", err)
	}

	base := params.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	var httpClient *http.Client
	switch {
	case params.BearerToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: params.BearerToken, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(ctx, ts)
	case params.ConsumerKey != "" && params.ConsumerSecret != "":
		cfg := clientcredentials.Config{
			ClientID:     params.ConsumerKey,
			ClientSecret: params.ConsumerSecret,
			TokenURL:     baseURL + "/oauth2/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		httpClient = cfg.Client(ctx)
	default:
		return nil, fmt.Errorf("twitter credentials missing: set a bearer token or consumer key and secret")
	}
	httpClient.Timeout = params.Timeout

	limiter := rate.NewLimiter(rate.Inf, 1)
	if params.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(params.RatePerMinute)), 1)
	}

	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	backoff := params.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	pageSize := params.PageSize
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    limiter,
		maxRetries: maxRetries,
		backoff:    backoff,
		pageSize:   pageSize,
	}, nil
}

type apiUser struct {
	IDStr      string `json:"id_str"`
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
}

func (u apiUser) connection() common.Connection {
	return common.Connection{
		ExternalID:  u.IDStr,
		DisplayName: u.Name,
		Handle:      u.ScreenName,
	}
}

type friendsPage struct {
	Users         []apiUser `json:"users"`
	NextCursorStr string    `json:"next_cursor_str"`
}

func (c *Client) LookupUser(ctx context.Context, handle string) (common.Connection, error) {
	q := url.Values{}
	q.Set("screen_name", handle)

	var users []apiUser
	if err := c.getJSON(ctx, "/1.1/users/lookup.json", q, &users); err != nil {
		return common.Connection{}, err
	}
	for _, u := range users {
		if common.SameHandle(u.ScreenName, handle) {
			return u.connection(), nil
		}
	}
	return common.Connection{}, fmt.Errorf("lookup %q: %w", handle, source.ErrUnknownHandle)
}

func (c *Client) FetchPage(ctx context.Context, handle string, cursor string) (common.Page, error) {
	if cursor == "" {
		cursor = firstCursor
	}
	q := url.Values{}
	q.Set("screen_name", handle)
	q.Set("skip_status", "true")
	q.Set("count", strconv.Itoa(c.pageSize))
	q.Set("cursor", cursor)

	var body friendsPage
	if err := c.getJSON(ctx, "/1.1/friends/list.json", q, &body); err != nil {
		return common.Page{}, err
	}

	page := common.Page{Connections: make([]common.Connection, 0, len(body.Users))}
	for _, u := range body.Users {
		page.Connections = append(page.Connections, u.connection())
	}
	if body.NextCursorStr != lastCursor {
		page.NextCursor = body.NextCursorStr
	}
	return page, nil
}

type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("twitter api status %d: %s", e.Status, e.Body)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + query.Encode()

	_, err := util.RetryWithContext(ctx, c.maxRetries, c.backoff, func(ctx context.Context) (struct{}, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return struct{}{}, util.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			logger.Warn("[Twitter] Request failed", "path", path, "err", err)
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			serr := &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
			switch {
			case resp.StatusCode == http.StatusNotFound:
				return struct{}{}, util.Permanent(fmt.Errorf("%w: %w", source.ErrUnknownHandle, serr))
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				logger.Warn("[Twitter] Transient status", "path", path, "status", resp.StatusCode)
				return struct{}{}, serr
			default:
				return struct{}{}, util.Permanent(serr)
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, util.Permanent(fmt.Errorf("decode twitter response: %w", err))
		}
		return struct{}{}, nil
	})
	return err
}
